package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the engine reads.
	EnvPrefix = "LIBRARIA"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "LIBRARIA_APP_ENV"
	EnvDBDSN  = "LIBRARIA_DB_DSN"
	EnvDBHost = "LIBRARIA_DB_HOST"
	EnvDBUser = "LIBRARIA_DB_USER"
	EnvDBName = "LIBRARIA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	AccessToken  AccessTokenConfig
	Reporter     ReporterConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Janitor      JanitorConfig
	Publisher    PublisherConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIBRARIA_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRARIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRARIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIBRARIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LIBRARIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LIBRARIA_DB_DSN"`
	Driver string `envconfig:"LIBRARIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIBRARIA_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRARIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRARIA_DB_USER"`
	LegacyPassword string `envconfig:"LIBRARIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRARIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRARIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRARIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRARIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRARIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRARIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIBRARIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIBRARIA_REDIS_ADDR"`
	Password     string        `envconfig:"LIBRARIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRARIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRARIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRARIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRARIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRARIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRARIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AccessTokenConfig signs the ebook access tokens minted per rental.
type AccessTokenConfig struct {
	Secret string `envconfig:"LIBRARIA_ACCESS_TOKEN_SECRET" required:"true"`
	Issuer string `envconfig:"LIBRARIA_ACCESS_TOKEN_ISSUER" default:"libraria-rentals"`
}

// ReporterConfig authenticates the client-side violation reporter. The key is
// stored as an Argon2id hash so a leaked config dump does not leak the key.
type ReporterConfig struct {
	APIKeyHash string `envconfig:"LIBRARIA_REPORTER_API_KEY_HASH"`
}

type RateLimitConfig struct {
	AccessWindow     time.Duration `envconfig:"LIBRARIA_RATE_LIMIT_ACCESS_WINDOW" default:"1m"`
	AccessBuyerLimit int           `envconfig:"LIBRARIA_RATE_LIMIT_ACCESS_BUYER_LIMIT" default:"60"`
	AccessIPLimit    int           `envconfig:"LIBRARIA_RATE_LIMIT_ACCESS_IP_LIMIT" default:"120"`
	ReportWindow     time.Duration `envconfig:"LIBRARIA_RATE_LIMIT_REPORT_WINDOW" default:"1m"`
	ReportBuyerLimit int           `envconfig:"LIBRARIA_RATE_LIMIT_REPORT_BUYER_LIMIT" default:"10"`
	ReportIPLimit    int           `envconfig:"LIBRARIA_RATE_LIMIT_REPORT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LIBRARIA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LIBRARIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LIBRARIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LIBRARIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"LIBRARIA_GCS_BUCKET_NAME"`
	DownloadURLExpiry time.Duration `envconfig:"LIBRARIA_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type PubSubConfig struct {
	AuditTopic string `envconfig:"LIBRARIA_PUBSUB_AUDIT_TOPIC" default:"lb-audit-events"`
}

type JanitorConfig struct {
	RentalExpiryInterval      time.Duration `envconfig:"LIBRARIA_JANITOR_RENTAL_EXPIRY_INTERVAL" default:"1h"`
	SubscriptionLapseInterval time.Duration `envconfig:"LIBRARIA_JANITOR_SUBSCRIPTION_LAPSE_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"LIBRARIA_JANITOR_LOCK_TTL" default:"5m"`
}

type PublisherConfig struct {
	BatchSize    int           `envconfig:"LIBRARIA_AUDIT_PUBLISH_BATCH_SIZE" default:"100"`
	PollInterval time.Duration `envconfig:"LIBRARIA_AUDIT_PUBLISH_POLL_INTERVAL" default:"500ms"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
