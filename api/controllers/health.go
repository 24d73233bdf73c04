package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/redis"
	"github.com/librariashqip/libraria-backend/pkg/storage/gcs"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Libraria-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every backing store. Nil pingers are skipped so partial
// deployments (janitor without GCS, for one) can reuse the handler.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, gcsP gcs.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false

		ping := func(name string, fn func() error) {
			if err := fn(); err != nil {
				checks[name] = "unreachable"
				failed = true
				if logg != nil {
					logg.Error(r.Context(), "readiness."+name, err)
				}
				return
			}
			checks[name] = "ok"
		}

		if dbP != nil {
			ping("database", func() error { return dbP.Ping(ctx) })
		}
		if redisP != nil {
			ping("redis", func() error { return redisP.Ping(ctx) })
		}
		if gcsP != nil {
			ping("storage", func() error { return gcsP.Ping(ctx) })
		}

		w.Header().Set("X-Libraria-Env", cfg.App.Env)
		if failed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
