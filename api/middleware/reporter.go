package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/pkg/config"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/security"
)

// ReporterKeyHeader carries the shared key violation reporters authenticate
// with. Only the Argon2id hash of the key is configured on the server.
const ReporterKeyHeader = "X-Reporter-Key"

// ReporterAuth gates the violation-report surface on the reporter key.
func ReporterAuth(cfg config.ReporterConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIKeyHash == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "violation reporting is not enabled"))
				return
			}

			key := strings.TrimSpace(r.Header.Get(ReporterKeyHeader))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing reporter key"))
				return
			}

			ok, err := security.VerifyAPIKey(key, cfg.APIKeyHash)
			if err != nil || !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid reporter key"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxReporter, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
