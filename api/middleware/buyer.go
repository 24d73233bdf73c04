package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/responses"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

// BuyerHeader carries the caller's identity. Authentication happens upstream
// at the storefront gateway; the engine trusts the header and only validates
// its shape.
const BuyerHeader = "X-Buyer-Id"

// BuyerIdentity seeds the request context with the buyer from the identity
// header. Requests without a parseable buyer are rejected before any handler
// runs.
func BuyerIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(BuyerHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing buyer identity"))
				return
			}

			buyerID, err := uuid.Parse(raw)
			if err != nil || buyerID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid buyer identity"))
				return
			}

			ctx := WithBuyerID(r.Context(), buyerID)
			if logg != nil {
				ctx = logg.WithBuyerID(ctx, buyerID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
