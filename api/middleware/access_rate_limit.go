package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/responses"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AccessRateLimitPolicy throttles one adversarial surface per client IP and
// per buyer inside a fixed window.
type AccessRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int64
	buyerLimit int64
}

// NewAccessRateLimitPolicy builds a policy with the supplied window and limits.
func NewAccessRateLimitPolicy(name string, window time.Duration, ipLimit, buyerLimit int64) AccessRateLimitPolicy {
	return AccessRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		buyerLimit: buyerLimit,
	}
}

func (p AccessRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.buyerLimit > 0)
}

func (p AccessRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "access"
	}
	return p.name
}

func (p AccessRateLimitPolicy) ipScope(ip string) string {
	if ip == "" {
		return ""
	}
	return fmt.Sprintf("ip:%s:%s", p.normalizedName(), ip)
}

func (p AccessRateLimitPolicy) buyerScope(buyerID string) string {
	if buyerID == "" {
		return ""
	}
	return fmt.Sprintf("buyer:%s:%s", p.normalizedName(), buyerID)
}

// AccessRateLimit throttles a surface per IP and per buyer. Access checks and
// violation reports are probe targets; the limiter fails open when the store
// is down so availability never hangs on Redis.
func AccessRateLimit(policy AccessRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if scope := policy.ipScope(clientIP(r)); scope != "" {
					allowed, _, err := store.FixedWindowAllow(ctx, scope, policy.ipLimit, policy.window)
					if err != nil {
						if logg != nil {
							logg.Warn(ctx, fmt.Sprintf("rate limiter unavailable, failing open: %v", err))
						}
					} else if !allowed {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
						return
					}
				}
			}

			if policy.buyerLimit > 0 {
				if buyerID := BuyerIDFromContext(ctx); buyerID != uuid.Nil {
					scope := policy.buyerScope(buyerID.String())
					allowed, _, err := store.FixedWindowAllow(ctx, scope, policy.buyerLimit, policy.window)
					if err != nil {
						if logg != nil {
							logg.Warn(ctx, fmt.Sprintf("rate limiter unavailable, failing open: %v", err))
						}
					} else if !allowed {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
