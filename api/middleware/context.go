package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxBuyerID  contextKey = "buyer_id"
	ctxReporter contextKey = "reporter"
)

// BuyerIDFromContext returns the buyer seated by the identity middleware, or
// uuid.Nil when the request carried none.
func BuyerIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxBuyerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// ReporterFromContext reports whether the request authenticated as a trusted
// violation reporter.
func ReporterFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(ctxReporter).(bool)
	return ok && v
}

// WithBuyerID injects the buyer identifier into the context.
func WithBuyerID(ctx context.Context, buyerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBuyerID, buyerID)
}
