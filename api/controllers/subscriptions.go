package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/api/validators"
	"github.com/librariashqip/libraria-backend/internal/subscriptions"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

type subscriptionSlotRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	ContentID      string `json:"content_id" validate:"required"`
}

func (r subscriptionSlotRequest) toInput(buyerID uuid.UUID) (subscriptions.AcquireInput, error) {
	subID, err := uuid.Parse(strings.TrimSpace(r.SubscriptionID))
	if err != nil {
		return subscriptions.AcquireInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription_id")
	}

	contentID, err := uuid.Parse(strings.TrimSpace(r.ContentID))
	if err != nil {
		return subscriptions.AcquireInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content_id")
	}

	return subscriptions.AcquireInput{
		BuyerID:            buyerID,
		UserSubscriptionID: subID,
		ContentID:          contentID,
	}, nil
}

func subscriptionSlotHandler(logg *logger.Logger, status string, call func(r *http.Request, input subscriptions.AcquireInput) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		var payload subscriptionSlotRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := payload.toInput(buyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := call(r, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}

// SubscriptionAcquire claims one concurrency slot under the plan's cap.
func SubscriptionAcquire(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return serviceUnavailable(logg, "subscription service unavailable")
	}
	return subscriptionSlotHandler(logg, "acquired", func(r *http.Request, input subscriptions.AcquireInput) error {
		return svc.Acquire(r.Context(), input)
	})
}

// SubscriptionRelease returns a previously claimed slot.
func SubscriptionRelease(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return serviceUnavailable(logg, "subscription service unavailable")
	}
	return subscriptionSlotHandler(logg, "released", func(r *http.Request, input subscriptions.AcquireInput) error {
		return svc.Release(r.Context(), input)
	})
}

// SubscriptionStatus reports the buyer's standing against the cap.
func SubscriptionStatus(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		subID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("subscription_id")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription_id"))
			return
		}

		status, err := svc.CheckAccess(ctx, buyerID, subID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"has_access":       status.HasAccess,
			"slots_held":       status.SlotsHeld,
			"max_concurrent":   status.MaxConcurrent,
			"can_acquire_more": status.CanAcquireMore,
		})
	}
}
