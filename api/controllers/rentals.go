package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/api/validators"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/internal/settlement"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/pagination"
	"github.com/librariashqip/libraria-backend/pkg/types"
)

type rentalCreateRequest struct {
	ContentID       string         `json:"content_id" validate:"required"`
	OrderItemID     string         `json:"order_item_id" validate:"required"`
	Mode            string         `json:"mode" validate:"required"`
	Tier            string         `json:"tier" validate:"required"`
	ShippingAddress *types.Address `json:"shipping_address"`
}

func (r rentalCreateRequest) toInput(buyerID uuid.UUID) (rentals.CreateInput, error) {
	contentID, err := uuid.Parse(strings.TrimSpace(r.ContentID))
	if err != nil {
		return rentals.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content_id")
	}

	orderItemID, err := uuid.Parse(strings.TrimSpace(r.OrderItemID))
	if err != nil {
		return rentals.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_item_id")
	}

	mode, err := enums.ParseDeliveryMode(strings.TrimSpace(r.Mode))
	if err != nil {
		return rentals.CreateInput{}, pkgerrors.New(pkgerrors.CodeInvalidMode, "unknown delivery mode")
	}

	tier, err := enums.ParseRentalTier(strings.TrimSpace(r.Tier))
	if err != nil {
		return rentals.CreateInput{}, pkgerrors.New(pkgerrors.CodeInvalidTier, "unknown rental tier")
	}

	return rentals.CreateInput{
		BuyerID:         buyerID,
		ContentID:       contentID,
		OrderItemID:     orderItemID,
		Mode:            mode,
		Tier:            tier,
		ShippingAddress: r.ShippingAddress,
	}, nil
}

type rentalResponse struct {
	ID             uuid.UUID             `json:"id"`
	ContentID      uuid.UUID             `json:"content_id"`
	Mode           enums.DeliveryMode    `json:"mode"`
	Tier           enums.RentalTier      `json:"tier"`
	State          enums.RentalState     `json:"state"`
	FeeCents       int64                 `json:"fee_cents"`
	GuaranteeCents int64                 `json:"guarantee_cents"`
	Currency       enums.Currency        `json:"currency"`
	StartsAt       time.Time             `json:"starts_at"`
	EndsAt         time.Time             `json:"ends_at"`
	Returned       bool                  `json:"returned,omitempty"`
	RefundCents    *int64                `json:"refund_cents,omitempty"`
	Condition      *enums.ConditionGrade `json:"return_condition,omitempty"`
	PlaySeconds    int64                 `json:"play_seconds,omitempty"`
}

func rentalResponseFromModel(m *models.Rental) rentalResponse {
	return rentalResponse{
		ID:             m.ID,
		ContentID:      m.ContentID,
		Mode:           m.Mode,
		Tier:           m.Tier,
		State:          m.State,
		FeeCents:       m.FeeCents,
		GuaranteeCents: m.GuaranteeCents,
		Currency:       m.Currency,
		StartsAt:       m.StartsAt,
		EndsAt:         m.EndsAt,
		Returned:       m.Returned,
		RefundCents:    m.RefundCents,
		Condition:      m.ReturnCondition,
		PlaySeconds:    m.PlaySeconds,
	}
}

// RentalCreate opens a rental for the authenticated buyer. For ebooks the
// response carries the bearer token; it is never retrievable again.
func RentalCreate(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		var payload rentalCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := payload.toInput(buyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateRental(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := map[string]any{"rental": rentalResponseFromModel(result.Rental)}
		if result.AccessToken != "" {
			body["access_token"] = result.AccessToken
		}
		responses.WriteSuccess(w, body)
	}
}

type rentalAccessRequest struct {
	RentalID  string `json:"rental_id" validate:"required"`
	ContentID string `json:"content_id" validate:"required"`
	Mode      string `json:"mode" validate:"required"`
	Token     string `json:"token"`
}

// RentalAccess validates one access attempt and, when granted, returns a
// short-lived content locator. Every failure maps to the same denial.
func RentalAccess(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	denied := func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeAccessDenied, "access denied"))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		var payload rentalAccessRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Malformed identifiers get the opaque denial, not a validation
		// message that would reveal which field was wrong.
		rentalID, err := uuid.Parse(strings.TrimSpace(payload.RentalID))
		if err != nil {
			denied(w, r)
			return
		}
		contentID, err := uuid.Parse(strings.TrimSpace(payload.ContentID))
		if err != nil {
			denied(w, r)
			return
		}
		mode, err := enums.ParseDeliveryMode(strings.TrimSpace(payload.Mode))
		if err != nil {
			denied(w, r)
			return
		}

		grant, err := svc.CheckAccess(ctx, rentals.AccessInput{
			BuyerID:   buyerID,
			ContentID: contentID,
			RentalID:  rentalID,
			Mode:      mode,
			Token:     payload.Token,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := map[string]any{
			"rental_id":  grant.RentalID,
			"mode":       grant.Mode,
			"expires_at": grant.ExpiresAt,
		}
		if grant.ContentURL != "" {
			body["content_url"] = grant.ContentURL
		}
		responses.WriteSuccess(w, body)
	}
}

type rentalReturnRequest struct {
	ContentID   string  `json:"content_id" validate:"required"`
	Condition   string  `json:"condition" validate:"required"`
	DamageNotes *string `json:"damage_notes"`
	TrackingRef *string `json:"tracking_ref"`
}

// RentalReturn settles a hardcopy return: grades the copy, applies late
// fees, refunds the guarantee remainder, and restores inventory.
func RentalReturn(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		rentalID, err := uuid.Parse(chi.URLParam(r, "rentalID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		var payload rentalReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		grade, err := enums.ParseConditionGrade(strings.TrimSpace(payload.Condition))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown condition grade"))
			return
		}

		contentID, err := uuid.Parse(strings.TrimSpace(payload.ContentID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content_id"))
			return
		}

		result, err := svc.Return(ctx, settlement.ReturnInput{
			RentalID:    rentalID,
			BuyerID:     buyerID,
			ContentID:   contentID,
			Grade:       grade,
			DamageNotes: payload.DamageNotes,
			TrackingRef: payload.TrackingRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"rental": rentalResponseFromModel(result.Rental),
			"settlement": map[string]any{
				"condition":          result.Breakdown.Grade,
				"guarantee_cents":    result.Breakdown.GuaranteeCents,
				"grade_refund_cents": result.Breakdown.GradeRefundCents,
				"deduction_cents":    result.Breakdown.DeductionCents,
				"days_late":          result.Breakdown.DaysLate,
				"late_fee_cents":     result.Breakdown.LateFeeCents,
				"refund_cents":       result.Breakdown.RefundCents,
			},
		})
	}
}

// RentalCancel voluntarily ends one of the buyer's rentals.
func RentalCancel(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		rentalID, err := uuid.Parse(chi.URLParam(r, "rentalID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		if err := svc.CancelForBuyer(ctx, buyerID, rentalID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type playSessionRequest struct {
	ContentID string `json:"content_id" validate:"required"`
	Seconds   int64  `json:"seconds" validate:"required,gt=0"`
	Completed bool   `json:"completed"`
}

// RentalPlaySession accumulates listening time on an audio rental.
func RentalPlaySession(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		rentalID, err := uuid.Parse(chi.URLParam(r, "rentalID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		var payload playSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		contentID, err := uuid.Parse(strings.TrimSpace(payload.ContentID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content_id"))
			return
		}

		err = svc.RecordPlaySession(ctx, rentals.PlaySessionInput{
			BuyerID:   buyerID,
			ContentID: contentID,
			RentalID:  rentalID,
			Seconds:   payload.Seconds,
			Completed: payload.Completed,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

func rentalListHandler(logg *logger.Logger, list func(r *http.Request, buyerID uuid.UUID, params pagination.Params) (*rentals.ListResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := list(r, buyerID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]rentalResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, rentalResponseFromModel(&result.Items[i]))
		}

		responses.WriteSuccess(w, map[string]any{
			"rentals":     items,
			"next_cursor": result.NextCursor,
		})
	}
}

// RentalHistory returns the buyer's rentals across all states, newest first.
func RentalHistory(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return serviceUnavailable(logg, "rental service unavailable")
	}
	return rentalListHandler(logg, func(r *http.Request, buyerID uuid.UUID, params pagination.Params) (*rentals.ListResult, error) {
		return svc.History(r.Context(), buyerID, params)
	})
}

// RentalActive returns only the buyer's open rentals.
func RentalActive(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return serviceUnavailable(logg, "rental service unavailable")
	}
	return rentalListHandler(logg, func(r *http.Request, buyerID uuid.UUID, params pagination.Params) (*rentals.ListResult, error) {
		return svc.Active(r.Context(), buyerID, params)
	})
}

// ContentAvailability quotes every rentable mode and tier for one content
// item, plus the buyer's current standing against it.
func ContentAvailability(fc rentals.Facade, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if fc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rental facade unavailable"))
			return
		}

		contentID, err := uuid.Parse(chi.URLParam(r, "contentID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content id"))
			return
		}

		availability, err := fc.Availability(ctx, contentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := map[string]any{
			"content_id":       availability.ContentID,
			"title":            availability.Title,
			"currency":         availability.Currency,
			"offers":           availability.Offers,
			"recommended_mode": availability.RecommendedMode,
		}

		if buyerID := middleware.BuyerIDFromContext(ctx); buyerID != uuid.Nil {
			summary, err := fc.ActiveSummary(ctx, buyerID, contentID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			active := make([]rentalResponse, 0, len(summary.Rentals))
			for i := range summary.Rentals {
				active = append(active, rentalResponseFromModel(&summary.Rentals[i]))
			}
			body["active_rentals"] = active
		}

		responses.WriteSuccess(w, body)
	}
}

func serviceUnavailable(logg *logger.Logger, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
