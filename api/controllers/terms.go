package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/api/validators"
	"github.com/librariashqip/libraria-backend/internal/terms"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

// TermsStatus reports whether the buyer has accepted the active terms for a
// category, and returns the version they would need to accept.
func TermsStatus(svc terms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "terms service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		category, err := enums.ParseTermsCategory(strings.TrimSpace(r.URL.Query().Get("category")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown terms category"))
			return
		}

		status, err := svc.CheckAcceptance(ctx, buyerID, category)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := map[string]any{
			"category": category,
			"accepted": status.Accepted,
		}
		if status.ActiveTerms != nil {
			body["active_terms"] = map[string]any{
				"id":           status.ActiveTerms.ID,
				"category":     status.ActiveTerms.Category,
				"body":         status.ActiveTerms.Body,
				"effective_at": status.ActiveTerms.EffectiveAt,
			}
		}
		responses.WriteSuccess(w, body)
	}
}

type termsAcceptRequest struct {
	TermsVersionID      string `json:"terms_version_id" validate:"required"`
	ConfirmedRead       bool   `json:"confirmed_read"`
	ConfirmedUnderstood bool   `json:"confirmed_understood"`
}

// TermsAccept records the buyer's double confirmation of one terms version.
func TermsAccept(svc terms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "terms service unavailable"))
			return
		}

		buyerID := middleware.BuyerIDFromContext(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
			return
		}

		var payload termsAcceptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		versionID, err := uuid.Parse(strings.TrimSpace(payload.TermsVersionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid terms_version_id"))
			return
		}

		acceptance, err := svc.RecordAcceptance(ctx, buyerID, terms.AcceptInput{
			TermsVersionID:      versionID,
			ConfirmedRead:       payload.ConfirmedRead,
			ConfirmedUnderstood: payload.ConfirmedUnderstood,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"terms_version_id": acceptance.TermsVersionID,
			"accepted_at":      acceptance.AcceptedAt.Format(time.RFC3339),
		})
	}
}
