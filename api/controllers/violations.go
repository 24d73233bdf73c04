package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/api/responses"
	"github.com/librariashqip/libraria-backend/api/validators"
	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

type violationReportRequest struct {
	BuyerID   string          `json:"buyer_id" validate:"required"`
	ContentID string          `json:"content_id" validate:"required"`
	RentalID  *string         `json:"rental_id"`
	Kind      string          `json:"kind" validate:"required"`
	Detail    json.RawMessage `json:"detail"`
}

// ViolationReport accepts an event from an authenticated reporter, appends
// it to the audit trail, and revokes the rental when the kind demands it.
func ViolationReport(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		if !middleware.ReporterFromContext(ctx) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "reporter context missing"))
			return
		}

		var payload violationReportRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		buyerID, err := uuid.Parse(strings.TrimSpace(payload.BuyerID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer_id"))
			return
		}

		contentID, err := uuid.Parse(strings.TrimSpace(payload.ContentID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content_id"))
			return
		}

		kind, err := enums.ParseAuditEventKind(strings.TrimSpace(payload.Kind))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown event kind"))
			return
		}

		input := audit.ReportInput{
			BuyerID:   buyerID,
			ContentID: contentID,
			Kind:      kind,
			Detail:    payload.Detail,
		}
		if payload.RentalID != nil {
			rentalID, err := uuid.Parse(strings.TrimSpace(*payload.RentalID))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental_id"))
				return
			}
			input.RentalID = &rentalID
		}

		event, err := svc.Report(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"event_id":    event.ID,
			"kind":        event.Kind,
			"occurred_at": event.OccurredAt,
		})
	}
}
