package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/metrics"
)

// Revoker applies forced state transitions on the ledger. Implemented
// by the rentals service; both operations are idempotent on terminal rentals.
type Revoker interface {
	Revoke(ctx context.Context, rentalID uuid.UUID) error
	Cancel(ctx context.Context, rentalID uuid.UUID) error
}

// ReportInput is one incoming event from a collaborator or the client-side
// violation reporter. Detail is opaque; the engine stores it verbatim.
type ReportInput struct {
	RentalID    *uuid.UUID
	BuyerID     uuid.UUID
	ContentID   uuid.UUID
	Kind        enums.AuditEventKind
	AmountCents *int64
	Detail      json.RawMessage
}

// Service appends audit events and drives revocation for the kinds that
// force a rental out of the active state.
type Service interface {
	Report(ctx context.Context, input ReportInput) (*models.AuditEvent, error)
	History(ctx context.Context, rentalID uuid.UUID) ([]models.AuditEvent, error)
	SetRevoker(revoker Revoker)
}

type service struct {
	repo    *Repository
	logg    *logger.Logger
	metrics *metrics.RentalMetrics
	revoker Revoker
	now     func() time.Time
}

// NewService builds the audit service. The revoker is attached after the
// rentals service exists; until then revoking events are log-only.
func NewService(repo *Repository, logg *logger.Logger, m *metrics.RentalMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo, logg: logg, metrics: m, now: time.Now}, nil
}

// SetRevoker wires the ledger in once it is constructed.
func (s *service) SetRevoker(revoker Revoker) {
	s.revoker = revoker
}

// Report appends the event, then applies any state transition the kind
// implies. The append is the source of truth: once it succeeds the caller
// gets the event back even if revocation could not be applied, because the
// ledger retries pending revocations on the next access check.
func (s *service) Report(ctx context.Context, input ReportInput) (*models.AuditEvent, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.ContentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content id is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid audit event kind %q", input.Kind))
	}
	if (input.Kind.IsRevoking() || input.Kind == enums.AuditEventRentalEnd) && input.RentalID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id is required for rental lifecycle events")
	}

	event := &models.AuditEvent{
		ID:          uuid.New(),
		RentalID:    input.RentalID,
		BuyerID:     input.BuyerID,
		ContentID:   input.ContentID,
		Kind:        input.Kind,
		AmountCents: input.AmountCents,
		Currency:    enums.CurrencyALL,
		Detail:      input.Detail,
		OccurredAt:  s.now().UTC(),
	}
	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "appending audit event")
	}

	if input.Kind.IsRevoking() {
		s.metrics.IncViolation(input.Kind.String())
	}
	s.applyTransition(ctx, input)

	return created, nil
}

// History returns the rental's full event stream for dispute review.
func (s *service) History(ctx context.Context, rentalID uuid.UUID) ([]models.AuditEvent, error) {
	if rentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}
	rows, err := s.repo.ListByRental(ctx, rentalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "listing audit events")
	}
	return rows, nil
}

// applyTransition never surfaces errors to the reporter; a failed transition
// leaves the logged event in place and the ledger picks the revocation up at
// the next access check.
func (s *service) applyTransition(ctx context.Context, input ReportInput) {
	if s.revoker == nil || input.RentalID == nil {
		return
	}

	var err error
	switch {
	case input.Kind.IsRevoking():
		err = s.revoker.Revoke(ctx, *input.RentalID)
	case input.Kind == enums.AuditEventRentalEnd:
		err = s.revoker.Cancel(ctx, *input.RentalID)
	default:
		return
	}

	if err != nil && s.logg != nil {
		ctx = s.logg.WithRentalID(ctx, input.RentalID.String())
		s.logg.Warn(ctx, fmt.Sprintf("deferred %s transition: %v", input.Kind, err))
	}
}
