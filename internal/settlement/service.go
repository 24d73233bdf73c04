package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/catalog"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReturnInput describes one physical return at the counter.
type ReturnInput struct {
	RentalID    uuid.UUID
	BuyerID     uuid.UUID
	ContentID   uuid.UUID
	Grade       enums.ConditionGrade
	DamageNotes *string
	TrackingRef *string
}

// Settlement is the persisted outcome of a return.
type Settlement struct {
	Rental    *models.Rental
	Breakdown *Breakdown
}

// Service settles hardcopy returns.
type Service interface {
	Return(ctx context.Context, input ReturnInput) (*Settlement, error)
}

type service struct {
	rentalRepo  *rentals.Repository
	contentRepo *catalog.Repository
	auditRepo   *audit.Repository
	tx          txRunner
	metrics     *metrics.RentalMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(
	rentalRepo *rentals.Repository,
	contentRepo *catalog.Repository,
	auditRepo *audit.Repository,
	tx txRunner,
	m *metrics.RentalMetrics,
	logg *logger.Logger,
) (Service, error) {
	if rentalRepo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if contentRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		rentalRepo:  rentalRepo,
		contentRepo: contentRepo,
		auditRepo:   auditRepo,
		tx:          tx,
		metrics:     m,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Return settles one hardcopy rental. The state flip, the refund columns,
// the inventory restore, and the full audit trail commit together or not at
// all. The guarded transition makes a concurrent double-return lose cleanly
// instead of refunding twice.
func (s *service) Return(ctx context.Context, input ReturnInput) (*Settlement, error) {
	if input.RentalID == uuid.Nil || input.BuyerID == uuid.Nil || input.ContentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental, buyer, and content ids are required")
	}
	if !input.Grade.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown condition grade")
	}

	now := s.now().UTC()
	var settled *Settlement

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRentals := s.rentalRepo.WithTx(tx)

		rental, err := txRentals.FindByIDForUpdate(ctx, input.RentalID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading rental")
		}
		if rental == nil || rental.BuyerID != input.BuyerID || rental.ContentID != input.ContentID {
			return pkgerrors.New(pkgerrors.CodeRentalNotFound, "rental not found")
		}
		if rental.Mode != enums.DeliveryModeHardcopy {
			return pkgerrors.New(pkgerrors.CodeValidation, "only hardcopy rentals are returned")
		}
		if rental.Returned || rental.State == enums.RentalStateReturned {
			return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "rental already settled")
		}
		if rental.State == enums.RentalStateRevoked {
			return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "rental is not returnable")
		}

		breakdown, err := Assess(input.Grade, rental.FeeCents, rental.GuaranteeCents, rental.EndsAt, now)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"return_condition": input.Grade,
			"refund_cents":     breakdown.RefundCents,
			"returned":         true,
		}
		if input.TrackingRef != nil {
			updates["tracking_ref"] = *input.TrackingRef
		}

		// An expired rental is still returnable; the guard below accepts
		// active rows only, so resurrect the expired case explicitly.
		flipped, err := txRentals.TransitionState(ctx, rental.ID, enums.RentalStateReturned, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "settling rental state")
		}
		if !flipped {
			if rental.State != enums.RentalStateExpired {
				return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "rental already settled")
			}
			updates["state"] = enums.RentalStateReturned
			result := tx.WithContext(ctx).Model(&models.Rental{}).
				Where("id = ? AND state = ? AND returned = ?", rental.ID, enums.RentalStateExpired, false).
				Updates(updates)
			if result.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDatabase, result.Error, "settling expired rental")
			}
			if result.RowsAffected == 0 {
				return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "rental already settled")
			}
		}

		if err := s.contentRepo.WithTx(tx).RestoreInventory(ctx, rental.ContentID); err != nil {
			return err
		}

		if err := s.writeTrail(ctx, tx, rental, breakdown, input, now); err != nil {
			return err
		}

		rental.State = enums.RentalStateReturned
		grade := input.Grade
		rental.ReturnCondition = &grade
		refund := breakdown.RefundCents
		rental.RefundCents = &refund
		rental.Returned = true
		rental.TrackingRef = input.TrackingRef
		settled = &Settlement{Rental: rental, Breakdown: breakdown}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "settling return")
	}

	s.metrics.ObserveSettlement(input.Grade.String(), settled.Breakdown.RefundCents)
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("settled return: grade=%s refund=%d late_days=%d",
			input.Grade, settled.Breakdown.RefundCents, settled.Breakdown.DaysLate))
	}
	return settled, nil
}

// writeTrail appends the settlement's audit events in their fixed order.
// Conditional entries keep their slot: damage before late fee, both before
// the refund, completion last.
func (s *service) writeTrail(ctx context.Context, tx *gorm.DB, rental *models.Rental, breakdown *Breakdown, input ReturnInput, now time.Time) error {
	txAudit := s.auditRepo.WithTx(tx)

	record := func(kind enums.AuditEventKind, amount *int64, detail json.RawMessage) error {
		_, err := txAudit.Create(ctx, &models.AuditEvent{
			ID:          uuid.New(),
			RentalID:    &rental.ID,
			BuyerID:     rental.BuyerID,
			ContentID:   rental.ContentID,
			Kind:        kind,
			AmountCents: amount,
			Currency:    rental.Currency,
			Detail:      detail,
			OccurredAt:  now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "appending settlement event")
		}
		return nil
	}

	returnDetail, _ := json.Marshal(map[string]any{"grade": breakdown.Grade})
	if err := record(enums.AuditEventBookReturned, nil, returnDetail); err != nil {
		return err
	}

	if breakdown.Damaged() {
		detail := map[string]any{"grade": breakdown.Grade}
		if input.DamageNotes != nil {
			detail["notes"] = *input.DamageNotes
		}
		raw, _ := json.Marshal(detail)
		deduction := breakdown.DeductionCents
		if err := record(enums.AuditEventDamageAssessed, &deduction, raw); err != nil {
			return err
		}
	}

	if breakdown.Late() {
		raw, _ := json.Marshal(map[string]any{"days_late": breakdown.DaysLate})
		lateFee := breakdown.LateFeeCents
		if err := record(enums.AuditEventLateFeeCharged, &lateFee, raw); err != nil {
			return err
		}
	}

	refund := breakdown.RefundCents
	if err := record(enums.AuditEventGuaranteeRefunded, &refund, nil); err != nil {
		return err
	}
	return record(enums.AuditEventRentalCompleted, nil, nil)
}
