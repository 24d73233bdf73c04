package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/metrics"
)

// AcquireInput asks for one concurrent access slot against a content item.
type AcquireInput struct {
	BuyerID            uuid.UUID
	UserSubscriptionID uuid.UUID
	ContentID          uuid.UUID
}

// AccessStatus is the throttle's answer to "where does this buyer stand".
type AccessStatus struct {
	HasAccess      bool
	SlotsHeld      int
	MaxConcurrent  int
	CanAcquireMore bool
}

// Service is the subscription throttle: it hands out and takes back
// concurrency slots under the plan's cap.
type Service interface {
	Acquire(ctx context.Context, input AcquireInput) error
	Release(ctx context.Context, input AcquireInput) error
	CheckAccess(ctx context.Context, buyerID, userSubscriptionID uuid.UUID) (*AccessStatus, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      *Repository
	auditRepo *audit.Repository
	tx        txRunner
	metrics   *metrics.RentalMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(repo *Repository, auditRepo *audit.Repository, tx txRunner, m *metrics.RentalMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		auditRepo: auditRepo,
		tx:        tx,
		metrics:   m,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Acquire claims a slot. The counter moves through a guarded update keyed on
// the plan cap; when every slot is taken the claim is rejected, never queued.
func (s *service) Acquire(ctx context.Context, input AcquireInput) error {
	sub, plan, err := s.loadCurrent(ctx, input.BuyerID, input.UserSubscriptionID)
	if err != nil {
		return err
	}

	covered, err := s.repo.CoversContent(ctx, sub.SubscriptionID, input.ContentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "checking catalog membership")
	}
	if !covered {
		return pkgerrors.New(pkgerrors.CodeContentUnavailable, "content is not in the subscription catalog")
	}

	// The counter move and its ACCESS_START event commit or roll back as one.
	acquired := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		acquired, txErr = s.repo.WithTx(tx).Acquire(ctx, sub.ID, plan.MaxConcurrent, s.now().UTC())
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, txErr, "acquiring access slot")
		}
		if !acquired {
			return nil
		}
		return s.appendEvent(ctx, tx, input, enums.AuditEventAccessStart)
	})
	if err != nil {
		return err
	}
	s.metrics.IncSubscriptionAcquire(acquired)
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "concurrent access limit reached").
			WithDetails(map[string]any{"max_concurrent": plan.MaxConcurrent})
	}
	return nil
}

// Release frees a slot. Releasing more than was held is absorbed by the
// counter's floor, so double-release from a crashed client is safe.
func (s *service) Release(ctx context.Context, input AcquireInput) error {
	sub, _, err := s.loadCurrent(ctx, input.BuyerID, input.UserSubscriptionID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		released, txErr := s.repo.WithTx(tx).Release(ctx, sub.ID)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, txErr, "releasing access slot")
		}
		if !released {
			return nil
		}
		return s.appendEvent(ctx, tx, input, enums.AuditEventAccessEnd)
	})
}

// CheckAccess reports the buyer's standing without moving the counter.
func (s *service) CheckAccess(ctx context.Context, buyerID, userSubscriptionID uuid.UUID) (*AccessStatus, error) {
	sub, plan, err := s.loadCurrent(ctx, buyerID, userSubscriptionID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return &AccessStatus{}, nil
		}
		return nil, err
	}

	return &AccessStatus{
		HasAccess:      true,
		SlotsHeld:      sub.CurrentAccessCount,
		MaxConcurrent:  plan.MaxConcurrent,
		CanAcquireMore: sub.CurrentAccessCount < plan.MaxConcurrent,
	}, nil
}

func (s *service) loadCurrent(ctx context.Context, buyerID, userSubscriptionID uuid.UUID) (*models.UserSubscription, *models.Subscription, error) {
	if buyerID == uuid.Nil || userSubscriptionID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and subscription ids are required")
	}

	sub, err := s.repo.FindUserSubscription(ctx, userSubscriptionID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading subscription window")
	}
	if sub == nil || sub.BuyerID != buyerID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if !sub.IsCurrentAt(s.now().UTC()) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription window is not current")
	}

	plan, err := s.repo.FindPlan(ctx, sub.SubscriptionID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading subscription plan")
	}
	if plan == nil || !plan.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription plan is not available")
	}
	return sub, plan, nil
}

func (s *service) appendEvent(ctx context.Context, tx *gorm.DB, input AcquireInput, kind enums.AuditEventKind) error {
	_, err := s.auditRepo.WithTx(tx).Create(ctx, &models.AuditEvent{
		ID:         uuid.New(),
		BuyerID:    input.BuyerID,
		ContentID:  input.ContentID,
		Kind:       kind,
		Currency:   enums.CurrencyALL,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, fmt.Sprintf("appending %s event", kind))
	}
	return nil
}
