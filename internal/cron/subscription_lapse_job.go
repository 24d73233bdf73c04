package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

const lapseBatchSize = 200

type subscriptionSweepRepository interface {
	ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.UserSubscription, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

// SubscriptionLapseJobParams configures the lapse sweep.
type SubscriptionLapseJobParams struct {
	Logger           *logger.Logger
	SubscriptionRepo subscriptionSweepRepository
}

// NewSubscriptionLapseJob constructs the subscription lapse sweep. Windows
// past their end stop granting access immediately through the window check;
// the flip here keeps reporting and billing views in agreement.
func NewSubscriptionLapseJob(params SubscriptionLapseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	return &subscriptionLapseJob{
		logg: params.Logger,
		repo: params.SubscriptionRepo,
		now:  time.Now,
	}, nil
}

type subscriptionLapseJob struct {
	logg *logger.Logger
	repo subscriptionSweepRepository
	now  func() time.Time
}

func (j *subscriptionLapseJob) Name() string {
	return "subscription_lapse"
}

func (j *subscriptionLapseJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	var flippedTotal int
	var errs error

	for {
		batch, err := j.repo.ListLapsed(ctx, asOf, lapseBatchSize)
		if err != nil {
			return fmt.Errorf("list lapsed subscriptions: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		var flippedAny bool
		for _, sub := range batch {
			flipped, err := j.repo.MarkExpired(ctx, sub.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire subscription %s: %w", sub.ID, err))
				continue
			}
			if flipped {
				flippedTotal++
				flippedAny = true
			}
		}
		if !flippedAny {
			break
		}
		if len(batch) < lapseBatchSize {
			break
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "flipped", flippedTotal), "subscription lapse sweep complete")
	return errs
}
