package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

const expiryBatchSize = 200

type rentalSweepRepository interface {
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Rental, error)
	TransitionState(ctx context.Context, id uuid.UUID, to enums.RentalState, updates map[string]any) (bool, error)
}

// RentalExpiryJobParams configures the expiry sweep.
type RentalExpiryJobParams struct {
	Logger     *logger.Logger
	RentalRepo rentalSweepRepository
}

// NewRentalExpiryJob constructs the rental expiry sweep. Expiry is enforced
// lazily at access-check time; this job catches rentals nobody ever comes
// back for, so reads on the ledger stay honest.
func NewRentalExpiryJob(params RentalExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.RentalRepo == nil {
		return nil, fmt.Errorf("rental repository required")
	}
	return &rentalExpiryJob{
		logg: params.Logger,
		repo: params.RentalRepo,
		now:  time.Now,
	}, nil
}

type rentalExpiryJob struct {
	logg *logger.Logger
	repo rentalSweepRepository
	now  func() time.Time
}

func (j *rentalExpiryJob) Name() string {
	return "rental_expiry"
}

func (j *rentalExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	var swept int
	var errs error

	for {
		batch, err := j.repo.ListExpired(ctx, asOf, expiryBatchSize)
		if err != nil {
			return fmt.Errorf("list expired rentals: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		var flippedAny bool
		for _, rental := range batch {
			flipped, err := j.repo.TransitionState(ctx, rental.ID, enums.RentalStateExpired, nil)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire rental %s: %w", rental.ID, err))
				continue
			}
			// Zero rows means an access check or a return got there first.
			if flipped {
				swept++
				flippedAny = true
			}
		}
		if !flippedAny {
			break
		}
		if len(batch) < expiryBatchSize {
			break
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "swept", swept), "rental expiry sweep complete")
	return errs
}
