package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
)

type stubSubscriptionSweepRepo struct {
	pending []models.UserSubscription
	flipped map[uuid.UUID]bool
}

func (s *stubSubscriptionSweepRepo) ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.UserSubscription, error) {
	var out []models.UserSubscription
	for _, sub := range s.pending {
		if s.flipped[sub.ID] {
			continue
		}
		out = append(out, sub)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubSubscriptionSweepRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.flipped == nil {
		s.flipped = map[uuid.UUID]bool{}
	}
	if s.flipped[id] {
		return false, nil
	}
	s.flipped[id] = true
	return true, nil
}

func TestSubscriptionLapseJobFlipsWindows(t *testing.T) {
	repo := &stubSubscriptionSweepRepo{
		pending: []models.UserSubscription{
			{ID: uuid.New(), Status: enums.UserSubscriptionStatusActive},
			{ID: uuid.New(), Status: enums.UserSubscriptionStatusActive},
		},
		flipped: map[uuid.UUID]bool{},
	}
	job, err := NewSubscriptionLapseJob(SubscriptionLapseJobParams{Logger: expiryTestLogger(), SubscriptionRepo: repo})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.flipped) != 2 {
		t.Fatalf("flipped = %d, want 2", len(repo.flipped))
	}

	// A second run finds nothing left to do.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestSubscriptionLapseJobRequiresDeps(t *testing.T) {
	if _, err := NewSubscriptionLapseJob(SubscriptionLapseJobParams{Logger: expiryTestLogger()}); err == nil {
		t.Fatal("expected missing repository to be rejected")
	}
}
