package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// Repository owns subscription persistence. The concurrency counter is never
// read-modify-written: both directions ride guarded conditional updates so
// it can neither exceed the plan cap nor go below zero, no matter how many
// writers race.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindPlan returns one subscription plan, or nil when absent.
func (r *Repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var plan models.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindUserSubscription returns one purchased window, or nil when absent.
func (r *Repository) FindUserSubscription(ctx context.Context, id uuid.UUID) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindCurrentForBuyer returns the buyer's active window on a plan, if any.
func (r *Repository) FindCurrentForBuyer(ctx context.Context, buyerID, subscriptionID uuid.UUID, now time.Time) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND subscription_id = ? AND status = ? AND starts_at <= ? AND ends_at > ?",
			buyerID, subscriptionID, enums.UserSubscriptionStatusActive, now, now).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// CoversContent reports whether the plan's catalog includes the content.
func (r *Repository) CoversContent(ctx context.Context, subscriptionID, contentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionContent{}).
		Where("subscription_id = ? AND content_id = ?", subscriptionID, contentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Acquire claims one concurrency slot. Zero rows affected means the window
// is already at the plan cap, lapsed, or gone.
func (r *Repository) Acquire(ctx context.Context, id uuid.UUID, maxConcurrent int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserSubscription{}).
		Where("id = ? AND status = ? AND ends_at > ? AND current_access_count < ?",
			id, enums.UserSubscriptionStatusActive, now, maxConcurrent).
		Updates(map[string]any{
			"current_access_count":  gorm.Expr("current_access_count + 1"),
			"lifetime_access_count": gorm.Expr("lifetime_access_count + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release frees one concurrency slot. The guard keeps the counter from ever
// dipping below zero, so releasing an unheld slot is a harmless no-op.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserSubscription{}).
		Where("id = ? AND current_access_count > 0", id).
		UpdateColumn("current_access_count", gorm.Expr("current_access_count - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListLapsed returns active windows that have run past their end, for the
// janitor to flip.
func (r *Repository) ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.UserSubscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.UserSubscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", enums.UserSubscriptionStatusActive, asOf).
		Order("ends_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkExpired flips one active window to expired.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserSubscription{}).
		Where("id = ? AND status = ?", id, enums.UserSubscriptionStatusActive).
		UpdateColumn("status", enums.UserSubscriptionStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
