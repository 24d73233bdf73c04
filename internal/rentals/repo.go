package rentals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	"github.com/librariashqip/libraria-backend/pkg/pagination"
)

// Repository owns rental persistence. State transitions out of ACTIVE ride a
// guarded conditional update so concurrent writers cannot double-apply them;
// the partial unique index on (buyer, content, mode) enforces the single
// active rental invariant at insert time.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a rentals repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new rental row. A unique violation on the active-rental
// index surfaces as a database error the service translates.
func (r *Repository) Create(ctx context.Context, rental *models.Rental) (*models.Rental, error) {
	if err := r.db.WithContext(ctx).Create(rental).Error; err != nil {
		return nil, err
	}
	return rental, nil
}

// FindByID returns one rental, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rental).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rental, nil
}

// FindByIDForUpdate locks the rental row for the rest of the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&rental).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rental, nil
}

// FindActive returns the buyer's open rental for a content and mode, if any.
func (r *Repository) FindActive(ctx context.Context, buyerID, contentID uuid.UUID, mode enums.DeliveryMode) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND content_id = ? AND mode = ? AND state = ?", buyerID, contentID, mode, enums.RentalStateActive).
		First(&rental).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rental, nil
}

// ListActiveByBuyerContent returns every open rental the buyer holds on a
// content item across modes.
func (r *Repository) ListActiveByBuyerContent(ctx context.Context, buyerID, contentID uuid.UUID) ([]models.Rental, error) {
	var rows []models.Rental
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND content_id = ? AND state = ?", buyerID, contentID, enums.RentalStateActive).
		Find(&rows).Error
	return rows, err
}

type listQuery struct {
	buyerID    uuid.UUID
	activeOnly bool
	cursor     *pagination.Cursor
	limit      int
}

// List returns buyer-scoped rentals using cursor pagination, newest first.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Rental, error) {
	query := r.db.WithContext(ctx).Model(&models.Rental{}).Where("buyer_id = ?", opts.buyerID)

	if opts.activeOnly {
		query = query.Where("state = ?", enums.RentalStateActive)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Rental
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionState moves an ACTIVE rental to a terminal state. Zero rows
// affected means the rental was already terminal or missing; callers decide
// whether that is an error.
func (r *Repository) TransitionState(ctx context.Context, id uuid.UUID, to enums.RentalState, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["state"] = to

	result := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ? AND state = ?", id, enums.RentalStateActive).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchAccess bumps the access counter and last-access stamp, guarded on the
// rental still being active and inside its window.
func (r *Repository) TouchAccess(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ? AND state = ? AND ends_at > ?", id, enums.RentalStateActive, now).
		Updates(map[string]any{
			"access_count":   gorm.Expr("access_count + 1"),
			"last_access_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordPlaySession accumulates audio listening stats on an active rental.
func (r *Repository) RecordPlaySession(ctx context.Context, id uuid.UUID, seconds int64, completed bool, now time.Time) (bool, error) {
	updates := map[string]any{
		"play_seconds":   gorm.Expr("play_seconds + ?", seconds),
		"play_sessions":  gorm.Expr("play_sessions + 1"),
		"last_access_at": now,
	}
	if completed {
		updates["completed"] = true
	}

	result := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ? AND state = ? AND ends_at > ?", id, enums.RentalStateActive, now).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpired returns active rentals whose window has elapsed, for the
// janitor's reporting sweep.
func (r *Repository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Rental, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Rental
	err := r.db.WithContext(ctx).
		Where("state = ? AND ends_at <= ?", enums.RentalStateActive, asOf).
		Order("ends_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// HasUnappliedRevocation reports whether a revoking event was logged for the
// rental. Consulted at access-check time so a revocation that failed to apply
// synchronously still takes effect.
func (r *Repository) HasUnappliedRevocation(ctx context.Context, rentalID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AuditEvent{}).
		Where("rental_id = ? AND kind IN ?", rentalID, []enums.AuditEventKind{
			enums.AuditEventSecurityViolation,
			enums.AuditEventSuspiciousActivity,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
