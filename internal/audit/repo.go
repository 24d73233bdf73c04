package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
)

// Repository persists the append-only audit stream. There is deliberately no
// update or delete of event payloads; MarkPublished touches only the fan-out
// bookkeeping column.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an audit repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create appends one event.
func (r *Repository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// ListByRental returns the rental's events oldest first, the order a dispute
// reviewer reads them in.
func (r *Repository) ListByRental(ctx context.Context, rentalID uuid.UUID) ([]models.AuditEvent, error) {
	var rows []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Order("occurred_at ASC").Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListUnpublished returns events the fan-out publisher has not yet shipped.
func (r *Repository) ListUnpublished(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPublished stamps the fan-out time on shipped events.
func (r *Repository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.AuditEvent{}).
		Where("id IN ?", ids).
		Update("published_at", at).Error
}
