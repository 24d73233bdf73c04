package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
)

// Repository reads the paid purchase lines the payment flow wrote. The engine
// never mutates order items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an orders repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindPaidRentalItem returns the order item only when it is paid, flagged as
// a rental, and belongs to the given buyer and content. Anything else is nil.
func (r *Repository) FindPaidRentalItem(ctx context.Context, id, buyerID, contentID uuid.UUID) (*models.RentalOrderItem, error) {
	var item models.RentalOrderItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND buyer_id = ? AND content_id = ?", id, buyerID, contentID).
		Where("is_rental = ? AND paid = ?", true, true).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByID returns one order item row regardless of payment state.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RentalOrderItem, error) {
	var item models.RentalOrderItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
