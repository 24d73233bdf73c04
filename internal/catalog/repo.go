package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

// Repository reads the engine's view of the catalog and owns the hardcopy
// inventory counter.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID returns one content row, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	var content models.Content
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &content, nil
}

// DecrementInventory takes one physical copy. The guard rides in the WHERE
// clause so two concurrent rentals can never oversell the last copy; zero
// rows affected means no stock.
func (r *Repository) DecrementInventory(ctx context.Context, contentID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Content{}).
		Where("id = ? AND inventory > 0", contentID).
		UpdateColumn("inventory", gorm.Expr("inventory - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeContentUnavailable, "no physical copies in stock")
	}
	return nil
}

// RestoreInventory puts one physical copy back after a return.
func (r *Repository) RestoreInventory(ctx context.Context, contentID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Content{}).
		Where("id = ?", contentID).
		UpdateColumn("inventory", gorm.Expr("inventory + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	return nil
}
