package terms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// Repository exposes terms persistence operations. Acceptances are an
// append-only table; no update or delete exists here on purpose.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a terms repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindActiveVersion returns the single active version for a category, or nil
// when none is configured.
func (r *Repository) FindActiveVersion(ctx context.Context, category enums.TermsCategory) (*models.TermsVersion, error) {
	var version models.TermsVersion
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

// FindLatestVersion returns the newest version for a category by effective
// date, active or not.
func (r *Repository) FindLatestVersion(ctx context.Context, category enums.TermsCategory) (*models.TermsVersion, error) {
	var version models.TermsVersion
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("effective_at DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

// FindVersionByID returns one version row.
func (r *Repository) FindVersionByID(ctx context.Context, id uuid.UUID) (*models.TermsVersion, error) {
	var version models.TermsVersion
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

// HasValidAcceptance reports whether the buyer holds a confirming acceptance
// of the given version dated at or after its effective timestamp.
func (r *Repository) HasValidAcceptance(ctx context.Context, buyerID, versionID uuid.UUID, effectiveAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TermsAcceptance{}).
		Where("buyer_id = ? AND terms_version_id = ?", buyerID, versionID).
		Where("confirmed_read = ? AND confirmed_understood = ?", true, true).
		Where("accepted_at >= ?", effectiveAt).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestAcceptanceForCategory returns the buyer's most recent acceptance of
// any version in the category, or nil when none exists.
func (r *Repository) LatestAcceptanceForCategory(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (*models.TermsAcceptance, error) {
	var acceptance models.TermsAcceptance
	err := r.db.WithContext(ctx).
		Joins("JOIN terms_versions ON terms_versions.id = terms_acceptances.terms_version_id").
		Where("terms_acceptances.buyer_id = ? AND terms_versions.category = ?", buyerID, category).
		Order("terms_acceptances.accepted_at DESC").
		First(&acceptance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acceptance, nil
}

// CreateAcceptance appends a new acceptance row.
func (r *Repository) CreateAcceptance(ctx context.Context, acceptance *models.TermsAcceptance) (*models.TermsAcceptance, error) {
	if err := r.db.WithContext(ctx).Create(acceptance).Error; err != nil {
		return nil, err
	}
	return acceptance, nil
}

// DeactivateVersions clears the active flag on every version in a category.
// Runs inside the publish transaction so the partial unique index never sees
// two active rows.
func (r *Repository) DeactivateVersions(ctx context.Context, category enums.TermsCategory) error {
	return r.db.WithContext(ctx).
		Model(&models.TermsVersion{}).
		Where("category = ? AND is_active = ?", category, true).
		Update("is_active", false).Error
}

// CreateVersion inserts a new version row.
func (r *Repository) CreateVersion(ctx context.Context, version *models.TermsVersion) (*models.TermsVersion, error) {
	if err := r.db.WithContext(ctx).Create(version).Error; err != nil {
		return nil, err
	}
	return version, nil
}
