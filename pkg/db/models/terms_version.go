package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// TermsVersion is one published revision of the legal terms for a rental
// category. A partial unique index keeps at most one active version per
// category at any instant.
type TermsVersion struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Category    enums.TermsCategory `gorm:"column:category;type:terms_category;not null"`
	Body        string              `gorm:"column:body;not null"`
	EffectiveAt time.Time           `gorm:"column:effective_at;not null"`
	ExpiresAt   *time.Time          `gorm:"column:expires_at"`
	IsActive    bool                `gorm:"column:is_active;not null;default:false"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
