package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// Subscription is a reading plan: a billing period, a catalog of covered
// content, and a cap on how many content units a buyer may hold open at once.
type Subscription struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	PriceCents    int64          `gorm:"column:price_cents;not null"`
	Currency      enums.Currency `gorm:"column:currency;type:currency;not null;default:'ALL'"`
	PeriodDays    int            `gorm:"column:period_days;not null"`
	MaxConcurrent int            `gorm:"column:max_concurrent;not null"`

	EbookEligible    bool `gorm:"column:ebook_eligible;not null"`
	HardcopyEligible bool `gorm:"column:hardcopy_eligible;not null;default:false"`

	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SubscriptionContent is the catalog membership join: one row per content
// item covered by a subscription.
type SubscriptionContent struct {
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;primaryKey"`
	ContentID      uuid.UUID `gorm:"column:content_id;type:uuid;primaryKey"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the join table name.
func (SubscriptionContent) TableName() string {
	return "subscription_contents"
}
