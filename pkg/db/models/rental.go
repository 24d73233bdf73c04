package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
	"github.com/librariashqip/libraria-backend/pkg/types"
)

// Rental is a time-boxed grant of access to one content item in one delivery
// mode, created from a paid order item. All three modes share the row shape;
// Mode discriminates which of the mode-specific column groups is populated.
// A partial unique index on (buyer_id, content_id, mode) where state='active'
// enforces the at-most-one-active invariant at the storage layer.
type Rental struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID     uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null;index"`
	ContentID   uuid.UUID          `gorm:"column:content_id;type:uuid;not null;index"`
	OrderItemID uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null"`
	Mode        enums.DeliveryMode `gorm:"column:mode;type:delivery_mode;not null"`
	Tier        enums.RentalTier   `gorm:"column:tier;type:rental_tier;not null"`
	State       enums.RentalState  `gorm:"column:state;type:rental_state;not null;default:'active'"`

	FeeCents       int64          `gorm:"column:fee_cents;not null"`
	GuaranteeCents int64          `gorm:"column:guarantee_cents;not null;default:0"`
	Currency       enums.Currency `gorm:"column:currency;type:currency;not null;default:'ALL'"`

	StartsAt time.Time `gorm:"column:starts_at;not null"`
	EndsAt   time.Time `gorm:"column:ends_at;not null"`

	// Ebook columns. Only the SHA-256 fingerprint of the minted token is
	// stored; the token itself is returned to the buyer once.
	AccessTokenHash *string    `gorm:"column:access_token_hash"`
	AccessCount     int        `gorm:"column:access_count;not null;default:0"`
	LastAccessAt    *time.Time `gorm:"column:last_access_at"`

	// Hardcopy columns.
	InitialCondition *enums.ConditionGrade `gorm:"column:initial_condition;type:condition_grade"`
	ReturnCondition  *enums.ConditionGrade `gorm:"column:return_condition;type:condition_grade"`
	RefundCents      *int64                `gorm:"column:refund_cents"`
	Returned         bool                  `gorm:"column:returned;not null;default:false"`
	ShippingAddress  *types.Address        `gorm:"column:shipping_address;type:address_t"`
	TrackingRef      *string               `gorm:"column:tracking_ref"`

	// Audio columns.
	PlaySeconds  int64 `gorm:"column:play_seconds;not null;default:0"`
	PlaySessions int   `gorm:"column:play_sessions;not null;default:0"`
	Completed    bool  `gorm:"column:completed;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActiveAt reports whether the rental grants access at the given instant.
// Expiry is enforced lazily; rows can sit in state=active past EndsAt until
// the next access check or janitor pass flips them.
func (r *Rental) IsActiveAt(now time.Time) bool {
	return r.State == enums.RentalStateActive && now.Before(r.EndsAt)
}
