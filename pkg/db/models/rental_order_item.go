package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// RentalOrderItem is the paid purchase line that authorizes one rental.
// Written by the order/payment flow; the engine treats it as immutable input
// and only ever reads it.
type RentalOrderItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID        uuid.UUID      `gorm:"column:buyer_id;type:uuid;not null;index"`
	ContentID      uuid.UUID      `gorm:"column:content_id;type:uuid;not null"`
	UnitPriceCents int64          `gorm:"column:unit_price_cents;not null"`
	Currency       enums.Currency `gorm:"column:currency;type:currency;not null;default:'ALL'"`
	IsRental       bool           `gorm:"column:is_rental;not null;default:false"`
	Paid           bool           `gorm:"column:paid;not null;default:false"`
	PaidAt         *time.Time     `gorm:"column:paid_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}
