package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// Content mirrors the catalog service's view of a rentable title. The catalog
// itself is maintained elsewhere; the engine only reads availability/pricing
// and owns the physical inventory counter for hardcopy rentals.
type Content struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title  string    `gorm:"column:title;not null"`
	Active bool      `gorm:"column:active;not null"`

	HasDigital  bool `gorm:"column:has_digital;not null;default:false"`
	HasPhysical bool `gorm:"column:has_physical;not null;default:false"`
	HasAudio    bool `gorm:"column:has_audio;not null;default:false"`

	DigitalPriceCents  int64 `gorm:"column:digital_price_cents;not null;default:0"`
	PhysicalPriceCents int64 `gorm:"column:physical_price_cents;not null;default:0"`
	AudioPriceCents    int64 `gorm:"column:audio_price_cents;not null;default:0"`

	Currency enums.Currency `gorm:"column:currency;type:currency;not null;default:'ALL'"`

	// Physical copies on hand. Mutated only through guarded conditional
	// updates inside rental/settlement transactions.
	Inventory int `gorm:"column:inventory;not null;default:0"`

	// Object keys for the digital variants, resolved into short-lived
	// signed URLs at access-grant time.
	EbookObjectKey *string `gorm:"column:ebook_object_key"`
	AudioObjectKey *string `gorm:"column:audio_object_key"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SupportsMode reports whether the content can be delivered in the given mode.
func (c *Content) SupportsMode(mode enums.DeliveryMode) bool {
	switch mode {
	case enums.DeliveryModeEbook:
		return c.HasDigital
	case enums.DeliveryModeHardcopy:
		return c.HasPhysical
	case enums.DeliveryModeAudio:
		return c.HasAudio
	}
	return false
}

// BasePriceCents returns the catalog base price for the given mode.
func (c *Content) BasePriceCents(mode enums.DeliveryMode) int64 {
	switch mode {
	case enums.DeliveryModeEbook:
		return c.DigitalPriceCents
	case enums.DeliveryModeHardcopy:
		return c.PhysicalPriceCents
	case enums.DeliveryModeAudio:
		return c.AudioPriceCents
	}
	return 0
}
