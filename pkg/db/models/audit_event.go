package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// AuditEvent is one immutable entry in the security/audit stream. The repo
// exposes no update or delete; PublishedAt is the only column ever touched
// after insert, and only by the fan-out publisher.
type AuditEvent struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RentalID  *uuid.UUID           `gorm:"column:rental_id;type:uuid;index"`
	BuyerID   uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	ContentID uuid.UUID            `gorm:"column:content_id;type:uuid;not null"`
	Kind      enums.AuditEventKind `gorm:"column:kind;type:audit_event_kind;not null"`

	AmountCents *int64         `gorm:"column:amount_cents"`
	Currency    enums.Currency `gorm:"column:currency;type:currency;not null;default:'ALL'"`

	// Opaque detail payload (reporter fingerprints, grades, day counts).
	// Stored verbatim, never interpreted.
	Detail json.RawMessage `gorm:"column:detail;type:jsonb"`

	OccurredAt  time.Time  `gorm:"column:occurred_at;not null"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
