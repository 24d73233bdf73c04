package models

import (
	"time"

	"github.com/google/uuid"
)

// TermsAcceptance records a buyer accepting one terms version. Rows are
// append-only; superseding terms never mutates prior acceptances, so the full
// acceptance history survives for dispute resolution.
type TermsAcceptance struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID             uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	TermsVersionID      uuid.UUID `gorm:"column:terms_version_id;type:uuid;not null"`
	AcceptedAt          time.Time `gorm:"column:accepted_at;not null"`
	ConfirmedRead       bool      `gorm:"column:confirmed_read;not null;default:false"`
	ConfirmedUnderstood bool      `gorm:"column:confirmed_understood;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}
