package enums

import "fmt"

// AuditEventKind maps to the audit_event_kind enum in Postgres.
type AuditEventKind string

const (
	AuditEventRentalCreated      AuditEventKind = "rental_created"
	AuditEventGuaranteeCharged   AuditEventKind = "guarantee_charged"
	AuditEventGuaranteeRefunded  AuditEventKind = "guarantee_refunded"
	AuditEventBookReturned       AuditEventKind = "book_returned"
	AuditEventDamageAssessed     AuditEventKind = "damage_assessed"
	AuditEventLateFeeCharged     AuditEventKind = "late_fee_charged"
	AuditEventRentalCompleted    AuditEventKind = "rental_completed"
	AuditEventSecurityViolation  AuditEventKind = "security_violation"
	AuditEventSuspiciousActivity AuditEventKind = "suspicious_activity"
	AuditEventRentalEnd          AuditEventKind = "rental_end"
	AuditEventAccessStart        AuditEventKind = "access_start"
	AuditEventAccessEnd          AuditEventKind = "access_end"
)

var validAuditEventKinds = []AuditEventKind{
	AuditEventRentalCreated,
	AuditEventGuaranteeCharged,
	AuditEventGuaranteeRefunded,
	AuditEventBookReturned,
	AuditEventDamageAssessed,
	AuditEventLateFeeCharged,
	AuditEventRentalCompleted,
	AuditEventSecurityViolation,
	AuditEventSuspiciousActivity,
	AuditEventRentalEnd,
	AuditEventAccessStart,
	AuditEventAccessEnd,
}

// String implements fmt.Stringer.
func (k AuditEventKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical audit event enum.
func (k AuditEventKind) IsValid() bool {
	for _, candidate := range validAuditEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsRevoking reports whether receipt of this kind forces the referenced
// rental out of the active state.
func (k AuditEventKind) IsRevoking() bool {
	return k == AuditEventSecurityViolation || k == AuditEventSuspiciousActivity
}

// ParseAuditEventKind converts raw input into an AuditEventKind.
func ParseAuditEventKind(value string) (AuditEventKind, error) {
	for _, candidate := range validAuditEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit event kind %q", value)
}
