package enums

import "fmt"

// UserSubscriptionStatus tracks the lifecycle of a buyer's subscription.
type UserSubscriptionStatus string

const (
	UserSubscriptionStatusActive   UserSubscriptionStatus = "active"
	UserSubscriptionStatusExpired  UserSubscriptionStatus = "expired"
	UserSubscriptionStatusCanceled UserSubscriptionStatus = "canceled"
)

var validUserSubscriptionStatuses = []UserSubscriptionStatus{
	UserSubscriptionStatusActive,
	UserSubscriptionStatusExpired,
	UserSubscriptionStatusCanceled,
}

// String implements fmt.Stringer.
func (s UserSubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s UserSubscriptionStatus) IsValid() bool {
	for _, candidate := range validUserSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserSubscriptionStatus converts raw input into a UserSubscriptionStatus.
func ParseUserSubscriptionStatus(value string) (UserSubscriptionStatus, error) {
	for _, candidate := range validUserSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user subscription status %q", value)
}
