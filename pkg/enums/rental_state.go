package enums

import "fmt"

// RentalState maps to the rental_state enum in Postgres. Active is the only
// non-terminal state; the three terminal states are disjoint.
type RentalState string

const (
	RentalStateActive   RentalState = "active"
	RentalStateExpired  RentalState = "expired"
	RentalStateReturned RentalState = "returned"
	RentalStateRevoked  RentalState = "revoked"
)

var validRentalStates = []RentalState{
	RentalStateActive,
	RentalStateExpired,
	RentalStateReturned,
	RentalStateRevoked,
}

// String implements fmt.Stringer.
func (s RentalState) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical rental state enum.
func (s RentalState) IsValid() bool {
	for _, candidate := range validRentalStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func (s RentalState) IsTerminal() bool {
	return s == RentalStateExpired || s == RentalStateReturned || s == RentalStateRevoked
}

// ParseRentalState converts raw input into a RentalState.
func ParseRentalState(value string) (RentalState, error) {
	for _, candidate := range validRentalStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental state %q", value)
}
