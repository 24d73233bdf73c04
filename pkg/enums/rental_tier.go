package enums

import "fmt"

// RentalTier names a duration/price bracket for a rental. Tier validity is
// mode-dependent; the pricing tables own that mapping.
type RentalTier string

const (
	// Ebook tiers.
	RentalTierSingleRead     RentalTier = "single_read"
	RentalTierTimeLimited    RentalTier = "time_limited"
	RentalTierUnlimitedReads RentalTier = "unlimited_reads"

	// Hardcopy tiers.
	RentalTierShortTerm    RentalTier = "short_term"
	RentalTierMediumTerm   RentalTier = "medium_term"
	RentalTierLongTerm     RentalTier = "long_term"
	RentalTierExtendedTerm RentalTier = "extended_term"

	// Audio tiers. TimeLimited is shared with ebook.
	RentalTierSingleListen     RentalTier = "single_listen"
	RentalTierUnlimitedListens RentalTier = "unlimited_listens"
)

var validRentalTiers = []RentalTier{
	RentalTierSingleRead,
	RentalTierTimeLimited,
	RentalTierUnlimitedReads,
	RentalTierShortTerm,
	RentalTierMediumTerm,
	RentalTierLongTerm,
	RentalTierExtendedTerm,
	RentalTierSingleListen,
	RentalTierUnlimitedListens,
}

// String implements fmt.Stringer.
func (t RentalTier) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical rental tier enum.
func (t RentalTier) IsValid() bool {
	for _, candidate := range validRentalTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRentalTier converts raw input into a RentalTier.
func ParseRentalTier(value string) (RentalTier, error) {
	for _, candidate := range validRentalTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental tier %q", value)
}
