package enums

import "fmt"

// TermsCategory scopes a legal terms version to a rental surface.
type TermsCategory string

const (
	TermsCategoryEbookRental    TermsCategory = "ebook_rental"
	TermsCategoryHardcopyRental TermsCategory = "hardcopy_rental"
	TermsCategoryAudioRental    TermsCategory = "audio_rental"
	TermsCategoryGeneral        TermsCategory = "general"
)

var validTermsCategories = []TermsCategory{
	TermsCategoryEbookRental,
	TermsCategoryHardcopyRental,
	TermsCategoryAudioRental,
	TermsCategoryGeneral,
}

// String implements fmt.Stringer.
func (c TermsCategory) String() string {
	return string(c)
}

// IsValid reports whether the value matches the canonical terms category enum.
func (c TermsCategory) IsValid() bool {
	for _, candidate := range validTermsCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// TermsCategoryForMode resolves the category a delivery mode is gated on.
func TermsCategoryForMode(mode DeliveryMode) (TermsCategory, error) {
	switch mode {
	case DeliveryModeEbook:
		return TermsCategoryEbookRental, nil
	case DeliveryModeHardcopy:
		return TermsCategoryHardcopyRental, nil
	case DeliveryModeAudio:
		return TermsCategoryAudioRental, nil
	}
	return "", fmt.Errorf("no terms category for delivery mode %q", mode)
}

// ParseTermsCategory converts raw input into a TermsCategory.
func ParseTermsCategory(value string) (TermsCategory, error) {
	for _, candidate := range validTermsCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid terms category %q", value)
}
