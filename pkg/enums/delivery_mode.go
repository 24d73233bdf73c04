package enums

import "fmt"

// DeliveryMode names the channel through which rented content is delivered.
type DeliveryMode string

const (
	DeliveryModeEbook    DeliveryMode = "ebook"
	DeliveryModeHardcopy DeliveryMode = "hardcopy"
	DeliveryModeAudio    DeliveryMode = "audio"
)

var validDeliveryModes = []DeliveryMode{
	DeliveryModeEbook,
	DeliveryModeHardcopy,
	DeliveryModeAudio,
}

// String implements fmt.Stringer.
func (m DeliveryMode) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical delivery mode enum.
func (m DeliveryMode) IsValid() bool {
	for _, candidate := range validDeliveryModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseDeliveryMode converts raw input into a DeliveryMode.
func ParseDeliveryMode(value string) (DeliveryMode, error) {
	for _, candidate := range validDeliveryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery mode %q", value)
}
