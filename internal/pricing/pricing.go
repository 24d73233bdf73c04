package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

// Quote is the priced outcome for one rental tier applied to a base price.
// Amounts are minor currency units (qindarka for ALL).
type Quote struct {
	FeeCents       int64
	GuaranteeCents int64
	Duration       time.Duration
}

type tierSpec struct {
	duration         time.Duration
	feePercent       decimal.Decimal
	guaranteePercent decimal.Decimal
}

func percent(p int64) decimal.Decimal {
	return decimal.NewFromInt(p).Shift(-2)
}

// Tier tables are business policy. Fee and guarantee are computed
// independently and rounded half-up to the nearest minor unit. TIME_LIMITED
// appears under both ebook and audio, so the table is keyed by mode first.
var tierTable = map[enums.DeliveryMode]map[enums.RentalTier]tierSpec{
	enums.DeliveryModeEbook: {
		enums.RentalTierSingleRead:     {duration: 24 * time.Hour, feePercent: percent(30)},
		enums.RentalTierTimeLimited:    {duration: 7 * 24 * time.Hour, feePercent: percent(60)},
		enums.RentalTierUnlimitedReads: {duration: 30 * 24 * time.Hour, feePercent: percent(100)},
	},
	enums.DeliveryModeHardcopy: {
		enums.RentalTierShortTerm:    {duration: 7 * 24 * time.Hour, feePercent: percent(15), guaranteePercent: percent(80)},
		enums.RentalTierMediumTerm:   {duration: 14 * 24 * time.Hour, feePercent: percent(25), guaranteePercent: percent(80)},
		enums.RentalTierLongTerm:     {duration: 30 * 24 * time.Hour, feePercent: percent(40), guaranteePercent: percent(80)},
		enums.RentalTierExtendedTerm: {duration: 60 * 24 * time.Hour, feePercent: percent(60), guaranteePercent: percent(80)},
	},
	enums.DeliveryModeAudio: {
		enums.RentalTierSingleListen:     {duration: 24 * time.Hour, feePercent: percent(30)},
		enums.RentalTierTimeLimited:      {duration: 7 * 24 * time.Hour, feePercent: percent(60)},
		enums.RentalTierUnlimitedListens: {duration: 30 * 24 * time.Hour, feePercent: percent(80)},
	},
}

// TiersForMode returns the tiers rentable in the given delivery mode.
func TiersForMode(mode enums.DeliveryMode) []enums.RentalTier {
	specs, ok := tierTable[mode]
	if !ok {
		return nil
	}
	tiers := make([]enums.RentalTier, 0, len(specs))
	for tier := range specs {
		tiers = append(tiers, tier)
	}
	return tiers
}

// TierDuration returns the fixed rental window for a tier in a mode.
func TierDuration(mode enums.DeliveryMode, tier enums.RentalTier) (time.Duration, error) {
	spec, err := lookup(mode, tier)
	if err != nil {
		return 0, err
	}
	return spec.duration, nil
}

// Compute prices a rental. An unknown tier or a tier/mode mismatch is a
// configuration error, never silently defaulted.
func Compute(mode enums.DeliveryMode, tier enums.RentalTier, basePriceCents int64) (Quote, error) {
	spec, err := lookup(mode, tier)
	if err != nil {
		return Quote{}, err
	}
	if basePriceCents < 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "base price must be non-negative")
	}

	base := decimal.NewFromInt(basePriceCents)
	fee := base.Mul(spec.feePercent).Round(0).IntPart()

	var guarantee int64
	if !spec.guaranteePercent.IsZero() {
		guarantee = base.Mul(spec.guaranteePercent).Round(0).IntPart()
	}

	return Quote{
		FeeCents:       fee,
		GuaranteeCents: guarantee,
		Duration:       spec.duration,
	}, nil
}

func lookup(mode enums.DeliveryMode, tier enums.RentalTier) (tierSpec, error) {
	specs, ok := tierTable[mode]
	if !ok {
		return tierSpec{}, pkgerrors.New(pkgerrors.CodeInvalidMode, fmt.Sprintf("unknown delivery mode %q", mode))
	}
	spec, ok := specs[tier]
	if !ok {
		if !tier.IsValid() {
			return tierSpec{}, pkgerrors.New(pkgerrors.CodeInvalidTier, fmt.Sprintf("unknown tier %q", tier))
		}
		return tierSpec{}, pkgerrors.New(pkgerrors.CodeInvalidTier, fmt.Sprintf("tier %q does not apply to mode %q", tier, mode))
	}
	return spec, nil
}
