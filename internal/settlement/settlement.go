// Package settlement closes out hardcopy rentals: condition grading, late
// fees, and the guarantee refund, settled atomically with the state flip and
// the inventory restore.
package settlement

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

// refundPercentByGrade maps the assessed return condition to the share of
// the guarantee coming back to the buyer.
var refundPercentByGrade = map[enums.ConditionGrade]int64{
	enums.ConditionGradeExcellent: 100,
	enums.ConditionGradeVeryGood:  95,
	enums.ConditionGradeGood:      90,
	enums.ConditionGradeFair:      75,
	enums.ConditionGradePoor:      50,
	enums.ConditionGradeDamaged:   10,
}

// Breakdown is the arithmetic of one settlement, before it is persisted.
type Breakdown struct {
	Grade          enums.ConditionGrade
	GuaranteeCents int64

	// GradeRefundCents is the guarantee share for the condition alone.
	GradeRefundCents int64
	// DeductionCents is the guarantee kept for condition loss.
	DeductionCents int64

	DaysLate     int64
	LateFeeCents int64

	// RefundCents is the final amount returned, floored at zero. The buyer
	// never owes more than the guarantee already held.
	RefundCents int64
}

// Late reports whether a late fee applies.
func (b Breakdown) Late() bool {
	return b.DaysLate > 0
}

// Damaged reports whether any guarantee was withheld for condition.
func (b Breakdown) Damaged() bool {
	return b.DeductionCents > 0
}

// Assess computes the settlement for a return. Partial days late count as
// whole days. The late fee scales on the rental fee, not the guarantee, at
// ten percent per day.
func Assess(grade enums.ConditionGrade, feeCents, guaranteeCents int64, endsAt, returnedAt time.Time) (*Breakdown, error) {
	percent, ok := refundPercentByGrade[grade]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown condition grade")
	}
	if feeCents < 0 || guaranteeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fee and guarantee must be non-negative")
	}

	breakdown := &Breakdown{Grade: grade, GuaranteeCents: guaranteeCents}

	guarantee := decimal.NewFromInt(guaranteeCents)
	gradeRefund := guarantee.Mul(decimal.NewFromInt(percent).Shift(-2)).Round(0).IntPart()
	breakdown.GradeRefundCents = gradeRefund
	breakdown.DeductionCents = guaranteeCents - gradeRefund

	if returnedAt.After(endsAt) {
		breakdown.DaysLate = int64(math.Ceil(returnedAt.Sub(endsAt).Hours() / 24))
		perDay := decimal.NewFromInt(feeCents).Mul(decimal.NewFromInt(10).Shift(-2))
		breakdown.LateFeeCents = perDay.Mul(decimal.NewFromInt(breakdown.DaysLate)).Round(0).IntPart()
	}

	refund := gradeRefund - breakdown.LateFeeCents
	if refund < 0 {
		refund = 0
	}
	breakdown.RefundCents = refund
	return breakdown, nil
}
