package enums

import "fmt"

// ConditionGrade describes the physical condition of a hardcopy at handover
// or return time. Settlement maps grades to guarantee refund percentages.
type ConditionGrade string

const (
	ConditionGradeExcellent ConditionGrade = "excellent"
	ConditionGradeVeryGood  ConditionGrade = "very_good"
	ConditionGradeGood      ConditionGrade = "good"
	ConditionGradeFair      ConditionGrade = "fair"
	ConditionGradePoor      ConditionGrade = "poor"
	ConditionGradeDamaged   ConditionGrade = "damaged"
)

var validConditionGrades = []ConditionGrade{
	ConditionGradeExcellent,
	ConditionGradeVeryGood,
	ConditionGradeGood,
	ConditionGradeFair,
	ConditionGradePoor,
	ConditionGradeDamaged,
}

// String implements fmt.Stringer.
func (g ConditionGrade) String() string {
	return string(g)
}

// IsValid reports whether the value matches the canonical condition grade enum.
func (g ConditionGrade) IsValid() bool {
	for _, candidate := range validConditionGrades {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseConditionGrade converts raw input into a ConditionGrade.
func ParseConditionGrade(value string) (ConditionGrade, error) {
	for _, candidate := range validConditionGrades {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid condition grade %q", value)
}
