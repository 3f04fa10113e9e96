package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCondition is returned when a road condition is not one of the known values.
var ErrUnknownCondition = errors.New("unknown road condition")

// Condition is an observed or predicted road surface state.
type Condition string

const (
	ConditionDry  Condition = "dry"
	ConditionWet  Condition = "wet"
	ConditionIcy  Condition = "icy"
	ConditionSnow Condition = "snow"
)

// expectedScores maps an observed condition to the BIFI score a perfect
// model would have produced for it.
var expectedScores = map[Condition]float64{
	ConditionDry:  10,
	ConditionWet:  40,
	ConditionIcy:  80,
	ConditionSnow: 70,
}

// ParseCondition validates a ground-truth condition.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := expectedScores[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, s)
	}
	return c, nil
}

// ParsePredictedCondition maps a predicted condition to dry, wet or icy.
// Exact condition names are accepted as-is (snow folds into icy). Any other
// text is classified by keyword, which keeps older clients that send risk
// levels ("high", "medium") or free text working.
func ParsePredictedCondition(s string) Condition {
	text := strings.ToLower(strings.TrimSpace(s))
	switch Condition(text) {
	case ConditionDry, ConditionWet, ConditionIcy:
		return Condition(text)
	case ConditionSnow:
		return ConditionIcy
	}

	switch {
	case strings.Contains(text, "ice"), strings.Contains(text, "high"):
		return ConditionIcy
	case strings.Contains(text, "wet"), strings.Contains(text, "medium"):
		return ConditionWet
	default:
		return ConditionDry
	}
}

// ExpectedScore returns the BIFI midpoint for an observed condition.
func (c Condition) ExpectedScore() float64 {
	return expectedScores[c]
}

// Frozen reports whether the condition is a frozen surface.
func (c Condition) Frozen() bool {
	return c == ConditionIcy || c == ConditionSnow
}

// normalized folds snow into icy for accuracy comparisons.
func (c Condition) normalized() Condition {
	if c == ConditionSnow {
		return ConditionIcy
	}
	return c
}
