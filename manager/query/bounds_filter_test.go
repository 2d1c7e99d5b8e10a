package query

import (
	"errors"
	"testing"

	"github.com/dot5enko/volume-block-index/schema"
)

func TestHeaderFullIntersectFilter(t *testing.T) {

	bounds := schema.BoundsFloat{Min: 0.5, Max: 0.8}

	filter := FilterCondition{
		Operand:   GT,
		Arguments: []float64{0.4999},
	}

	matchResult, matchErr := MatchBounds(filter, bounds)

	if matchErr != nil {
		t.Errorf("unexpected error %v", matchErr)
	} else if matchResult != FullIntersection {
		t.Errorf("expected full intersection, got %s", matchResult.String())
	}
}

func TestHeaderNoIntersectFilter(t *testing.T) {

	bounds := schema.BoundsFloat{Min: 0.5, Max: 0.8}

	filter := FilterCondition{
		Operand:   LT,
		Arguments: []float64{0.4999},
	}

	matchResult, matchErr := MatchBounds(filter, bounds)

	if matchErr != nil {
		t.Errorf("unexpected error %v", matchErr)
	} else if matchResult != NoIntersection {
		t.Errorf("expected no intersection, got %s", matchResult.String())
	}
}

func TestMatchBoundsOperands(t *testing.T) {
	bounds := schema.BoundsFloat{Min: 10, Max: 20}

	cases := []struct {
		name     string
		filter   FilterCondition
		expected MatchResult
	}{
		{"gt below", FilterCondition{Operand: GT, Arguments: []float64{5}}, FullIntersection},
		{"gt at min", FilterCondition{Operand: GT, Arguments: []float64{10}}, PartialIntersection},
		{"gt at max", FilterCondition{Operand: GT, Arguments: []float64{20}}, NoIntersection},
		{"lt above", FilterCondition{Operand: LT, Arguments: []float64{21}}, FullIntersection},
		{"lt at max", FilterCondition{Operand: LT, Arguments: []float64{20}}, PartialIntersection},
		{"lt at min", FilterCondition{Operand: LT, Arguments: []float64{10}}, NoIntersection},
		{"eq inside", FilterCondition{Operand: EQ, Arguments: []float64{15}}, PartialIntersection},
		{"eq outside", FilterCondition{Operand: EQ, Arguments: []float64{25}}, NoIntersection},
		{"range covers", FilterCondition{Operand: RANGE, Arguments: []float64{0, 30}}, FullIntersection},
		{"range reversed", FilterCondition{Operand: RANGE, Arguments: []float64{30, 0}}, FullIntersection},
		{"range overlaps", FilterCondition{Operand: RANGE, Arguments: []float64{15, 30}}, PartialIntersection},
		{"range touches", FilterCondition{Operand: RANGE, Arguments: []float64{20, 30}}, PartialIntersection},
		{"range disjoint", FilterCondition{Operand: RANGE, Arguments: []float64{21, 30}}, NoIntersection},
	}

	for _, c := range cases {
		got, err := MatchBounds(c.filter, bounds)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if got != c.expected {
			t.Errorf("%s: expected %s, got %s", c.name, c.expected, got)
		}
	}

	constant := schema.BoundsFloat{Min: 3, Max: 3}
	if got, _ := MatchBounds(FilterCondition{Operand: EQ, Arguments: []float64{3}}, constant); got != FullIntersection {
		t.Errorf("eq on a constant block: got %s", got)
	}
}

func TestMatchBoundsBadArguments(t *testing.T) {
	_, err := MatchBounds(FilterCondition{Operand: RANGE, Arguments: []float64{1}}, schema.BoundsFloat{})
	if !errors.Is(err, ErrBadCondition) {
		t.Errorf("expected ErrBadCondition, got %v", err)
	}

	_, err = MatchBounds(FilterCondition{Operand: CondOperand(9), Arguments: []float64{1}}, schema.BoundsFloat{})
	if !errors.Is(err, ErrBadCondition) {
		t.Errorf("expected ErrBadCondition, got %v", err)
	}
}

func TestMatchBlockAverage(t *testing.T) {
	block := schema.FileBlock{Min: 0, Max: 100, Avg: 40}

	avgGT := FilterCondition{Field: FieldAvg, Operand: GT, Arguments: []float64{30}}
	if got, _ := MatchBlock(avgGT, &block); got != FullIntersection {
		t.Errorf("avg gt 30: got %s", got)
	}

	avgLT := FilterCondition{Field: FieldAvg, Operand: LT, Arguments: []float64{30}}
	if got, _ := MatchBlock(avgLT, &block); got != NoIntersection {
		t.Errorf("avg lt 30: got %s", got)
	}

	valueLT := FilterCondition{Operand: LT, Arguments: []float64{30}}
	if got, _ := MatchBlock(valueLT, &block); got != PartialIntersection {
		t.Errorf("value lt 30: got %s", got)
	}
}
