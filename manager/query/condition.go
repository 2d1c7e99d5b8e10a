package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadCondition = errors.New("bad filter condition")

// Field selects which block statistic a condition is tested against.
type Field byte

const (
	// the [min, max] value bounds of the block
	FieldValue Field = iota
	// the block average
	FieldAvg
)

func (f Field) String() string {
	if f == FieldAvg {
		return "avg"
	}
	return "value"
}

type FilterCondition struct {
	Field     Field
	Operand   CondOperand
	Arguments []float64
}

func (fc FilterCondition) Validate() error {
	if want := fc.Operand.arguments(); len(fc.Arguments) != want {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadCondition, fc.Operand, want, len(fc.Arguments))
	}
	if fc.Operand > RANGE {
		return fmt.Errorf("%w: %s", ErrBadCondition, fc.Operand)
	}
	return nil
}

// RangeArguments returns the RANGE bounds in ascending order.
func (fc FilterCondition) RangeArguments() (from, to float64) {
	from, to = fc.Arguments[0], fc.Arguments[1]
	if from > to {
		from, to = to, from
	}
	return from, to
}

func (fc FilterCondition) String() string {
	parts := make([]string, 0, 4)
	if fc.Field == FieldAvg {
		parts = append(parts, "avg")
	}
	parts = append(parts, fc.Operand.String())
	for _, arg := range fc.Arguments {
		parts = append(parts, strconv.FormatFloat(arg, 'g', -1, 64))
	}
	return strings.Join(parts, ":")
}

// ParseFilterCondition reads "[avg:]op:arg[:arg]", for example "gt:100",
// "range:10:20" or "avg:lt:0.5".
func ParseFilterCondition(s string) (FilterCondition, error) {
	parts := strings.Split(s, ":")

	fc := FilterCondition{Field: FieldValue}
	if len(parts) > 0 && strings.EqualFold(parts[0], "avg") {
		fc.Field = FieldAvg
		parts = parts[1:]
	}

	if len(parts) < 2 {
		return FilterCondition{}, fmt.Errorf("%w: %q", ErrBadCondition, s)
	}

	op, err := ParseCondOperand(parts[0])
	if err != nil {
		return FilterCondition{}, err
	}
	fc.Operand = op

	for _, raw := range parts[1:] {
		v, parseErr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if parseErr != nil {
			return FilterCondition{}, fmt.Errorf("%w: argument %q: %w", ErrBadCondition, raw, parseErr)
		}
		fc.Arguments = append(fc.Arguments, v)
	}

	if err := fc.Validate(); err != nil {
		return FilterCondition{}, err
	}
	return fc, nil
}
