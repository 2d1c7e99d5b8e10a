package query

import (
	"fmt"
	"strings"
)

type CondOperand byte

const (
	EQ CondOperand = iota
	GT
	LT
	RANGE
)

func (c CondOperand) String() string {
	switch c {
	case EQ:
		return "eq"
	case GT:
		return "gt"
	case LT:
		return "lt"
	case RANGE:
		return "range"
	default:
		return fmt.Sprintf("operand(%d)", byte(c))
	}
}

func (c CondOperand) arguments() int {
	if c == RANGE {
		return 2
	}
	return 1
}

func ParseCondOperand(s string) (CondOperand, error) {
	switch strings.ToLower(s) {
	case "eq", "=":
		return EQ, nil
	case "gt", ">":
		return GT, nil
	case "lt", "<":
		return LT, nil
	case "range":
		return RANGE, nil
	default:
		return 0, fmt.Errorf("%w: unknown operand %q", ErrBadCondition, s)
	}
}
