package query

import (
	"fmt"

	"github.com/dot5enko/volume-block-index/schema"
)

// MatchResult tells how much of a block can satisfy a condition.
type MatchResult uint8

const (
	UnknownIntersection MatchResult = iota
	NoIntersection
	PartialIntersection
	FullIntersection
)

func (m MatchResult) String() string {
	switch m {
	case NoIntersection:
		return "none"
	case PartialIntersection:
		return "partial"
	case FullIntersection:
		return "full"
	default:
		return "unknown"
	}
}

// MatchBounds tests filter against the value bounds of a block. Full means
// every voxel satisfies it, partial that some voxels may.
func MatchBounds(filter FilterCondition, bounds schema.BoundsFloat) (MatchResult, error) {

	if err := filter.Validate(); err != nil {
		return UnknownIntersection, err
	}

	switch filter.Operand {
	case RANGE:

		from, to := filter.RangeArguments()

		if to < bounds.Min || from > bounds.Max {
			return NoIntersection, nil
		}
		if from <= bounds.Min && bounds.Max <= to {
			return FullIntersection, nil
		}
		return PartialIntersection, nil

	case EQ:

		operand := filter.Arguments[0]

		if operand < bounds.Min || operand > bounds.Max {
			return NoIntersection, nil
		}
		if bounds.Min == bounds.Max {
			return FullIntersection, nil
		}
		return PartialIntersection, nil

	case GT:

		operand := filter.Arguments[0]

		if operand >= bounds.Max {
			return NoIntersection, nil
		}
		if operand < bounds.Min {
			return FullIntersection, nil
		}
		return PartialIntersection, nil

	case LT:

		operand := filter.Arguments[0]

		if operand <= bounds.Min {
			return NoIntersection, nil
		}
		if operand > bounds.Max {
			return FullIntersection, nil
		}
		return PartialIntersection, nil

	default:
		return UnknownIntersection, fmt.Errorf("%w: unsupported operand %s", ErrBadCondition, filter.Operand)
	}
}

// MatchBlock applies filter to the statistic of block named by its field.
// The average is a single value, so it either matches fully or not at all.
func MatchBlock(filter FilterCondition, block *schema.FileBlock) (MatchResult, error) {

	if filter.Field == FieldAvg {
		result, err := MatchBounds(filter, schema.BoundsFloat{Min: block.Avg, Max: block.Avg})
		if err != nil {
			return result, err
		}
		if result == NoIntersection {
			return NoIntersection, nil
		}
		return FullIntersection, nil
	}

	return MatchBounds(filter, schema.BoundsFloat{Min: block.Min, Max: block.Max})
}
