package schema

import (
	"math"

	"golang.org/x/exp/constraints"
)

type NumericTypes interface {
	constraints.Integer | constraints.Float
}

type BoundsFloat struct {
	Min float64
	Max float64
}

// EmptyBounds is the identity for Morph.
func EmptyBounds() BoundsFloat {
	return BoundsFloat{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (b BoundsFloat) IsEmpty() bool {
	return b.Min > b.Max
}

func (b *BoundsFloat) Morph(other BoundsFloat) bool {

	changes := 0

	if other.Min < b.Min {
		b.Min = other.Min
		changes += 1
	}
	if other.Max > b.Max {
		b.Max = other.Max
		changes += 1
	}

	return changes != 0
}

func (b *BoundsFloat) Add(v float64) {
	if v < b.Min {
		b.Min = v
	}
	if v > b.Max {
		b.Max = v
	}
}

// BlockStats is a partial reduction over some voxels of one block.
// Merge is associative and commutative, so partials produced by different
// workers or buffers can be joined in any order.
type BlockStats struct {
	Bounds      BoundsFloat
	Total       float64
	Voxels      uint64
	EmptyVoxels uint64
}

func NewBlockStats() BlockStats {
	return BlockStats{Bounds: EmptyBounds()}
}

func (s *BlockStats) Merge(other BlockStats) {
	s.Bounds.Morph(other.Bounds)
	s.Total += other.Total
	s.Voxels += other.Voxels
	s.EmptyVoxels += other.EmptyVoxels
}
