package ops

import "github.com/dot5enko/volume-block-index/schema"

// Relevance classifies a voxel value as significant or not. Voxels that
// fail the test are counted as empty voxels of their block.
type Relevance interface {
	Relevant(v float64) bool
}

type RelevanceFunc func(v float64) bool

func (f RelevanceFunc) Relevant(v float64) bool {
	return f(v)
}

// ValueRange accepts values inside [Min, Max].
type ValueRange struct {
	Min float64
	Max float64
}

func (r ValueRange) Relevant(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// NonZero rejects exact zeros, the usual background of scanned volumes.
type NonZero struct{}

func (NonZero) Relevant(v float64) bool {
	return v != 0
}

// OpacityThreshold looks the value up in an opacity transfer function that
// spans Domain and accepts it when the opacity exceeds Threshold.
type OpacityThreshold struct {
	Domain    schema.BoundsFloat
	Opacity   []float32
	Threshold float32
}

func (o OpacityThreshold) Relevant(v float64) bool {
	n := len(o.Opacity)
	if n == 0 {
		return false
	}

	span := o.Domain.Max - o.Domain.Min
	if span <= 0 {
		return o.Opacity[0] > o.Threshold
	}

	pos := (v - o.Domain.Min) / span
	switch {
	case pos <= 0:
		return o.Opacity[0] > o.Threshold
	case pos >= 1:
		return o.Opacity[n-1] > o.Threshold
	}

	return o.Opacity[int(pos*float64(n-1))] > o.Threshold
}
