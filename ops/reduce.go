package ops

import (
	"math"

	"github.com/dot5enko/volume-block-index/schema"
)

// ReduceRun folds a run of voxel values into block statistics in one pass.
// Values failing relevance are still part of the bounds and the total, they
// only count towards EmptyVoxels. A nil relevance accepts everything.
// NaN voxels are counted as empty and left out of the bounds and the total.
func ReduceRun[T schema.NumericTypes](run []T, relevance Relevance) schema.BlockStats {
	stats := schema.NewBlockStats()
	total := 0.0

	for _, v := range run {
		f := float64(v)
		if math.IsNaN(f) {
			stats.EmptyVoxels++
			continue
		}

		stats.Bounds.Add(f)
		total += f
		if relevance != nil && !relevance.Relevant(f) {
			stats.EmptyVoxels++
		}
	}

	stats.Total = total
	stats.Voxels = uint64(len(run))

	return stats
}
