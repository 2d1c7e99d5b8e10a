package executor

import (
	"github.com/dot5enko/volume-block-index/ops"
	"github.com/dot5enko/volume-block-index/schema"
)

// ProcessChunk reduces values, whose first element has the global voxel
// index start, into cache. Values are walked in runs that stay inside one
// row of one block, so every run is folded with a single block lookup.
// Voxels past the declared volume are counted as excluded.
func ProcessChunk[T schema.NumericTypes](
	cache *ChunkExecutorThreadCache,
	volume *schema.VolumeDescriptor,
	values []T,
	start uint64,
	relevance ops.Relevance,
) {

	dims := volume.Dims
	blockWidth := volume.BlockDims.X
	totalVoxels := volume.TotalVoxels()

	n := uint64(len(values))
	i := uint64(0)

	for i < n {

		global := start + i
		if global >= totalVoxels {
			cache.Excluded += n - i
			return
		}

		x, y, z := schema.Decompose(global, dims.X, dims.Y)

		blockIdx, ok := volume.BlockIndexOfVoxel(x, y, z)
		if !ok {
			// unreachable for in-volume voxels, kept as a guard
			cache.Excluded++
			i++
			continue
		}

		runEnd := min((x/blockWidth+1)*blockWidth, dims.X)
		runLen := min(runEnd-x, n-i)

		run := values[i : i+runLen]

		cache.addRun(blockIdx, ops.ReduceRun(run, relevance))

		i += runLen
	}
}
