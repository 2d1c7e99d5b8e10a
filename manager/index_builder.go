package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dot5enko/volume-block-index/manager/executor"
	"github.com/dot5enko/volume-block-index/manager/stream"
	"github.com/dot5enko/volume-block-index/ops"
	"github.com/dot5enko/volume-block-index/schema"
)

var ErrNotFinished = errors.New("volume statistics were not computed")

// BlockIndexBuilder partitions a volume into blocks and fills their
// statistics in a single streaming pass over the raw file.
type BlockIndexBuilder struct {
	Volume   *schema.VolumeDescriptor
	Blocks   []schema.FileBlock
	DataType schema.DataType

	stats    []schema.BlockStats
	workers  int
	logger   *slog.Logger
	finished bool
}

func NewBlockIndexBuilder(volume *schema.VolumeDescriptor, typ schema.DataType, workers int, logger *slog.Logger) *BlockIndexBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &BlockIndexBuilder{
		Volume:   volume,
		DataType: typ,
		workers:  workers,
		logger:   logger,
	}
}

// InitBlocks lays out the block grid in row-major order, i fastest.
func (b *BlockIndexBuilder) InitBlocks() {

	vol := b.Volume
	dims := vol.Dims
	elementSize := uint64(b.DataType.Size())

	b.Blocks = make([]schema.FileBlock, vol.TotalBlocks())
	b.stats = make([]schema.BlockStats, vol.TotalBlocks())
	b.finished = false
	vol.ResetStats()

	for k := uint64(0); k < vol.NumBlocks.Z; k++ {
		for j := uint64(0); j < vol.NumBlocks.Y; j++ {
			for i := uint64(0); i < vol.NumBlocks.X; i++ {

				idx := schema.LinearIndex(i, j, k, vol.NumBlocks.X, vol.NumBlocks.Y)
				ijk := schema.Vec3{X: i, Y: j, Z: k}

				start := schema.Vec3{
					X: i * vol.BlockDims.X,
					Y: j * vol.BlockDims.Y,
					Z: k * vol.BlockDims.Z,
				}
				voxelDims := vol.BlockVoxelDims(ijk)

				block := &b.Blocks[idx]
				block.Index = idx
				block.IJK = ijk
				block.DataOffset = elementSize * schema.LinearIndex(start.X, start.Y, start.Z, dims.X, dims.Y)
				block.VoxelDims = voxelDims

				// blocks tile a unit cube centered at the origin
				block.WorldOrigin = [3]float64{
					float64(start.X)/float64(dims.X) - 0.5,
					float64(start.Y)/float64(dims.Y) - 0.5,
					float64(start.Z)/float64(dims.Z) - 0.5,
				}
				block.WorldDims = [3]float64{
					float64(voxelDims.X) / float64(dims.X),
					float64(voxelDims.Y) / float64(dims.Y),
					float64(voxelDims.Z) / float64(dims.Z),
				}

				b.stats[idx] = schema.NewBlockStats()
			}
		}
	}

	b.logger.Debug("block grid initialized",
		"blocks", len(b.Blocks),
		"num_blocks", vol.NumBlocks.String(),
		"block_dims", vol.BlockDims.String(),
	)
}

// ComputeVolumeStatistics consumes every full buffer the reader produces.
// The reader must already be started on the same pool.
func (b *BlockIndexBuilder) ComputeVolumeStatistics(ctx context.Context, reader *stream.StreamReader, relevance ops.Relevance) error {

	if b.Blocks == nil {
		b.InitBlocks()
	}

	reducer := executor.NewReducer(b.Volume, b.DataType, relevance, b.workers)
	pool := reader.Pool()

	declared := b.Volume.TotalVoxels()
	shortBufferSeen := false

	abort := func(err error) error {
		reader.Stop()
		reader.Join()
		return err
	}

	for {
		buf, ok := pool.NextFull()
		if !ok {
			break
		}

		if buf.Elements < buf.Capacity() && buf.End() < declared {
			shortBufferSeen = true
			b.logger.Warn("data shape: raw volume ends before the declared extent",
				"buffer_offset", buf.Offset,
				"elements", buf.Elements,
				"declared_voxels", declared,
			)
		}

		reduceErr := reducer.ReduceBuffer(ctx, buf, b.stats)
		pool.ReturnEmpty(buf)

		if reduceErr != nil {
			return abort(reduceErr)
		}
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
	}

	bytesRead, readErr := reader.Join()
	if readErr != nil {
		return readErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seen := reducer.Status.VoxelsProcessed.Load()
	excluded := reducer.Status.VoxelsExcluded.Load()

	if seen < declared && !shortBufferSeen {
		b.logger.Warn("data shape: raw volume is smaller than declared",
			"voxels", seen,
			"declared_voxels", declared,
		)
	}
	if excluded > 0 {
		b.logger.Warn("data shape: raw volume is larger than declared, extra voxels ignored",
			"extra_voxels", excluded,
			"declared_voxels", declared,
		)
	}

	b.finish()

	b.logger.Info("volume statistics computed",
		"bytes_read", bytesRead,
		"buffers", reducer.Status.BuffersProcessed.Load(),
		"workers", reducer.Workers(),
		"min", b.Volume.Min,
		"max", b.Volume.Max,
		"avg", b.Volume.Avg,
		"empty_voxels", b.Volume.EmptyVoxels,
	)

	return nil
}

func (b *BlockIndexBuilder) finish() {
	b.Volume.Finish()

	for i := range b.Blocks {
		b.Blocks[i].ApplyStats(b.stats[i])
	}

	b.finished = true
}

func (b *BlockIndexBuilder) Finished() bool {
	return b.finished
}

// BlockStats returns the raw reduction of block idx.
func (b *BlockIndexBuilder) BlockStats(idx uint64) schema.BlockStats {
	return b.stats[idx]
}

// FilterBlocks marks blocks whose average falls outside [tmin, tmax] as
// empty and returns how many are empty.
func (b *BlockIndexBuilder) FilterBlocks(tmin, tmax float64) (int, error) {
	if !b.finished {
		return 0, ErrNotFinished
	}

	empty := 0
	for i := range b.Blocks {
		block := &b.Blocks[i]
		isEmpty := block.Avg < tmin || block.Avg > tmax
		block.SetEmpty(isEmpty)
		if isEmpty {
			empty++
		}
	}

	b.logger.Info("blocks filtered", "tmin", tmin, "tmax", tmax, "empty_blocks", empty, "blocks", len(b.Blocks))

	return empty, nil
}
