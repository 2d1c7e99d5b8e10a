package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/dot5enko/volume-block-index/manager/cache"
	"github.com/dot5enko/volume-block-index/ops"
	"github.com/dot5enko/volume-block-index/schema"
	"golang.org/x/sync/errgroup"
)

// partitions smaller than this are not worth a goroutine
const MinPartitionVoxels = 16 * 1024

type TaskStatus struct {
	BuffersProcessed atomic.Uint64
	VoxelsProcessed  atomic.Uint64
	VoxelsExcluded   atomic.Uint64
}

// Reducer runs the per-buffer statistics pass. Each buffer is split into
// partitions reduced in parallel, then the partials are merged into the
// volume descriptor and the per-block stats by the calling goroutine.
type Reducer struct {
	volume    *schema.VolumeDescriptor
	typ       schema.DataType
	relevance ops.Relevance
	workers   int

	caches []*ChunkExecutorThreadCache

	Status TaskStatus
}

func NewReducer(volume *schema.VolumeDescriptor, typ schema.DataType, relevance ops.Relevance, workers int) *Reducer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	caches := make([]*ChunkExecutorThreadCache, workers)
	for i := range caches {
		caches[i] = NewChunkExecutorThreadCache()
	}

	return &Reducer{
		volume:    volume,
		typ:       typ,
		relevance: relevance,
		workers:   workers,
		caches:    caches,
	}
}

func (r *Reducer) Workers() int {
	return r.workers
}

func partitionCount(elements, workers int) int {
	parts := elements / MinPartitionVoxels
	if parts > workers {
		parts = workers
	}
	if parts < 1 {
		parts = 1
	}
	return parts
}

// ReduceBuffer folds buf into the volume descriptor and blocks, which must
// have one entry per block of the volume.
func (r *Reducer) ReduceBuffer(ctx context.Context, buf *cache.Buffer, blocks []schema.BlockStats) error {

	n := buf.Elements
	if n == 0 {
		return nil
	}

	parts := partitionCount(n, r.workers)
	chunk := (n + parts - 1) / parts

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	used := 0
	for p := 0; p < parts; p++ {
		from := p * chunk
		to := min(from+chunk, n)
		if from >= to {
			break
		}

		threadCache := r.caches[p]
		threadCache.Reset()
		used++

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return reducePartition(threadCache, r.volume, r.typ, buf, from, to, r.relevance)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, threadCache := range r.caches[:used] {
		threadCache.MergeInto(r.volume, blocks)
		r.Status.VoxelsProcessed.Add(threadCache.Voxels)
		r.Status.VoxelsExcluded.Add(threadCache.Excluded)
	}
	r.Status.BuffersProcessed.Add(1)

	return nil
}

func reducePartition(
	threadCache *ChunkExecutorThreadCache,
	volume *schema.VolumeDescriptor,
	typ schema.DataType,
	buf *cache.Buffer,
	from, to int,
	relevance ops.Relevance,
) error {

	start := buf.Offset + uint64(from)

	switch typ {
	case schema.Int8DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[int8](buf)[from:to], start, relevance)
	case schema.Uint8DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[uint8](buf)[from:to], start, relevance)
	case schema.Int16DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[int16](buf)[from:to], start, relevance)
	case schema.Uint16DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[uint16](buf)[from:to], start, relevance)
	case schema.Int32DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[int32](buf)[from:to], start, relevance)
	case schema.Uint32DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[uint32](buf)[from:to], start, relevance)
	case schema.Float32DataType:
		ProcessChunk(threadCache, volume, cache.BufferView[float32](buf)[from:to], start, relevance)
	default:
		return fmt.Errorf("%w: code %d", schema.ErrUnknownDataType, uint8(typ))
	}

	return nil
}
