package cache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dot5enko/volume-block-index/schema"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrUnknownBlock  = errors.New("block index out of range")
	ErrCacheStopped  = errors.New("block cache stopped")
	ErrCacheCapacity = errors.New("block cache capacity out of range")
)

// Uploader is the rendering side of the cache. Upload must copy what it
// needs out of block.Data before returning, the payload slot is reused once
// the block leaves the CPU set.
type Uploader interface {
	Upload(block *ResidentBlock) error
	Release(blockIndex uint64)
}

type noopUploader struct{}

func (noopUploader) Upload(*ResidentBlock) error { return nil }
func (noopUploader) Release(uint64)              {}

// Outcome of processing one request.
type Outcome uint8

const (
	OutcomeGPUHit Outcome = iota
	OutcomeUploaded
	OutcomeSkippedCPU
	OutcomeSkippedGPU
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGPUHit:
		return "gpu-hit"
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeSkippedCPU:
		return "skipped-cpu"
	case OutcomeSkippedGPU:
		return "skipped-gpu"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

type BlockCacheConfig struct {
	CPUBlocks int
	GPUBlocks int

	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// BlockCache keeps bounded CPU and GPU resident sets of volume blocks and
// loads requested blocks on a single loader goroutine. A visible block is
// never evicted; when every resident block is visible the request is
// skipped.
type BlockCache struct {
	blocks      []schema.FileBlock
	dims        schema.Vec3
	elementSize int

	source   io.ReaderAt
	uploader Uploader
	logger   *slog.Logger

	visible []atomic.Bool

	// guards the resident sets and stats, the loader is the only writer
	lock    sync.Mutex
	cpu     *residentSet[*ResidentBlock]
	gpu     *residentSet[struct{}]
	stats   CacheStats
	metrics *cacheMetrics

	records  *RecordPool[ResidentBlock]
	payloads *PayloadPool

	requests *BlockingQueue[uint64]
	stop     atomic.Bool
	started  atomic.Bool
	done     chan struct{}
}

// NewBlockCache prepares CPUBlocks payload slots sized for the largest
// block. dims is the voxel extent of the raw volume the blocks index.
func NewBlockCache(blocks []schema.FileBlock, dims schema.Vec3, typ schema.DataType, source io.ReaderAt, uploader Uploader, cfg BlockCacheConfig) (*BlockCache, error) {

	if cfg.CPUBlocks <= 0 || cfg.CPUBlocks > math.MaxUint16 {
		return nil, fmt.Errorf("%w: cpu capacity %d", ErrCacheCapacity, cfg.CPUBlocks)
	}
	if cfg.GPUBlocks <= 0 {
		return nil, fmt.Errorf("%w: gpu capacity %d", ErrCacheCapacity, cfg.GPUBlocks)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownDataType, typ)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if uploader == nil {
		uploader = noopUploader{}
	}

	var maxBlockVoxels uint64
	for i := range blocks {
		maxBlockVoxels = max(maxBlockVoxels, blocks[i].VoxelCount())
	}

	c := &BlockCache{
		blocks:      blocks,
		dims:        dims,
		elementSize: typ.Size(),
		source:      source,
		uploader:    uploader,
		logger:      logger,
		visible:     make([]atomic.Bool, len(blocks)),
		cpu:         newResidentSet[*ResidentBlock](cfg.CPUBlocks),
		gpu:         newResidentSet[struct{}](cfg.GPUBlocks),
		metrics:     newCacheMetrics(),
		records:     NewRecordPool[ResidentBlock](cfg.CPUBlocks),
		payloads:    NewPayloadPool(cfg.CPUBlocks, int(maxBlockVoxels)*typ.Size()),
		requests:    NewBlockingQueue[uint64](0),
		done:        make(chan struct{}),
	}

	if cfg.Registerer != nil {
		if err := c.metrics.register(cfg.Registerer); err != nil {
			return nil, fmt.Errorf("unable to register cache metrics: %w", err)
		}
	}

	return c, nil
}

// SetVisible is called by the rendering side whenever a block enters or
// leaves the view. Safe for concurrent use with the loader.
func (c *BlockCache) SetVisible(blockIndex uint64, visible bool) {
	if blockIndex < uint64(len(c.visible)) {
		c.visible[blockIndex].Store(visible)
	}
}

func (c *BlockCache) Visible(blockIndex uint64) bool {
	return blockIndex < uint64(len(c.visible)) && c.visible[blockIndex].Load()
}

// Request queues a wanted block for the loader.
func (c *BlockCache) Request(blockIndex uint64) error {
	if blockIndex >= uint64(len(c.blocks)) {
		return fmt.Errorf("%w: %d of %d", ErrUnknownBlock, blockIndex, len(c.blocks))
	}
	if c.stop.Load() {
		return ErrCacheStopped
	}

	c.requests.Push(blockIndex)
	return nil
}

func (c *BlockCache) Pending() int {
	return c.requests.Len()
}

// Start runs the loader goroutine. Calling it twice is a no-op.
func (c *BlockCache) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	go c.loop()
}

func (c *BlockCache) loop() {
	defer close(c.done)

	for !c.stop.Load() {
		idx, ok := c.requests.Pop()
		if !ok || c.stop.Load() {
			return
		}

		outcome, err := c.Process(idx)
		if err != nil {
			c.logger.Error("block load failed", "block", idx, "err", err)
			continue
		}

		c.logger.Debug("block request processed", "block", idx, "outcome", outcome.String())
	}
}

// Stop is idempotent. A loader blocked on an empty queue wakes up; queued
// requests are dropped.
func (c *BlockCache) Stop() {
	c.stop.Store(true)
	c.requests.RequestStop()
}

// Wait blocks until the loader started by Start has exited.
func (c *BlockCache) Wait() {
	if c.started.Load() {
		<-c.done
	}
}

// Process handles one request on the calling goroutine. It must not run
// concurrently with the loader started by Start.
func (c *BlockCache) Process(blockIndex uint64) (Outcome, error) {
	if blockIndex >= uint64(len(c.blocks)) {
		return 0, fmt.Errorf("%w: %d of %d", ErrUnknownBlock, blockIndex, len(c.blocks))
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.stats.Requests++
	c.metrics.requests.Inc()

	if _, ok := c.gpu.get(blockIndex); ok {
		c.gpu.touch(blockIndex)
		c.stats.GPUHits++
		c.metrics.hits.WithLabelValues("gpu").Inc()
		return OutcomeGPUHit, nil
	}

	resident, ok := c.cpu.get(blockIndex)
	if ok {
		c.cpu.touch(blockIndex)
		resident.Reads++
		c.stats.CPUHits++
		c.metrics.hits.WithLabelValues("cpu").Inc()
	} else {
		if c.cpu.full() {
			victim, found := c.cpu.victim(c.Visible)
			if !found {
				c.stats.CPUSkipped++
				c.metrics.skipped.WithLabelValues("cpu").Inc()
				return OutcomeSkippedCPU, nil
			}
			c.evictCPU(victim)
		}

		var err error
		resident, err = c.load(&c.blocks[blockIndex])
		if err != nil {
			c.stats.ReadErrors++
			return 0, err
		}
		c.cpu.insert(blockIndex, resident)
	}

	if c.gpu.full() {
		victim, found := c.gpu.victim(c.Visible)
		if !found {
			c.stats.GPUSkipped++
			c.metrics.skipped.WithLabelValues("gpu").Inc()
			return OutcomeSkippedGPU, nil
		}
		c.gpu.remove(victim)
		c.uploader.Release(victim)
		c.stats.GPUEvicted++
		c.metrics.evictions.WithLabelValues("gpu").Inc()
	}

	if err := c.uploader.Upload(resident); err != nil {
		return 0, fmt.Errorf("upload of block %d: %w", blockIndex, err)
	}

	c.gpu.insert(blockIndex, struct{}{})
	c.stats.GPUUploads++
	c.metrics.uploads.Inc()

	return OutcomeUploaded, nil
}

func (c *BlockCache) evictCPU(blockIndex uint64) {
	resident, ok := c.cpu.remove(blockIndex)
	if !ok {
		return
	}

	slot, record := resident.slot, resident.record
	c.records.Release(record)
	c.payloads.Release(slot)

	c.stats.CPUEvicted++
	c.metrics.evictions.WithLabelValues("cpu").Inc()
}

// load reads the block payload one row at a time, rows of a block are
// strided by the volume row and slice sizes.
func (c *BlockCache) load(block *schema.FileBlock) (*ResidentBlock, error) {

	data, slot := c.payloads.Acquire()

	elem := uint64(c.elementSize)
	vd := block.VoxelDims
	rowBytes := vd.X * elem
	total := block.VoxelCount() * elem
	data = data[:total]

	pos := uint64(0)
	for dz := uint64(0); dz < vd.Z; dz++ {
		for dy := uint64(0); dy < vd.Y; dy++ {
			off := block.DataOffset + (dz*c.dims.X*c.dims.Y+dy*c.dims.X)*elem

			n, err := c.source.ReadAt(data[pos:pos+rowBytes], int64(off))
			if uint64(n) != rowBytes {
				c.payloads.Release(slot)
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return nil, fmt.Errorf("%w: block %d row (%d,%d) at %d: %w", schema.ErrIO, block.Index, dy, dz, off, err)
			}
			pos += rowBytes
		}
	}

	resident, record := c.records.Acquire()
	resident.Block = block
	resident.Data = data
	resident.Loaded = time.Now()
	resident.slot = slot
	resident.record = record

	c.stats.CPULoads++
	c.stats.BytesLoaded += total
	c.metrics.loads.Inc()
	c.metrics.bytes.Add(float64(total))

	return resident, nil
}

func (c *BlockCache) CPUResident(blockIndex uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, ok := c.cpu.get(blockIndex)
	return ok
}

func (c *BlockCache) GPUResident(blockIndex uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, ok := c.gpu.get(blockIndex)
	return ok
}

// CPUBlocks lists CPU resident block indices, newest first.
func (c *BlockCache) CPUBlocks() []uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.cpu.indices()
}

// GPUBlocks lists GPU resident block indices, newest first.
func (c *BlockCache) GPUBlocks() []uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.gpu.indices()
}

func (c *BlockCache) Stats() CacheStats {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.stats
}
