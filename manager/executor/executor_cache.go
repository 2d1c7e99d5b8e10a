package executor

import "github.com/dot5enko/volume-block-index/schema"

type BlockPartial struct {
	Index uint64
	Stats schema.BlockStats
}

// ChunkExecutorThreadCache holds the partial reduction of one buffer
// partition. One cache is kept per partition and reused across buffers.
type ChunkExecutorThreadCache struct {
	Total    float64
	Bounds   schema.BoundsFloat
	Voxels   uint64
	Excluded uint64

	Blocks []BlockPartial

	blockSlots map[uint64]int
	lastIndex  uint64
	lastSlot   int
}

func NewChunkExecutorThreadCache() *ChunkExecutorThreadCache {
	c := &ChunkExecutorThreadCache{
		blockSlots: map[uint64]int{},
	}
	c.Reset()
	return c
}

func (c *ChunkExecutorThreadCache) Reset() {
	c.Total = 0
	c.Bounds = schema.EmptyBounds()
	c.Voxels = 0
	c.Excluded = 0
	c.Blocks = c.Blocks[:0]
	clear(c.blockSlots)
	c.lastSlot = -1
}

// addRun folds a run of voxels that all belong to block idx.
func (c *ChunkExecutorThreadCache) addRun(idx uint64, run schema.BlockStats) {

	c.Total += run.Total
	c.Bounds.Morph(run.Bounds)
	c.Voxels += run.Voxels

	slot := c.lastSlot
	if slot < 0 || c.lastIndex != idx {
		var ok bool
		slot, ok = c.blockSlots[idx]
		if !ok {
			slot = len(c.Blocks)
			c.Blocks = append(c.Blocks, BlockPartial{Index: idx, Stats: schema.NewBlockStats()})
			c.blockSlots[idx] = slot
		}
		c.lastIndex = idx
		c.lastSlot = slot
	}

	c.Blocks[slot].Stats.Merge(run)
}

// MergeInto joins the partition result into the volume-wide state.
func (c *ChunkExecutorThreadCache) MergeInto(volume *schema.VolumeDescriptor, blocks []schema.BlockStats) {
	volume.AddStats(c.Total, c.Bounds, c.Voxels)

	for _, it := range c.Blocks {
		blocks[it.Index].Merge(it.Stats)
		volume.EmptyVoxels += it.Stats.EmptyVoxels
	}
}
