package schema

import (
	"github.com/dot5enko/volume-block-index/bits"
)

// index + ijk + data offset + voxel dims + world origin + world dims + min/max/avg/total + empty voxels + flags
const FileBlockSize = 8 + 3*8 + 8 + 3*8 + 3*8 + 3*8 + 4*8 + 8 + 8

const (
	BlockFlagEmpty uint64 = 1 << iota
)

// FileBlock is one cell of the block grid as stored in the index file.
// Field order matches the on-disk record and keeps every field naturally
// aligned.
type FileBlock struct {
	Index      uint64 `json:"block_index"`
	IJK        Vec3   `json:"ijk"`
	DataOffset uint64 `json:"data_offset"`
	VoxelDims  Vec3   `json:"voxel_dims"`

	WorldOrigin [3]float64 `json:"world_origin"`
	WorldDims   [3]float64 `json:"world_dims"`

	Min   float64 `json:"min_val"`
	Max   float64 `json:"max_val"`
	Avg   float64 `json:"avg_val"`
	Total float64 `json:"total_val"`

	EmptyVoxels uint64 `json:"empty_voxels"`
	Flags       uint64 `json:"flags"`
}

func (b *FileBlock) IsEmpty() bool {
	return b.Flags&BlockFlagEmpty != 0
}

func (b *FileBlock) SetEmpty(empty bool) {
	if empty {
		b.Flags |= BlockFlagEmpty
	} else {
		b.Flags &^= BlockFlagEmpty
	}
}

func (b *FileBlock) VoxelCount() uint64 {
	return b.VoxelDims.Product()
}

// ApplyStats copies a finished reduction into the record. Blocks that never
// received a voxel keep zeroed statistics.
func (b *FileBlock) ApplyStats(stats BlockStats) {
	b.Total = stats.Total
	b.EmptyVoxels = stats.EmptyVoxels

	if stats.Voxels == 0 || stats.Bounds.IsEmpty() {
		b.Min, b.Max, b.Avg = 0, 0, 0
		return
	}

	b.Min = stats.Bounds.Min
	b.Max = stats.Bounds.Max
	b.Avg = stats.Total / float64(stats.Voxels)
}

func putVec3(bw *bits.BitWriter, v Vec3) {
	bw.PutUint64s(v.X, v.Y, v.Z)
}

func readVec3(reader *bits.BitsReader) (Vec3, error) {
	var xyz [3]uint64
	err := reader.ReadU64s(xyz[:])
	return Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, err
}

func (b *FileBlock) WriteTo(bw *bits.BitWriter) (int, error) {

	start := bw.Position()

	bw.PutUint64(b.Index)
	putVec3(bw, b.IJK)
	bw.PutUint64(b.DataOffset)
	putVec3(bw, b.VoxelDims)

	bw.PutFloat64s(b.WorldOrigin[:]...)
	bw.PutFloat64s(b.WorldDims[:]...)
	bw.PutFloat64s(b.Min, b.Max, b.Avg, b.Total)

	bw.PutUint64s(b.EmptyVoxels, b.Flags)

	return bw.Position() - start, nil
}

func (b *FileBlock) FromBytes(reader *bits.BitsReader) (topErr error) {

	// index, ijk, data offset, voxel dims
	var head [8]uint64
	if topErr = reader.ReadU64s(head[:]); topErr != nil {
		return topErr
	}
	b.Index = head[0]
	b.IJK = Vec3{X: head[1], Y: head[2], Z: head[3]}
	b.DataOffset = head[4]
	b.VoxelDims = Vec3{X: head[5], Y: head[6], Z: head[7]}

	// world origin, world dims, min, max, avg, total
	var values [10]float64
	if topErr = reader.ReadF64s(values[:]); topErr != nil {
		return topErr
	}
	copy(b.WorldOrigin[:], values[0:3])
	copy(b.WorldDims[:], values[3:6])
	b.Min, b.Max, b.Avg, b.Total = values[6], values[7], values[8], values[9]

	var tail [2]uint64
	if topErr = reader.ReadU64s(tail[:]); topErr != nil {
		return topErr
	}
	b.EmptyVoxels, b.Flags = tail[0], tail[1]

	return nil
}
