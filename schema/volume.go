package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vec3 is an x, y, z triple of voxel or block counts.
type Vec3 struct {
	X uint64 `json:"x"`
	Y uint64 `json:"y"`
	Z uint64 `json:"z"`
}

func (v Vec3) Product() uint64 {
	return v.X * v.Y * v.Z
}

func (v Vec3) String() string {
	return fmt.Sprintf("%dx%dx%d", v.X, v.Y, v.Z)
}

// ParseVec3 accepts "x,y,z" or "XxYxZ".
func ParseVec3(s string) (Vec3, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == 'X'
	})
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("expected three components, got %q", s)
	}

	var out [3]uint64
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Vec3{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		out[i] = v
	}

	return Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// LinearIndex flattens x, y, z into a row-major index with x fastest.
func LinearIndex(x, y, z, dimX, dimY uint64) uint64 {
	return x + dimX*(y+dimY*z)
}

// Decompose is the inverse of LinearIndex for a volume of the given extent.
func Decompose(idx, dimX, dimY uint64) (x, y, z uint64) {
	x = idx % dimX
	y = (idx / dimX) % dimY
	z = (idx / dimX) / dimY
	return
}

type VolumeDescriptor struct {
	Dims      Vec3 `json:"dims"`
	BlockDims Vec3 `json:"block_dims"`
	NumBlocks Vec3 `json:"num_blocks"`

	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Total float64 `json:"total"`

	EmptyVoxels uint64 `json:"empty_voxels"`
	VoxelsSeen  uint64 `json:"voxels_seen"`
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// NewVolumeDescriptor derives the block extent as ceil(dims/numBlocks) on
// every axis. The last block on an axis holds the remainder; layouts that
// would leave it without voxels are rejected.
func NewVolumeDescriptor(dims, numBlocks Vec3) (*VolumeDescriptor, error) {

	if dims.Product() == 0 || numBlocks.Product() == 0 {
		return nil, fmt.Errorf("%w: dims %s, blocks %s", ErrInvalidLayout, dims, numBlocks)
	}

	blockDims := Vec3{
		X: ceilDiv(dims.X, numBlocks.X),
		Y: ceilDiv(dims.Y, numBlocks.Y),
		Z: ceilDiv(dims.Z, numBlocks.Z),
	}

	check := func(axis string, d, n, b uint64) error {
		if (n-1)*b >= d {
			return fmt.Errorf("%w: axis %s, %d voxels in %d blocks of %d", ErrEmptyEdgeBlock, axis, d, n, b)
		}
		return nil
	}

	if err := check("x", dims.X, numBlocks.X, blockDims.X); err != nil {
		return nil, err
	}
	if err := check("y", dims.Y, numBlocks.Y, blockDims.Y); err != nil {
		return nil, err
	}
	if err := check("z", dims.Z, numBlocks.Z, blockDims.Z); err != nil {
		return nil, err
	}

	return &VolumeDescriptor{
		Dims:      dims,
		BlockDims: blockDims,
		NumBlocks: numBlocks,
		Min:       math.Inf(1),
		Max:       math.Inf(-1),
	}, nil
}

func (v *VolumeDescriptor) TotalBlocks() uint64 {
	return v.NumBlocks.Product()
}

func (v *VolumeDescriptor) TotalVoxels() uint64 {
	return v.Dims.Product()
}

// BlockVoxelDims returns the voxel extent of the block at ijk, which is
// smaller than BlockDims for blocks on the far edges.
func (v *VolumeDescriptor) BlockVoxelDims(ijk Vec3) Vec3 {
	edge := func(i, b, d uint64) uint64 {
		start := i * b
		if start+b > d {
			return d - start
		}
		return b
	}
	return Vec3{
		X: edge(ijk.X, v.BlockDims.X, v.Dims.X),
		Y: edge(ijk.Y, v.BlockDims.Y, v.Dims.Y),
		Z: edge(ijk.Z, v.BlockDims.Z, v.Dims.Z),
	}
}

// BlockIndexOfVoxel maps volume coordinates to the owning block. ok is
// false for coordinates outside the declared volume.
func (v *VolumeDescriptor) BlockIndexOfVoxel(x, y, z uint64) (idx uint64, ok bool) {
	if x >= v.Dims.X || y >= v.Dims.Y || z >= v.Dims.Z {
		return 0, false
	}

	bi := x / v.BlockDims.X
	bj := y / v.BlockDims.Y
	bk := z / v.BlockDims.Z

	if bi >= v.NumBlocks.X || bj >= v.NumBlocks.Y || bk >= v.NumBlocks.Z {
		return 0, false
	}

	return LinearIndex(bi, bj, bk, v.NumBlocks.X, v.NumBlocks.Y), true
}

// ResetStats clears the running statistics before another pass.
func (v *VolumeDescriptor) ResetStats() {
	v.Min = math.Inf(1)
	v.Max = math.Inf(-1)
	v.Avg = 0
	v.Total = 0
	v.VoxelsSeen = 0
	v.EmptyVoxels = 0
}

func (v *VolumeDescriptor) AddStats(total float64, bounds BoundsFloat, voxels uint64) {
	v.Total += total
	v.VoxelsSeen += voxels
	if bounds.Min < v.Min {
		v.Min = bounds.Min
	}
	if bounds.Max > v.Max {
		v.Max = bounds.Max
	}
}

// Finish turns the running sum into the average over the declared voxel count.
func (v *VolumeDescriptor) Finish() {
	v.Avg = v.Total / float64(v.TotalVoxels())
	if v.VoxelsSeen == 0 || v.Min > v.Max {
		v.Min, v.Max = 0, 0
	}
}
