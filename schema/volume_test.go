package schema

import (
	"errors"
	"testing"
)

func TestBlockGridEvenlyDivisible(t *testing.T) {
	vol, err := NewVolumeDescriptor(Vec3{4, 4, 4}, Vec3{2, 2, 2})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if vol.TotalBlocks() != 8 {
		t.Errorf("expected 8 blocks, got %d", vol.TotalBlocks())
	}
	if vol.BlockDims != (Vec3{2, 2, 2}) {
		t.Errorf("expected 2x2x2 blocks, got %s", vol.BlockDims)
	}

	idx, ok := vol.BlockIndexOfVoxel(2, 0, 0)
	if !ok || idx != 1 {
		t.Errorf("voxel (2,0,0) should belong to block 1, got %d (%t)", idx, ok)
	}

	idx, ok = vol.BlockIndexOfVoxel(3, 3, 3)
	if !ok || idx != 7 {
		t.Errorf("voxel (3,3,3) should belong to block 7, got %d (%t)", idx, ok)
	}
}

func TestBlockGridEdgeBlocks(t *testing.T) {
	vol, err := NewVolumeDescriptor(Vec3{10, 7, 5}, Vec3{3, 2, 1})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if vol.BlockDims != (Vec3{4, 4, 5}) {
		t.Errorf("expected 4x4x5 blocks, got %s", vol.BlockDims)
	}

	edge := vol.BlockVoxelDims(Vec3{2, 1, 0})
	if edge != (Vec3{2, 3, 5}) {
		t.Errorf("expected a 2x3x5 edge block, got %s", edge)
	}

	inner := vol.BlockVoxelDims(Vec3{0, 0, 0})
	if inner != vol.BlockDims {
		t.Errorf("inner block should be full size, got %s", inner)
	}

	// every voxel is owned by exactly one block
	var owned uint64
	for k := uint64(0); k < vol.NumBlocks.Z; k++ {
		for j := uint64(0); j < vol.NumBlocks.Y; j++ {
			for i := uint64(0); i < vol.NumBlocks.X; i++ {
				owned += vol.BlockVoxelDims(Vec3{i, j, k}).Product()
			}
		}
	}
	if owned != vol.TotalVoxels() {
		t.Errorf("blocks cover %d voxels, volume has %d", owned, vol.TotalVoxels())
	}

	idx, ok := vol.BlockIndexOfVoxel(9, 6, 4)
	if !ok || idx != LinearIndex(2, 1, 0, 3, 2) {
		t.Errorf("last voxel should be in the last block, got %d (%t)", idx, ok)
	}

	if _, ok := vol.BlockIndexOfVoxel(10, 0, 0); ok {
		t.Errorf("voxel outside the volume must not map to a block")
	}
}

func TestBlockGridRejectsEmptyEdgeBlock(t *testing.T) {
	// ceil(4/3) = 2, so a third block would start at voxel 4
	_, err := NewVolumeDescriptor(Vec3{4, 4, 4}, Vec3{3, 1, 1})
	if !errors.Is(err, ErrEmptyEdgeBlock) {
		t.Errorf("expected ErrEmptyEdgeBlock, got %v", err)
	}

	_, err = NewVolumeDescriptor(Vec3{4, 0, 4}, Vec3{1, 1, 1})
	if !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestLinearIndexDecompose(t *testing.T) {
	const dimX, dimY = 5, 3

	for idx := uint64(0); idx < dimX*dimY*4; idx++ {
		x, y, z := Decompose(idx, dimX, dimY)
		if back := LinearIndex(x, y, z, dimX, dimY); back != idx {
			t.Errorf("%d -> (%d,%d,%d) -> %d", idx, x, y, z, back)
		}
	}
}

func TestVolumeFinish(t *testing.T) {
	vol, _ := NewVolumeDescriptor(Vec3{2, 2, 1}, Vec3{1, 1, 1})

	vol.AddStats(6, BoundsFloat{Min: 1, Max: 3}, 3)
	vol.AddStats(4, BoundsFloat{Min: 4, Max: 4}, 1)
	vol.Finish()

	if vol.Avg != 2.5 {
		t.Errorf("expected avg 2.5, got %.2f", vol.Avg)
	}
	if vol.Min != 1 || vol.Max != 4 {
		t.Errorf("expected bounds [1, 4], got [%.2f, %.2f]", vol.Min, vol.Max)
	}

	empty, _ := NewVolumeDescriptor(Vec3{2, 2, 1}, Vec3{1, 1, 1})
	empty.Finish()
	if empty.Min != 0 || empty.Max != 0 {
		t.Errorf("a volume without voxels should report zero bounds")
	}
}

func TestParseVec3(t *testing.T) {
	for _, in := range []string{"256,128,64", "256x128x64", " 256, 128 ,64"} {
		v, err := ParseVec3(in)
		if err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
			continue
		}
		if v != (Vec3{256, 128, 64}) {
			t.Errorf("%q: got %s", in, v)
		}
	}

	for _, in := range []string{"", "1,2", "1,2,3,4", "a,b,c", "-1,2,3"} {
		if _, err := ParseVec3(in); err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
}

func TestParseDataType(t *testing.T) {
	cases := map[string]DataType{
		"uint8":          Uint8DataType,
		"unsigned char":  Uint8DataType,
		"SHORT":          Int16DataType,
		"float":          Float32DataType,
		"unsigned short": Uint16DataType,
	}

	for name, expected := range cases {
		typ, err := ParseDataType(name)
		if err != nil {
			t.Errorf("%q: unexpected error %v", name, err)
		} else if typ != expected {
			t.Errorf("%q: expected %s, got %s", name, expected, typ)
		}
	}

	if _, err := ParseDataType("double"); !errors.Is(err, ErrUnknownDataType) {
		t.Errorf("expected ErrUnknownDataType, got %v", err)
	}

	for typ := Int8DataType; typ <= Float32DataType; typ++ {
		back, err := ParseDataType(typ.String())
		if err != nil || back != typ {
			t.Errorf("%s does not parse back: %v", typ, err)
		}
	}
}
