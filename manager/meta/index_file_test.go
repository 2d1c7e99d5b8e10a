package meta

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dot5enko/volume-block-index/compression"
	"github.com/dot5enko/volume-block-index/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *IndexFile {
	t.Helper()

	vol, err := schema.NewVolumeDescriptor(schema.Vec3{X: 6, Y: 4, Z: 4}, schema.Vec3{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)

	vol.Total, vol.Avg, vol.Min, vol.Max, vol.EmptyVoxels = 960, 10, 0, 20, 12

	blocks := make([]schema.FileBlock, vol.TotalBlocks())
	for i := range blocks {
		b := &blocks[i]
		b.Index = uint64(i)
		b.IJK.X, b.IJK.Y, b.IJK.Z = schema.Decompose(uint64(i), 2, 2)
		b.VoxelDims = vol.BlockVoxelDims(b.IJK)
		b.DataOffset = 2 * schema.LinearIndex(b.IJK.X*3, b.IJK.Y*2, b.IJK.Z*2, 6, 4)
		b.Min, b.Max, b.Avg, b.Total = float64(i), float64(i+10), float64(i)+0.5, float64(i*12)
		b.EmptyVoxels = uint64(i % 3)
		b.SetEmpty(i%2 == 0)
	}

	f, err := FromBuilder(vol, blocks, schema.Int16DataType)
	require.NoError(t, err)
	return f
}

func TestIndexFileRoundTrip(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteBinaryIndexFile(&buf))
	assert.Equal(t, schema.IndexHeaderSize+8*schema.FileBlockSize, buf.Len())

	loaded, err := ReadIndexFile(&buf, nil)
	require.NoError(t, err)

	assert.Equal(t, f.Header, loaded.Header)
	assert.Equal(t, f.Blocks, loaded.Blocks)
	assert.False(t, loaded.Stale)
	assert.Equal(t, 4, loaded.EmptyBlocks())
	assert.Equal(t, 3*2*2*2, loaded.MaxBlockBytes())
}

func TestIndexFileRejectsWrongBlockCount(t *testing.T) {
	vol, err := schema.NewVolumeDescriptor(schema.Vec3{X: 4, Y: 4, Z: 4}, schema.Vec3{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)

	_, err = FromBuilder(vol, make([]schema.FileBlock, 3), schema.Uint8DataType)
	assert.ErrorIs(t, err, schema.ErrInvalidLayout)
}

func TestIndexFileCompressedRoundTrip(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCompressedIndexFile(&buf))
	assert.True(t, compression.IsLz4Frame(buf.Bytes()))

	loaded, err := ReadIndexFile(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Header, loaded.Header)
	assert.Equal(t, f.Blocks, loaded.Blocks)
}

func TestIndexFileSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	for _, compressed := range []bool{false, true} {
		f := testIndex(t)
		path := filepath.Join(dir, "nested", "volume.vbi")

		require.NoError(t, f.Save(path, compressed))
		assert.Equal(t, path, f.Path)

		loaded, err := FromBinaryIndexFile(path, nil)
		require.NoError(t, err)
		assert.Equal(t, f.Header, loaded.Header)
		assert.Equal(t, f.Blocks, loaded.Blocks)
		assert.Equal(t, path, loaded.Path)
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "nested", "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestIndexFileMissing(t *testing.T) {
	_, err := FromBinaryIndexFile(filepath.Join(t.TempDir(), "missing.vbi"), nil)
	assert.ErrorIs(t, err, schema.ErrIO)
}

func TestIndexFileTruncated(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteBinaryIndexFile(&buf))

	for _, cut := range []int{10, schema.IndexHeaderSize, schema.IndexHeaderSize + schema.FileBlockSize*3 + 17} {
		_, err := ReadIndexFile(bytes.NewReader(buf.Bytes()[:cut]), nil)
		assert.ErrorIs(t, err, schema.ErrCorruptIndex, "cut at %d", cut)
	}

	path := filepath.Join(t.TempDir(), "short.vbi")
	require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()-1], 0o644))

	_, err := FromBinaryIndexFile(path, nil)
	assert.ErrorIs(t, err, schema.ErrCorruptIndex)
}

func TestIndexFileChecksumMismatch(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteBinaryIndexFile(&buf))

	raw := buf.Bytes()
	// flip a bit inside the world origin of the last block
	raw[len(raw)-schema.FileBlockSize/2] ^= 0x01

	_, err := ReadIndexFile(bytes.NewReader(raw), nil)
	assert.ErrorIs(t, err, schema.ErrCorruptIndex)
}

func TestIndexFileVersionMismatchIsStale(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteBinaryIndexFile(&buf))

	raw := buf.Bytes()
	binary.LittleEndian.PutUint16(raw[4:], schema.CurrentIndexVersion+1)

	loaded, err := ReadIndexFile(bytes.NewReader(raw), nil)
	require.NoError(t, err)
	assert.True(t, loaded.Stale)
	assert.Equal(t, schema.CurrentIndexVersion+1, loaded.Header.Version)
	assert.Equal(t, f.Blocks, loaded.Blocks)
}

func TestIndexFileASCIIDump(t *testing.T) {
	f := testIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.WriteASCIIIndexFile(&buf))

	var dump struct {
		Version     uint16             `json:"version"`
		DataType    string             `json:"data_type"`
		EmptyBlocks int                `json:"empty_blocks"`
		Blocks      []schema.FileBlock `json:"blocks"`
		Volume      struct {
			Dims schema.Vec3 `json:"dims"`
		} `json:"volume"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &dump))

	assert.Equal(t, schema.CurrentIndexVersion, dump.Version)
	assert.Equal(t, "int16", dump.DataType)
	assert.Equal(t, 4, dump.EmptyBlocks)
	assert.Equal(t, f.Blocks, dump.Blocks)
	assert.Equal(t, schema.Vec3{X: 6, Y: 4, Z: 4}, dump.Volume.Dims)
}

func TestIndexRegistrySharesLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.vbi")
	require.NoError(t, testIndex(t).Save(path, false))

	registry := NewIndexRegistry(dir, nil)

	const callers = 16
	results := make([]*IndexFile, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			index, err := registry.Load(path)
			assert.NoError(t, err)
			results[i] = index
		}()
	}
	wg.Wait()

	for _, index := range results {
		assert.Same(t, results[0], index)
	}
	assert.Equal(t, 1, registry.Len())

	// relative and absolute spellings resolve to the same entry
	rel, err := filepath.Rel(mustGetwd(t), path)
	require.NoError(t, err)
	assert.Same(t, results[0], registry.Get(rel))

	registry.Forget(path)
	assert.Nil(t, registry.Get(path))

	_, err = registry.Load(filepath.Join(dir, "missing.vbi"))
	assert.ErrorIs(t, err, schema.ErrIO)
	assert.Equal(t, 0, registry.Len())
}

func mustGetwd(t *testing.T) string {
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func TestIndexPaths(t *testing.T) {
	next := NewIndexRegistry("", nil)
	assert.Equal(t, "/data/head.vbi", next.IndexPathFor("/data/head.raw"))
	assert.Equal(t, "/data/head.vbi.json", next.ASCIIIndexPathFor("/data/head.raw"))

	dir := t.TempDir()
	stored := NewIndexRegistry(filepath.Join(dir, "indexes"), nil)
	assert.Equal(t, filepath.Join(dir, "indexes", "head.vbi"), stored.IndexPathFor("/data/head.raw"))

	created, err := stored.CreateStoragePathIfNotExists()
	require.NoError(t, err)
	info, err := os.Stat(created)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
