package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dot5enko/volume-block-index/manager/cache"
	"github.com/dot5enko/volume-block-index/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, size int) string {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	path := filepath.Join(t.TempDir(), "volume.raw")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestStreamReaderReadsWholeFile(t *testing.T) {
	// 2.5 buffers of 64 two-byte voxels
	path := writeRaw(t, 64*2*2+64)

	pool, err := cache.NewBufferPool(3*128, 3, 2)
	require.NoError(t, err)

	reader := NewStreamReader(pool, 2, nil)
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	size, err := reader.FileSize()
	require.NoError(t, err)
	assert.EqualValues(t, 320, size)

	require.NoError(t, reader.Start(context.Background()))
	assert.ErrorIs(t, reader.Start(context.Background()), ErrAlreadyStarted)

	var offsets []uint64
	var elements []int
	for {
		buf, ok := pool.NextFull()
		if !ok {
			break
		}
		offsets = append(offsets, buf.Offset)
		elements = append(elements, buf.Elements)

		view := cache.BufferView[uint16](buf)
		assert.Len(t, view, buf.Elements)

		pool.ReturnEmpty(buf)
	}

	n, err := reader.Join()
	require.NoError(t, err)
	assert.EqualValues(t, 320, n)
	assert.Equal(t, []uint64{0, 64, 128}, offsets)
	assert.Equal(t, []int{64, 64, 32}, elements, "the terminal buffer shrinks")
	assert.EqualValues(t, 3, reader.BuffersFilled())
}

func TestStreamReaderStopWhileBlocked(t *testing.T) {
	path := writeRaw(t, 1<<20)

	pool, err := cache.NewBufferPool(4*1024, 4, 1)
	require.NoError(t, err)

	reader := NewStreamReader(pool, 1, nil)
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	require.NoError(t, reader.Start(context.Background()))

	// nobody consumes, so the reader fills every buffer and then waits
	require.Eventually(t, func() bool {
		return reader.BuffersFilled() == 4
	}, time.Second, time.Millisecond)

	joined := make(chan uint64)
	go func() {
		reader.Stop()
		reader.Stop()
		n, _ := reader.Join()
		joined <- n
	}()

	select {
	case n := <-joined:
		assert.EqualValues(t, 4*1024, n)
	case <-time.After(time.Second):
		t.Fatalf("join did not return after stop")
	}

	// full buffers queued before the stop are still delivered
	delivered := 0
	for {
		buf, ok := pool.NextFull()
		if !ok {
			break
		}
		delivered++
		pool.ReturnEmpty(buf)
	}
	assert.Equal(t, 4, delivered)
}

func TestStreamReaderContextCancel(t *testing.T) {
	path := writeRaw(t, 1<<20)

	pool, err := cache.NewBufferPool(2*1024, 2, 1)
	require.NoError(t, err)

	reader := NewStreamReader(pool, 1, nil)
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reader.Start(ctx))

	require.Eventually(t, func() bool {
		return reader.BuffersFilled() == 2
	}, time.Second, time.Millisecond)

	cancel()

	done := make(chan struct{})
	go func() {
		reader.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("join did not return after cancel")
	}
}

func TestStreamReaderResetRereads(t *testing.T) {
	path := writeRaw(t, 100)

	pool, err := cache.NewBufferPool(2*64, 2, 1)
	require.NoError(t, err)

	reader := NewStreamReader(pool, 1, nil)
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	drain := func() uint64 {
		require.NoError(t, reader.Start(context.Background()))
		var voxels uint64
		for {
			buf, ok := pool.NextFull()
			if !ok {
				break
			}
			voxels += uint64(buf.Elements)
			pool.ReturnEmpty(buf)
		}
		_, err := reader.Join()
		require.NoError(t, err)
		return voxels
	}

	assert.EqualValues(t, 100, drain())
	require.NoError(t, reader.Reset())
	assert.EqualValues(t, 100, drain())
}

func TestStreamReaderMissingFile(t *testing.T) {
	pool, err := cache.NewBufferPool(64, 1, 1)
	require.NoError(t, err)

	reader := NewStreamReader(pool, 1, nil)
	err = reader.Open(filepath.Join(t.TempDir(), "missing.raw"))
	assert.ErrorIs(t, err, schema.ErrIO)

	assert.ErrorIs(t, reader.Start(context.Background()), ErrNotOpened)
}
