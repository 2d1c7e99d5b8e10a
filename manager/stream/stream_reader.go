package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dot5enko/volume-block-index/io"
	"github.com/dot5enko/volume-block-index/manager/cache"
)

var (
	ErrNotOpened      = errors.New("stream reader has no open file")
	ErrAlreadyStarted = errors.New("stream reader already started")
	ErrStillRunning   = errors.New("stream reader is still running")
)

// StreamReader fills empty pool buffers with consecutive chunks of a raw
// file on a single background goroutine. Reaching end of file stops the
// pool, so the consumer drains the queued full buffers and then sees the
// end of the stream.
type StreamReader struct {
	pool        *cache.BufferPool
	file        *io.FileReader
	elementSize int
	logger      *slog.Logger

	lock    sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	bytesRead atomic.Uint64
	buffers   atomic.Uint64
	err       error
}

func NewStreamReader(pool *cache.BufferPool, elementSize int, logger *slog.Logger) *StreamReader {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamReader{
		pool:        pool,
		elementSize: elementSize,
		logger:      logger,
	}
}

func (r *StreamReader) Pool() *cache.BufferPool {
	return r.pool
}

// Open fails with schema.ErrIO when the file cannot be opened.
func (r *StreamReader) Open(path string) error {
	file := io.NewFileReader(path)

	if err := file.Open(); err != nil {
		return err
	}

	if err := file.AdviseSequential(); err != nil {
		r.logger.Debug("sequential read advice rejected", "path", path, "err", err)
	}

	r.file = file
	return nil
}

func (r *StreamReader) FileSize() (int64, error) {
	if r.file == nil {
		return 0, ErrNotOpened
	}
	return r.file.Size()
}

// Start launches the fill loop. ctx cancellation has the same effect as Stop.
func (r *StreamReader) Start(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.file == nil {
		return ErrNotOpened
	}
	if r.running {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)

	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.err = nil

	go r.loop(loopCtx, r.done)

	return nil
}

func (r *StreamReader) loop(ctx context.Context, done chan struct{}) {

	defer close(done)
	defer r.pool.RequestStop()

	// stop the pool as soon as the context ends, so a NextEmpty blocked on
	// a slow consumer wakes up
	stopWatch := context.AfterFunc(ctx, r.pool.RequestStop)
	defer stopWatch()

	total := r.bytesRead.Load()
	elementSize := uint64(r.elementSize)

	for ctx.Err() == nil {

		buf, ok := r.pool.NextEmpty()
		if !ok {
			return
		}

		if ctx.Err() != nil {
			r.pool.ReturnEmpty(buf)
			return
		}

		n, eof, err := r.file.Read(buf.Data)
		if err != nil {
			r.pool.ReturnEmpty(buf)
			r.err = err
			r.logger.Error("raw volume read failed", "path", r.file.Path(), "offset", total, "err", err)
			return
		}

		buf.Offset = total / elementSize
		buf.Elements = n / r.elementSize

		if n%r.elementSize != 0 {
			r.logger.Warn("raw volume ends inside a voxel, trailing bytes ignored",
				"path", r.file.Path(), "trailing_bytes", n%r.elementSize)
		}

		total += uint64(n)
		r.bytesRead.Store(total)

		if buf.Elements > 0 {
			r.buffers.Add(1)
			r.pool.ReturnFull(buf)
		} else {
			r.pool.ReturnEmpty(buf)
		}

		if eof {
			r.logger.Debug("raw volume fully read", "path", r.file.Path(), "bytes", total, "buffers", r.buffers.Load())
			return
		}
	}
}

// Stop asks the loop to finish. It is observed before the next buffer is
// filled and never blocks.
func (r *StreamReader) Stop() {
	r.lock.Lock()
	cancel := r.cancel
	r.lock.Unlock()

	if cancel != nil {
		cancel()
	}
	r.pool.RequestStop()
}

// Join waits for the loop to finish and returns the number of bytes read.
func (r *StreamReader) Join() (uint64, error) {
	r.lock.Lock()
	done := r.done
	r.lock.Unlock()

	if done != nil {
		<-done
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.running {
		r.running = false
		r.cancel()
	}

	return r.bytesRead.Load(), r.err
}

func (r *StreamReader) BytesRead() uint64 {
	return r.bytesRead.Load()
}

func (r *StreamReader) BuffersFilled() uint64 {
	return r.buffers.Load()
}

// Reset rewinds the file and the pool for another pass. The previous pass
// must be joined and every buffer returned to the pool.
func (r *StreamReader) Reset() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.running {
		return ErrStillRunning
	}
	if r.file == nil {
		return ErrNotOpened
	}

	if err := r.file.Rewind(); err != nil {
		return err
	}

	r.pool.Reset()
	r.bytesRead.Store(0)
	r.buffers.Store(0)
	r.err = nil

	return nil
}

func (r *StreamReader) Close() error {
	r.Stop()
	r.Join()

	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
