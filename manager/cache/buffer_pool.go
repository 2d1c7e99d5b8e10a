package cache

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

var (
	ErrBuffersOutstanding = errors.New("buffer pool reset while buffers are outstanding")
	ErrBufferNotOwned     = errors.New("buffer returned by a holder that does not own it")
)

// owner of a pool slot
const (
	ownerEmptyQueue uint32 = iota
	ownerProducer
	ownerFullQueue
	ownerConsumer
)

// BufferPool cycles a fixed set of buffers between a single producer and a
// single consumer. Buffers are sliced out of one arena allocated up front;
// each one is owned by exactly one of the two queues, the producer or the
// consumer at any instant, and the pool panics when a holder hands back a
// buffer it does not own.
type BufferPool struct {
	arena   []byte
	buffers []Buffer
	owners  []atomic.Uint32

	empty *BlockingQueue[*Buffer]
	full  *BlockingQueue[*Buffer]

	bufSize int
}

// NewBufferPool slices totalBytes into bufferCount equal buffers whose size
// is rounded down to a multiple of elementSize.
func NewBufferPool(totalBytes, bufferCount, elementSize int) (*BufferPool, error) {

	if bufferCount <= 0 || bufferCount > math.MaxUint16 {
		return nil, fmt.Errorf("buffer count %d out of range", bufferCount)
	}
	if elementSize <= 0 {
		return nil, fmt.Errorf("element size %d out of range", elementSize)
	}

	// keep slot starts aligned for every voxel type
	align := 8
	if elementSize > align {
		align = elementSize
	}

	bufSize := totalBytes / bufferCount
	bufSize -= bufSize % align

	if bufSize <= 0 {
		return nil, fmt.Errorf("%d bytes is not enough for %d buffers of %d-byte elements", totalBytes, bufferCount, elementSize)
	}

	arena := make([]byte, bufferCount*bufSize)

	p := &BufferPool{
		arena:   arena,
		buffers: make([]Buffer, bufferCount),
		owners:  make([]atomic.Uint32, bufferCount),
		empty:   NewBlockingQueue[*Buffer](bufferCount),
		full:    NewBlockingQueue[*Buffer](bufferCount),
		bufSize: bufSize,
	}

	for i := 0; i < bufferCount; i++ {
		start := i * bufSize
		end := start + bufSize

		b := &p.buffers[i]
		b.Data = arena[start:end:end] // full slice expression
		b.ElementSize = elementSize
		b.slot = uint16(i)
		b.reset()

		p.empty.Push(b)
	}

	return p, nil
}

func (p *BufferPool) BufferCount() int {
	return len(p.buffers)
}

// BufferSize is the byte size of every buffer.
func (p *BufferPool) BufferSize() int {
	return p.bufSize
}

func (p *BufferPool) validate(b *Buffer) {
	if b == nil || int(b.slot) >= len(p.buffers) || &p.buffers[b.slot] != b {
		panic(fmt.Errorf("%w: foreign buffer", ErrBufferNotOwned))
	}
}

func (p *BufferPool) transfer(b *Buffer, from, to uint32) {
	p.validate(b)
	if !p.owners[b.slot].CompareAndSwap(from, to) {
		panic(fmt.Errorf("%w: slot %d owned by %d, expected %d", ErrBufferNotOwned, b.slot, p.owners[b.slot].Load(), from))
	}
}

// NextEmpty hands an empty buffer to the producer. It blocks until one is
// returned and yields false once stop was requested.
func (p *BufferPool) NextEmpty() (*Buffer, bool) {
	if p.empty.Stopped() {
		return nil, false
	}

	b, ok := p.empty.Pop()
	if !ok {
		return nil, false
	}

	p.transfer(b, ownerEmptyQueue, ownerProducer)
	b.reset()

	return b, true
}

// NextFull hands the oldest full buffer to the consumer. Buffers queued
// before a stop request are still delivered.
func (p *BufferPool) NextFull() (*Buffer, bool) {
	b, ok := p.full.Pop()
	if !ok {
		return nil, false
	}

	p.transfer(b, ownerFullQueue, ownerConsumer)

	return b, true
}

// ReturnFull is called by the producer once b holds data.
func (p *BufferPool) ReturnFull(b *Buffer) {
	p.transfer(b, ownerProducer, ownerFullQueue)
	p.full.Push(b)
}

// ReturnEmpty gives b back for refilling. Both the consumer and a producer
// that did not fill the buffer may return it.
func (p *BufferPool) ReturnEmpty(b *Buffer) {
	p.validate(b)
	if !p.owners[b.slot].CompareAndSwap(ownerConsumer, ownerEmptyQueue) {
		p.transfer(b, ownerProducer, ownerEmptyQueue)
	}
	p.empty.Push(b)
}

// RequestStop is idempotent. Waiters on both queues wake up; full buffers
// already queued are still handed to the consumer.
func (p *BufferPool) RequestStop() {
	p.empty.RequestStop()
	p.full.RequestStop()
}

func (p *BufferPool) Stopped() bool {
	return p.full.Stopped()
}

// Outstanding counts buffers currently held by the producer or the consumer.
func (p *BufferPool) Outstanding() int {
	count := 0
	for i := range p.owners {
		switch p.owners[i].Load() {
		case ownerProducer, ownerConsumer:
			count++
		}
	}
	return count
}

// Reset moves undelivered full buffers back to the empty queue and clears
// the stop flags. Every buffer must be back in the pool.
func (p *BufferPool) Reset() {
	if n := p.Outstanding(); n > 0 {
		panic(fmt.Errorf("%w: %d buffers", ErrBuffersOutstanding, n))
	}

	for _, b := range p.full.Drain() {
		p.transfer(b, ownerFullQueue, ownerEmptyQueue)
		p.empty.Push(b)
	}

	p.empty.Reset()
	p.full.Reset()
}
