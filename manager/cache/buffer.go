package cache

import (
	"github.com/dot5enko/volume-block-index/bits"
)

// Buffer is a view over one slot of a BufferPool arena. Elements shrinks
// below Capacity only for the terminal short read of a stream. Offset is the
// element index of Data[0] relative to the start of the stream.
type Buffer struct {
	Data        []byte
	Elements    int
	Offset      uint64
	ElementSize int

	slot uint16
}

func (b *Buffer) Slot() uint16 {
	return b.slot
}

// Capacity is the number of elements the slot can hold.
func (b *Buffer) Capacity() int {
	return len(b.Data) / b.ElementSize
}

// Bytes returns the filled part of the slot.
func (b *Buffer) Bytes() []byte {
	return b.Data[:b.Elements*b.ElementSize]
}

// End is the stream element index one past the last element.
func (b *Buffer) End() uint64 {
	return b.Offset + uint64(b.Elements)
}

func (b *Buffer) reset() {
	b.Elements = b.Capacity()
	b.Offset = 0
}

// BufferView reinterprets the filled part of b as []T.
func BufferView[T any](b *Buffer) []T {
	return bits.MapBytesToArray[T](b.Data, b.Elements)
}
