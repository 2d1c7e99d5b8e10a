package bits

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrNoSpace = errors.New("encode buffer is full")

// BitWriter encodes fixed width fields into a caller provided buffer.
// Writing past the end panics unless growing was enabled, so a record
// encoder that outgrows its declared size fails loudly.
type BitWriter struct {
	pos   int
	data  []byte
	order binary.ByteOrder

	growingEnabled bool
}

func NewEncodeBuffer(buf []byte, order binary.ByteOrder) BitWriter {
	return BitWriter{
		data:  buf,
		order: order,
	}
}

func (w *BitWriter) EnableGrowing() {
	w.growingEnabled = true
}

func (w *BitWriter) Reset() {
	w.pos = 0
}

func (w *BitWriter) Position() int {
	return w.pos
}

// reserve makes room for n more bytes and returns the slice to fill.
func (w *BitWriter) reserve(n int) []byte {
	if w.pos+n > len(w.data) {
		if !w.growingEnabled {
			panic(fmt.Sprintf("bit writer growing is disabled on pos : %d, try grow %d, from size : %d", w.pos, n, len(w.data)))
		}

		grown := make([]byte, max(2*len(w.data), w.pos+n))
		copy(grown, w.data[:w.pos])
		w.data = grown
	}

	out := w.data[w.pos : w.pos+n]
	w.pos += n
	return out
}

func (w *BitWriter) Write(p []byte) (n int, err error) {
	if !w.growingEnabled && w.pos+len(p) > len(w.data) {
		return 0, ErrNoSpace
	}
	return copy(w.reserve(len(p)), p), nil
}

// Pad writes n zero bytes.
func (w *BitWriter) Pad(n int) {
	clear(w.reserve(n))
}

func (w *BitWriter) Bytes() []byte {
	return w.data[:w.pos]
}

func (w *BitWriter) WriteByte(c byte) error {
	w.reserve(1)[0] = c
	return nil
}

func (w *BitWriter) PutUint16(v uint16) {
	w.order.PutUint16(w.reserve(2), v)
}

func (w *BitWriter) PutUint32(v uint32) {
	w.order.PutUint32(w.reserve(4), v)
}

func (w *BitWriter) PutUint64(v uint64) {
	w.order.PutUint64(w.reserve(8), v)
}

func (w *BitWriter) PutFloat64(f float64) {
	w.order.PutUint64(w.reserve(8), math.Float64bits(f))
}

func (w *BitWriter) PutUint64s(values ...uint64) {
	out := w.reserve(8 * len(values))
	for i, v := range values {
		w.order.PutUint64(out[i*8:], v)
	}
}

func (w *BitWriter) PutFloat64s(values ...float64) {
	out := w.reserve(8 * len(values))
	for i, v := range values {
		w.order.PutUint64(out[i*8:], math.Float64bits(v))
	}
}
