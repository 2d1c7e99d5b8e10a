package bits

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/google/uuid"
)

var (
	ErrEOF          = errors.New("end of file")
	ErrReadMismatch = errors.New("read size mismatch")
)

// widest run read in one call by ReadU64s / ReadF64s
const MaxBinReaderBufferSize = 256

// BitsReader decodes fixed width little or big endian fields from a stream.
// Runs of 64-bit fields, which make up most of the index records, are read
// with a single call into the scratch buffer.
type BitsReader struct {
	readBuffer [MaxBinReaderBufferSize]byte

	buf   io.Reader
	order binary.ByteOrder

	consumed int
}

func NewReader(buf io.Reader, order binary.ByteOrder) *BitsReader {
	return &BitsReader{buf: buf, order: order}
}

// Consumed returns the number of bytes read so far.
func (r *BitsReader) Consumed() int {
	return r.consumed
}

func (r *BitsReader) fill(size int) ([]byte, error) {
	scratch := r.readBuffer[:size]
	return scratch, r.ReadBytes(size, scratch)
}

func (r *BitsReader) ReadU8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *BitsReader) ReadU16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *BitsReader) ReadU32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *BitsReader) ReadU64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *BitsReader) ReadF64() (float64, error) {
	u, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// ReadU64s fills out with consecutive 64-bit fields. At most
// MaxBinReaderBufferSize/8 values are read per call.
func (r *BitsReader) ReadU64s(out []uint64) error {
	for len(out) > 0 {
		n := min(len(out), MaxBinReaderBufferSize/8)

		b, err := r.fill(n * 8)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			out[i] = r.order.Uint64(b[i*8:])
		}
		out = out[n:]
	}
	return nil
}

func (r *BitsReader) ReadF64s(out []float64) error {
	for len(out) > 0 {
		n := min(len(out), MaxBinReaderBufferSize/8)

		b, err := r.fill(n * 8)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(r.order.Uint64(b[i*8:]))
		}
		out = out[n:]
	}
	return nil
}

func (r *BitsReader) ReadUUID() (result uuid.UUID, err error) {
	err = r.ReadBytes(16, result[:])
	return result, err
}

// Skip discards n bytes, used for reserved and unknown trailing fields.
func (r *BitsReader) Skip(n int) error {
	skipped, err := io.CopyN(io.Discard, r.buf, int64(n))
	r.consumed += int(skipped)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && skipped == 0:
		return ErrEOF
	case errors.Is(err, io.EOF):
		return ErrReadMismatch
	default:
		return err
	}
}

// ReadBytes fills out[:n]. A clean end of input before the first byte
// yields ErrEOF, a partial read yields ErrReadMismatch.
func (r *BitsReader) ReadBytes(n int, out []byte) error {

	readBytes, err := io.ReadFull(r.buf, out[:n])
	r.consumed += readBytes

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return ErrEOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ErrReadMismatch
	default:
		return err
	}
}
