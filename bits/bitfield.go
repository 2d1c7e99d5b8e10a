package bits

import "math/bits"

// Bitfield is a set of small non-negative integers, one bit per member,
// sized for a fixed number of bits at creation.
type Bitfield struct {
	words []uint64
	size  int
}

func NewBitfield(size int) *Bitfield {
	return &Bitfield{
		words: make([]uint64, (size+63)>>6),
		size:  size,
	}
}

// NewFullBitfield has every bit below size set.
func NewFullBitfield(size int) *Bitfield {
	b := NewBitfield(size)
	b.Fill()
	return b
}

func (b *Bitfield) Size() int {
	return b.size
}

func (b *Bitfield) Set(bit int) {
	word := bit >> 6 // bit / 64
	mask := uint64(1) << (bit & 63)
	b.words[word] |= mask
}

func (b *Bitfield) Clear(bit int) {
	word := bit >> 6
	mask := uint64(1) << (bit & 63)
	b.words[word] &^= mask
}

func (b *Bitfield) SetTo(bit int, v bool) {
	if v {
		b.Set(bit)
	} else {
		b.Clear(bit)
	}
}

func (b *Bitfield) Get(bit int) bool {
	if bit < 0 || bit >= b.size {
		return false
	}
	return (b.words[bit>>6]>>(bit&63))&1 == 1
}

// Fill sets every bit below Size.
func (b *Bitfield) Fill() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	if tail := b.size & 63; tail != 0 {
		b.words[len(b.words)-1] = (uint64(1) << tail) - 1
	}
}

func (b *Bitfield) Reset() {
	clear(b.words)
}

// FromSorted sets every bit listed in sorted, which must be ascending.
func (b *Bitfield) FromSorted(sorted []uint64) {
	arr := b.words // removes bounds checks in indexing
	if len(sorted) == 0 {
		return
	}

	currWord := sorted[0] >> 6
	mask := uint64(0)

	for _, bit := range sorted {
		w := bit >> 6
		if w != currWord {
			arr[currWord] |= mask
			currWord = w
			mask = 0
		}
		mask |= 1 << (bit & 63)
	}

	arr[currWord] |= mask
}

// AppendIndices appends set bits to out in ascending order.
func (b *Bitfield) AppendIndices(out []uint64) []uint64 {
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, uint64(wi*64+tz))
			w &= w - 1 // clear lowest set bit
		}
	}
	return out
}

func (b *Bitfield) Any() bool {
	for _, w := range b.words {
		if w != 0 {
			return true
		}
	}
	return false
}

func (b *Bitfield) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// And keeps only the bits also set in other. Both must have the same size.
func (b *Bitfield) And(other *Bitfield) {
	for i := range b.words {
		b.words[i] &= other.words[i]
	}
}

// Or adds the bits set in other. Both must have the same size.
func (b *Bitfield) Or(other *Bitfield) {
	for i := range b.words {
		b.words[i] |= other.words[i]
	}
}

// AndNot drops the bits set in other.
func (b *Bitfield) AndNot(other *Bitfield) {
	for i := range b.words {
		b.words[i] &^= other.words[i]
	}
}
