package cache

import (
	"time"

	"github.com/dot5enko/volume-block-index/schema"
)

// ResidentBlock is a block whose voxel payload is held in CPU memory.
type ResidentBlock struct {
	Block *schema.FileBlock

	// voxels of the block packed row after row, x fastest
	Data []byte

	Loaded time.Time
	Reads  int

	slot   uint16
	record uint16
}

func (r *ResidentBlock) Index() uint64 {
	return r.Block.Index
}

// residentSet keeps block indices ordered newest first.
type residentSet[T any] struct {
	capacity int
	order    []uint64
	entries  map[uint64]T
}

func newResidentSet[T any](capacity int) *residentSet[T] {
	return &residentSet[T]{
		capacity: capacity,
		order:    make([]uint64, 0, capacity),
		entries:  make(map[uint64]T, capacity),
	}
}

func (s *residentSet[T]) get(idx uint64) (T, bool) {
	v, ok := s.entries[idx]
	return v, ok
}

func (s *residentSet[T]) full() bool {
	return len(s.order) >= s.capacity
}

func (s *residentSet[T]) len() int {
	return len(s.order)
}

func (s *residentSet[T]) insert(idx uint64, v T) {
	s.entries[idx] = v
	s.order = append(s.order, 0)
	copy(s.order[1:], s.order)
	s.order[0] = idx
}

func (s *residentSet[T]) position(idx uint64) int {
	for i, it := range s.order {
		if it == idx {
			return i
		}
	}
	return -1
}

// touch moves idx to the newest position.
func (s *residentSet[T]) touch(idx uint64) {
	pos := s.position(idx)
	if pos <= 0 {
		return
	}
	copy(s.order[1:pos+1], s.order[:pos])
	s.order[0] = idx
}

func (s *residentSet[T]) remove(idx uint64) (T, bool) {
	v, ok := s.entries[idx]
	if !ok {
		return v, false
	}

	delete(s.entries, idx)
	if pos := s.position(idx); pos >= 0 {
		s.order = append(s.order[:pos], s.order[pos+1:]...)
	}

	return v, true
}

// victim scans in reverse residency order, oldest first, for the first
// block that is not visible. ok is false when every resident is visible.
func (s *residentSet[T]) victim(visible func(idx uint64) bool) (uint64, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		if !visible(s.order[i]) {
			return s.order[i], true
		}
	}
	return 0, false
}

// indices returns the resident block indices, newest first.
func (s *residentSet[T]) indices() []uint64 {
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}
