package cache

import (
	"testing"

	"github.com/dot5enko/volume-block-index/schema"
)

func touch(buf []byte) {
	for i := 0; i < len(buf); i += 64 {
		buf[i]++
	}
}

// one payload slot of a 32^3 uint16 block
const benchBlockBytes = 32 * 32 * 32 * 2

func BenchmarkPayloadPool(b *testing.B) {
	p := NewPayloadPool(128, benchBlockBytes)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, idx := p.Acquire()
			touch(buf)
			p.Release(idx)
		}
	})
}

func BenchmarkRecordPool(b *testing.B) {
	p := NewRecordPool[ResidentBlock](128)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rb, idx := p.Acquire()
			rb.Reads++
			p.Release(idx)
		}
	})
}

func BenchmarkBufferPoolHandOff(b *testing.B) {
	p, err := NewBufferPool(4*benchBlockBytes, 4, 2)
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		buf, _ := p.NextEmpty()
		touch(buf.Data)
		p.ReturnFull(buf)

		full, _ := p.NextFull()
		p.ReturnEmpty(full)
	}
}

func BenchmarkResidentSetVictim(b *testing.B) {
	s := newResidentSet[struct{}](1024)
	for i := uint64(0); i < 1024; i++ {
		s.insert(i, struct{}{})
	}

	// everything but the newest entry is visible, the worst case scan
	visible := func(idx uint64) bool { return idx != 1023 }

	for b.Loop() {
		s.victim(visible)
	}
}

func TestPayloadPool(t *testing.T) {
	p := NewPayloadPool(2, schema.FileBlockSize)

	a, ida := p.Acquire()
	bb, idb := p.Acquire()
	if ida == idb {
		t.Fatalf("same slot handed out twice")
	}
	if len(a) != schema.FileBlockSize || cap(bb) != schema.FileBlockSize {
		t.Errorf("unexpected slot size %d/%d", len(a), cap(bb))
	}

	// slots must not overlap in the arena
	a[len(a)-1] = 0xff
	if bb[0] != 0 {
		t.Errorf("slot %d writes into slot %d", ida, idb)
	}

	if _, _, ok := p.TryAcquire(); ok {
		t.Errorf("exhausted pool should not hand out a slot")
	}

	p.Release(ida)
	if p.Free() != 1 {
		t.Errorf("expected one free slot, got %d", p.Free())
	}
}

func TestRecordPoolZeroesReleased(t *testing.T) {
	p := NewRecordPool[ResidentBlock](1)

	rb, id := p.Acquire()
	rb.Reads = 7
	p.Release(id)

	rb, _ = p.Acquire()
	if rb.Reads != 0 {
		t.Errorf("released record kept %d reads", rb.Reads)
	}
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	p := NewPayloadPool(1, 8)

	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for a slot released twice")
		}
	}()
	p.Release(0)
}

func TestResidentSetOrder(t *testing.T) {
	s := newResidentSet[int](3)
	s.insert(1, 10)
	s.insert(2, 20)
	s.insert(3, 30)

	if !s.full() {
		t.Errorf("set should be full")
	}

	s.touch(1)
	if got := s.indices(); got[0] != 1 || got[1] != 3 || got[2] != 2 {
		t.Errorf("unexpected order after touch: %v", got)
	}

	victim, ok := s.victim(func(idx uint64) bool { return idx == 2 })
	if !ok || victim != 3 {
		t.Errorf("expected 3 as the oldest invisible entry, got %d (%t)", victim, ok)
	}

	if _, ok := s.victim(func(uint64) bool { return true }); ok {
		t.Errorf("all visible must yield no victim")
	}

	if v, ok := s.remove(3); !ok || v != 30 {
		t.Errorf("remove returned %d (%t)", v, ok)
	}
	if s.len() != 2 || s.position(3) != -1 {
		t.Errorf("entry 3 still tracked")
	}
}
