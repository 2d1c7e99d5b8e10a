package cache

import "fmt"

// freeSlots holds the unused slot ids of a fixed pool. take blocks while
// every slot is handed out.
type freeSlots chan uint16

func newFreeSlots(n int) freeSlots {
	s := make(freeSlots, n)
	for id := range n {
		s <- uint16(id)
	}
	return s
}

func (s freeSlots) take() uint16 {
	return <-s
}

func (s freeSlots) tryTake() (uint16, bool) {
	select {
	case id := <-s:
		return id, true
	default:
		return 0, false
	}
}

func (s freeSlots) put(id uint16) {
	select {
	case s <- id:
	default:
		panic(fmt.Sprintf("slot %d released into a pool with no slot out", id))
	}
}

// RecordPool is a fixed set of reusable T values addressed by slot id. A
// released record is zeroed before it can be handed out again.
type RecordPool[T any] struct {
	records []T
	free    freeSlots
}

func NewRecordPool[T any](n int) *RecordPool[T] {
	return &RecordPool[T]{
		records: make([]T, n),
		free:    newFreeSlots(n),
	}
}

func (p *RecordPool[T]) Acquire() (*T, uint16) {
	id := p.free.take()
	return &p.records[id], id
}

func (p *RecordPool[T]) Release(id uint16) {
	var zero T
	p.records[id] = zero
	p.free.put(id)
}

func (p *RecordPool[T]) Free() int {
	return len(p.free)
}

// PayloadPool carves one arena into equal payload slots, one per CPU
// resident block.
type PayloadPool struct {
	arena    []byte
	slotSize int
	free     freeSlots
}

func NewPayloadPool(n int, slotSize int) *PayloadPool {
	return &PayloadPool{
		arena:    make([]byte, n*slotSize),
		slotSize: slotSize,
		free:     newFreeSlots(n),
	}
}

func (p *PayloadPool) slot(id uint16) []byte {
	start := int(id) * p.slotSize
	end := start + p.slotSize
	return p.arena[start:end:end]
}

func (p *PayloadPool) Acquire() ([]byte, uint16) {
	id := p.free.take()
	return p.slot(id), id
}

// TryAcquire is the non-blocking form of Acquire.
func (p *PayloadPool) TryAcquire() ([]byte, uint16, bool) {
	id, ok := p.free.tryTake()
	if !ok {
		return nil, 0, false
	}
	return p.slot(id), id, true
}

func (p *PayloadPool) Release(id uint16) {
	p.free.put(id)
}

func (p *PayloadPool) Free() int {
	return len(p.free)
}

func (p *PayloadPool) SlotSize() int {
	return p.slotSize
}
