package cache

import "sync"

// BlockingQueue is a FIFO whose Pop blocks until an item arrives and whose
// Push blocks while a bounded queue is full. After RequestStop, items that
// are already queued are still handed out; once the queue is drained Pop
// returns false instead of blocking.
type BlockingQueue[T any] struct {
	lock     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items []T
	head  int

	capacity int
	stopped  bool
}

// NewBlockingQueue creates a queue. capacity <= 0 means unbounded.
func NewBlockingQueue[T any](capacity int) *BlockingQueue[T] {
	q := &BlockingQueue[T]{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.lock)
	q.notFull = sync.NewCond(&q.lock)

	if capacity > 0 {
		q.items = make([]T, 0, capacity)
	}

	return q
}

func (q *BlockingQueue[T]) size() int {
	return len(q.items) - q.head
}

// Push appends item and wakes one waiter. It returns false if the queue is
// stopped and full; a stopped queue with free room still accepts items so
// resources can be handed back during shutdown.
func (q *BlockingQueue[T]) Push(item T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.capacity > 0 && q.size() >= q.capacity {
		if q.stopped {
			return false
		}
		q.notFull.Wait()
	}

	if q.head > 0 && len(q.items) == cap(q.items) {
		// compact before append would grow the backing array
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()

	return true
}

// Pop removes the oldest item, blocking while the queue is empty and not
// stopped.
func (q *BlockingQueue[T]) Pop() (item T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.size() == 0 {
		if q.stopped {
			return item, false
		}
		q.notEmpty.Wait()
	}

	return q.popLocked(), true
}

// TryPop never blocks.
func (q *BlockingQueue[T]) TryPop() (item T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.size() == 0 {
		return item, false
	}

	return q.popLocked(), true
}

func (q *BlockingQueue[T]) popLocked() T {
	var zero T

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}

	q.notFull.Signal()

	return item
}

func (q *BlockingQueue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.size()
}

// RequestStop is idempotent and wakes every blocked caller.
func (q *BlockingQueue[T]) RequestStop() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.stopped = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *BlockingQueue[T]) Stopped() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.stopped
}

// Reset clears the stop flag. Queued items are kept.
func (q *BlockingQueue[T]) Reset() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.stopped = false
}

// Drain removes and returns every queued item without blocking.
func (q *BlockingQueue[T]) Drain() []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	out := make([]T, 0, q.size())
	for q.size() > 0 {
		out = append(out, q.popLocked())
	}

	return out
}
