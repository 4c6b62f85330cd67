// Package eventpool implements the fixed-capacity event record pool from
// spec section 4.A: a slab of pre-allocated event.Record values plus a
// singly-linked free list, giving O(1) acquire/release with no heap
// allocation on the hot path (spec section 9: "singly-linked free list ->
// still valid choice").
package eventpool

import (
	"fmt"
	"sync"

	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
)

// DefaultCapacity is the pool size used when a command does not override it.
const DefaultCapacity = 1000

// slot wraps a Record with the free-list link. The slab owns slots
// contiguously; next is the only mutable pointer outside the records
// themselves.
type slot struct {
	rec  event.Record
	next int32 // index into pool.slots, or freeListEnd
}

const freeListEnd = -1

// Pool is a bounded, pre-allocated store of event.Record values. The driver
// is the sole owner of a Pool; it is not safe to share a Pool across
// goroutines without external synchronization (the core pipeline is
// single-threaded, spec section 5, so the mutex below only guards against
// misuse such as a stray background goroutine, not against any intended
// concurrent design).
type Pool struct {
	mu       sync.Mutex
	slots    []slot
	freeHead int32
	inUse    map[*event.Record]int32 // record -> its slot index
	capacity int
}

// New allocates a Pool with room for capacity records. The backing array is
// allocated once, here, and never grows.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		slots:    make([]slot, capacity),
		inUse:    make(map[*event.Record]int32, capacity),
		capacity: capacity,
	}
	for i := range p.slots {
		if i == capacity-1 {
			p.slots[i].next = freeListEnd
		} else {
			p.slots[i].next = int32(i + 1)
		}
	}
	p.freeHead = 0
	return p
}

// Capacity returns the pool's fixed size.
func (p *Pool) Capacity() int { return p.capacity }

// InUse returns the number of currently acquired records.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// Acquire unlinks the head of the free list and returns a pointer to its
// (already-cleared) Record. It returns tracererr.ErrPoolExhausted when no
// record is free; it performs no allocation.
func (p *Pool) Acquire() (*event.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.freeHead == freeListEnd {
		return nil, fmt.Errorf("capacity %d: %w", p.capacity, tracererr.ErrPoolExhausted)
	}
	idx := p.freeHead
	p.freeHead = p.slots[idx].next
	rec := &p.slots[idx].rec
	p.inUse[rec] = idx
	return rec, nil
}

// Release returns rec to the free list, clearing its fields first so owned
// strings can be garbage collected and the next acquirer sees a blank
// record. Releasing a record that does not belong to this pool, or one
// already released, is a contract violation: it is reported as an error
// rather than allowed to corrupt the free list.
func (p *Pool) Release(rec *event.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.inUse[rec]
	if !ok {
		return fmt.Errorf("release of record not held by this pool (capacity %d)", p.capacity)
	}
	delete(p.inUse, rec)
	rec.ResetForRelease()

	p.slots[idx].next = p.freeHead
	p.freeHead = idx
	return nil
}

// Destroy releases all remaining in-use records and drops the backing
// storage. After Destroy the Pool must not be used.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for rec := range p.inUse {
		rec.ResetForRelease()
	}
	p.inUse = nil
	p.slots = nil
	p.freeHead = freeListEnd
}
