package column

import (
	"sync"
	"sync/atomic"

	"relfit/internal/engineerr"
)

// Pool is a scoped byte-budget accountant standing in for a growable
// memory-mapped backing store. Real engines back it with an mmap'd file;
// here a Column claims a slot (a byte budget) from the Pool when it is
// created with pool backing, and Grow/Release move that budget as the
// column's underlying slice grows or the column is dropped. Acquiring a
// slot never allocates the mapping itself eagerly — only the byte budget
// is reserved, the slice grows lazily like any Go slice.
type Pool struct {
	mu         sync.Mutex
	capacity   int64
	used       int64
	nextSlotID int64
}

// NewPool creates a Pool with the given capacity in bytes. A capacity of
// 0 means unbounded (useful for tests).
func NewPool(capacityBytes int64) *Pool {
	return &Pool{capacity: capacityBytes}
}

// Slot is a scoped claim against a Pool's byte budget. Closing a Slot
// releases its entire claim, including all exit paths: callers should
// defer Close immediately after Acquire.
type Slot struct {
	pool    *Pool
	id      int64
	claimed int64
	closed  int32
}

// Acquire reserves a new, empty Slot from the pool.
func (p *Pool) Acquire() *Slot {
	p.mu.Lock()
	id := p.nextSlotID
	p.nextSlotID++
	p.mu.Unlock()
	return &Slot{pool: p, id: id}
}

// Grow reserves additional bytes against the pool for this slot. It
// returns engineerr.StorageFull if the pool's capacity would be
// exceeded.
func (s *Slot) Grow(extraBytes int64) error {
	if s == nil || s.pool == nil {
		return nil
	}
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity > 0 && p.used+extraBytes > p.capacity {
		return engineerr.Newf(engineerr.StorageFull, "pool capacity %d exceeded requesting %d more bytes (used %d)", p.capacity, extraBytes, p.used)
	}
	p.used += extraBytes
	s.claimed += extraBytes
	return nil
}

// Close releases this slot's entire claim against the pool. Safe to call
// more than once and safe to call on a nil Slot.
func (s *Slot) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	p := s.pool
	p.mu.Lock()
	p.used -= s.claimed
	s.claimed = 0
	p.mu.Unlock()
	return nil
}

// Used returns the pool's currently reserved byte count.
func (p *Pool) Used() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}
