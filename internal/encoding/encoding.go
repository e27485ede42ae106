// Package encoding implements the append-only string<->int64 interner used
// for category and join-key values (spec.md §3 "Encoding"). It follows the
// teacher's registry idiom (internal/dialect.registry): a map guarded by a
// sync.RWMutex, with readers never observing a gap once an id has been
// assigned (spec.md §8 "Encoding monotonicity").
package encoding

import "sync"

// Null is the interned id representing an absent/unknown value — the
// empty string always encodes to 0.
const Null int64 = 0

// Encoding is an append-only string<->int64 dictionary. The zero value is
// not usable; construct with New.
type Encoding struct {
	mu       sync.RWMutex
	toID     map[string]int64
	toString []string
}

// New returns an Encoding with the empty string pre-registered at Null (0).
func New() *Encoding {
	e := &Encoding{
		toID:     make(map[string]int64),
		toString: []string{""},
	}
	e.toID[""] = Null
	return e
}

// Intern returns the id for s, assigning a new one if s has never been
// seen. Once assigned, an id is stable for the Encoding's lifetime
// (monotonicity invariant).
func (e *Encoding) Intern(s string) int64 {
	e.mu.RLock()
	if id, ok := e.toID[s]; ok {
		e.mu.RUnlock()
		return id
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.toID[s]; ok {
		return id
	}
	id := int64(len(e.toString))
	e.toString = append(e.toString, s)
	e.toID[s] = id
	return id
}

// Lookup returns the id already assigned to s without creating one,
// reporting ok=false if s has never been interned.
func (e *Encoding) Lookup(s string) (int64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.toID[s]
	return id, ok
}

// String returns the string for id, or "" if id is out of range.
func (e *Encoding) String(id int64) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if id < 0 || int(id) >= len(e.toString) {
		return ""
	}
	return e.toString[id]
}

// Len returns the number of distinct strings interned, including the
// empty string.
func (e *Encoding) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.toString)
}

// Local is a clone-and-append scratch encoding used by workers that want
// to intern new strings without taking the shared Encoding's write lock
// on every call. Merge folds the local assignments back into the parent
// under a single write lock.
type Local struct {
	parent   *Encoding
	toID     map[string]int64
	toString []string
	base     int
}

// Fork creates a Local encoding snapshotting e's current contents.
func (e *Encoding) Fork() *Local {
	e.mu.RLock()
	defer e.mu.RUnlock()
	toID := make(map[string]int64, len(e.toID))
	for k, v := range e.toID {
		toID[k] = v
	}
	toString := make([]string, len(e.toString))
	copy(toString, e.toString)
	return &Local{parent: e, toID: toID, toString: toString, base: len(toString)}
}

// Intern assigns or reuses an id within the local snapshot, without
// touching the parent.
func (l *Local) Intern(s string) int64 {
	if id, ok := l.toID[s]; ok {
		return id
	}
	id := int64(len(l.toString))
	l.toString = append(l.toString, s)
	l.toID[s] = id
	return id
}

// Merge folds every string assigned locally at or after the fork point
// into the parent Encoding under its write lock, returning a remap from
// local id to parent id (stable ids below the fork point map to
// themselves).
func (l *Local) Merge() map[int64]int64 {
	remap := make(map[int64]int64, len(l.toString)-l.base)
	for localID := 0; localID < l.base; localID++ {
		remap[int64(localID)] = int64(localID)
	}
	for localID := l.base; localID < len(l.toString); localID++ {
		s := l.toString[localID]
		remap[int64(localID)] = l.parent.Intern(s)
	}
	return remap
}
