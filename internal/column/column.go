// Package column implements the engine's typed columnar storage: Column[T],
// the lazy ColumnView[T] transformation layer, and their binary codec. See
// spec.md §3 ("Column<T>") and §4.A.
package column

import (
	"math"

	"relfit/internal/engineerr"
)

// Type is the set of element types a Column may hold: float64 for
// numerical and time-stamp data, int64 for discrete/interned-category/
// join-key data, and string for raw (not yet interned) text.
type Type interface {
	~float64 | ~int64 | ~string
}

// elemBytes reports the on-disk/in-pool footprint of one element of T,
// used for Pool byte accounting. Strings are variable-length so this is
// an estimate refined by actual appends.
func elemBytes[T Type](v T) int64 {
	switch x := any(v).(type) {
	case float64:
		return 8
	case int64:
		return 8
	case string:
		return int64(len(x)) + 8
	default:
		return 0
	}
}

// Null returns the canonical null sentinel for T: NaN for float64,
// math.MinInt64 for int64, "" for string.
func Null[T Type]() T {
	var zero T
	switch any(zero).(type) {
	case float64:
		return any(math.NaN()).(T)
	case int64:
		return any(int64(math.MinInt64)).(T)
	case string:
		return any("").(T)
	default:
		return zero
	}
}

// IsNull reports whether v is the canonical null sentinel for its type.
func IsNull[T Type](v T) bool {
	switch x := any(v).(type) {
	case float64:
		return math.IsNaN(x)
	case int64:
		return x == math.MinInt64
	case string:
		return x == ""
	default:
		return false
	}
}

// Column is a homogeneous typed vector with a name, an optional unit
// string, and a set of subrole tags. Length is stable after construction
// unless appended to; mutation is append-only.
type Column[T Type] struct {
	name     string
	unit     string
	subroles map[string]struct{}
	data     []T
	slot     *Slot // non-nil when this Column is pool-backed
}

// New creates an in-memory Column with the given name and initial data.
// The slice is copied defensively.
func New[T Type](name string, data []T) *Column[T] {
	cp := make([]T, len(data))
	copy(cp, data)
	return &Column[T]{name: name, data: cp}
}

// NewPooled creates a Column backed by a Pool-tracked byte budget. The
// returned Column's Close method releases the pool slot; this must be
// called on every exit path (including after a panic, via defer) to
// avoid leaking the budget.
func NewPooled[T Type](name string, data []T, pool *Pool) (*Column[T], error) {
	slot := pool.Acquire()
	c := &Column[T]{name: name, slot: slot}
	if err := c.appendAll(data); err != nil {
		_ = slot.Close()
		return nil, err
	}
	return c, nil
}

// Name returns the column's name.
func (c *Column[T]) Name() string { return c.name }

// Unit returns the column's unit string (empty if unset).
func (c *Column[T]) Unit() string { return c.unit }

// SetUnit sets the column's unit string.
func (c *Column[T]) SetUnit(unit string) { c.unit = unit }

// Subroles returns the column's subrole tags in unspecified order.
func (c *Column[T]) Subroles() []string {
	out := make([]string, 0, len(c.subroles))
	for r := range c.subroles {
		out = append(out, r)
	}
	return out
}

// SetSubroles replaces the column's subrole tag set.
func (c *Column[T]) SetSubroles(roles []string) {
	c.subroles = make(map[string]struct{}, len(roles))
	for _, r := range roles {
		c.subroles[r] = struct{}{}
	}
}

// HasSubrole reports whether role is present in the column's subrole set.
func (c *Column[T]) HasSubrole(role string) bool {
	_, ok := c.subroles[role]
	return ok
}

// Len returns the number of elements in the column.
func (c *Column[T]) Len() int { return len(c.data) }

// At returns the element at index i, or an engineerr.InvalidArgument
// error if i is out of bounds. It does not panic.
func (c *Column[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(c.data) {
		return zero, engineerr.Newf(engineerr.InvalidArgument, "column %q: index %d out of bounds (len %d)", c.name, i, len(c.data))
	}
	return c.data[i], nil
}

// MustAt returns the element at index i, panicking on out-of-bounds. Use
// only where the caller has already validated i < Len().
func (c *Column[T]) MustAt(i int) T { return c.data[i] }

// Append adds v to the end of the column, growing the pool budget first
// if pool-backed.
func (c *Column[T]) Append(v T) error {
	return c.appendAll([]T{v})
}

func (c *Column[T]) appendAll(vs []T) error {
	if c.slot != nil {
		var extra int64
		for _, v := range vs {
			extra += elemBytes(v)
		}
		if err := c.slot.Grow(extra); err != nil {
			return err
		}
	}
	c.data = append(c.data, vs...)
	return nil
}

// AppendColumn appends all elements of other onto c; used by
// DataFrame.append. Element types are matched by the generic signature;
// the only error is the pool's, when a pool-backed c cannot grow.
func (c *Column[T]) AppendColumn(other *Column[T]) error {
	return c.appendAll(other.data)
}

// ByteSize returns the approximate in-memory/pool footprint of the
// column's data.
func (c *Column[T]) ByteSize() int64 {
	var total int64
	for _, v := range c.data {
		total += elemBytes(v)
	}
	return total
}

// Close releases the pool slot backing this column, if any. Safe to call
// on non-pooled columns and more than once.
func (c *Column[T]) Close() error {
	if c.slot == nil {
		return nil
	}
	return c.slot.Close()
}

// Clone returns a deep copy of c, optionally backed by a different pool
// (nil keeps it in-memory).
func (c *Column[T]) Clone(pool *Pool) (*Column[T], error) {
	if pool == nil {
		cl := New(c.name, c.data)
		cl.unit = c.unit
		if len(c.subroles) > 0 {
			cl.SetSubroles(c.Subroles())
		}
		return cl, nil
	}
	cl, err := NewPooled(c.name, c.data, pool)
	if err != nil {
		return nil, err
	}
	cl.unit = c.unit
	if len(c.subroles) > 0 {
		cl.SetSubroles(c.Subroles())
	}
	return cl, nil
}

// Select returns a new in-memory Column containing only the elements at
// the given row positions, in order (a boolean-selection / gather
// operation).
func (c *Column[T]) Select(rows []int) (*Column[T], error) {
	out := make([]T, len(rows))
	for i, r := range rows {
		if r < 0 || r >= len(c.data) {
			return nil, engineerr.Newf(engineerr.InvalidArgument, "column %q: select index %d out of bounds (len %d)", c.name, r, len(c.data))
		}
		out[i] = c.data[r]
	}
	res := New(c.name, out)
	res.unit = c.unit
	if len(c.subroles) > 0 {
		res.SetSubroles(c.Subroles())
	}
	return res, nil
}

// SortByKey returns the row permutation that would sort the column
// ascending (a "gather" index), using a stable sort so ties preserve
// original relative order — required for the deterministic tie-break
// rule in spec.md §4.F.
func (c *Column[T]) SortByKey(less func(a, b T) bool) []int {
	idx := make([]int, len(c.data))
	for i := range idx {
		idx[i] = i
	}
	// insertion-based stable sort via sort.SliceStable semantics,
	// delegated to the generic helper in sort.go to avoid importing
	// "sort" twice across files.
	stableSortIndices(idx, func(i, j int) bool { return less(c.data[i], c.data[j]) })
	return idx
}

// Raw exposes the underlying slice for read-only callers in the same
// module (e.g. dataframe index building). Callers must not mutate it.
func (c *Column[T]) Raw() []T { return c.data }
