// Package interagg implements Intermediate Aggregation (spec.md §4.H):
// the adapter that lets a parent split's optimization criterion see
// aggregated yhat while a child subfeature tree updates per-input
// values one row at a time. Each aggregate cell tracks the sufficient
// statistics (count, sum, sum^2, sum^3, sum^4) needed by AVG/SUM/VAR/
// STDDEV/SKEWNESS/KURTOSIS, with O(1) single-row updates and a
// commit/revert pair that mirrors internal/loss's snapshot semantics.
// internal/agg.Kind.Reduce builds one Cell per population row from its
// matching rows' tree outputs and reads off the statistic the
// candidate's aggregation kind needs — the per-aggregate update path
// this package was built for.
//
// Grounded on the teacher's internal/apply analyzer running-statistics
// style: accumulate counters incrementally while scanning, rather than
// recomputing a full reduction on every change.
package interagg

import "math"

// Cell holds one aggregate's running sufficient statistics over the
// matches feeding it (one cell per population row, typically).
type Cell struct {
	count      int
	sum        float64
	sumSquared float64
	sumCubed   float64
	sumFourth  float64

	committedCount      int
	committedSum        float64
	committedSumSquared float64
	committedSumCubed   float64
	committedSumFourth  float64
}

// NewCell returns an empty Cell.
func NewCell() *Cell { return &Cell{} }

// AddRow folds x into the running statistics (O(1)).
func (c *Cell) AddRow(x float64) {
	c.count++
	c.sum += x
	c.sumSquared += x * x
	c.sumCubed += x * x * x
	c.sumFourth += x * x * x * x
}

// RemoveRow undoes a prior AddRow(x) (O(1)); used when a subfeature
// tree's update replaces one input row's contribution with another.
func (c *Cell) RemoveRow(x float64) {
	c.count--
	c.sum -= x
	c.sumSquared -= x * x
	c.sumCubed -= x * x * x
	c.sumFourth -= x * x * x * x
}

// ReplaceRow is AddRow(next) after RemoveRow(prev), the common case
// when an input row's value changes without altering cell membership.
func (c *Cell) ReplaceRow(prev, next float64) {
	c.RemoveRow(prev)
	c.AddRow(next)
}

// Count returns the number of rows folded into the cell.
func (c *Cell) Count() int { return c.count }

// Sum returns Sigma(x).
func (c *Cell) Sum() float64 { return c.sum }

// Avg returns Sigma(x)/count, or 0 for an empty cell.
func (c *Cell) Avg() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}

// Var returns the population variance E[x^2] - E[x]^2, or 0 for an
// empty cell.
func (c *Cell) Var() float64 {
	if c.count == 0 {
		return 0
	}
	n := float64(c.count)
	mean := c.sum / n
	return c.sumSquared/n - mean*mean
}

// Stddev returns sqrt(Var()).
func (c *Cell) Stddev() float64 {
	v := c.Var()
	if v < 0 {
		v = 0 // guard against floating-point underflow producing a tiny negative
	}
	return math.Sqrt(v)
}

// Skewness returns the (biased) third standardized moment, or 0 when
// the cell has fewer than 2 rows or zero variance.
func (c *Cell) Skewness() float64 {
	if c.count < 2 {
		return 0
	}
	n := float64(c.count)
	mean := c.sum / n
	m2 := c.sumSquared/n - mean*mean
	if m2 <= 0 {
		return 0
	}
	m3 := c.sumCubed/n - 3*mean*c.sumSquared/n + 2*mean*mean*mean
	return m3 / (m2 * math.Sqrt(m2))
}

// Kurtosis returns the (biased) fourth standardized moment minus 3
// (excess kurtosis), or 0 when the cell has fewer than 2 rows or zero
// variance.
func (c *Cell) Kurtosis() float64 {
	if c.count < 2 {
		return 0
	}
	n := float64(c.count)
	mean := c.sum / n
	m2 := c.sumSquared/n - mean*mean
	if m2 <= 0 {
		return 0
	}
	m4 := c.sumFourth/n - 4*mean*c.sumCubed/n + 6*mean*mean*c.sumSquared/n - 3*mean*mean*mean*mean
	return m4/(m2*m2) - 3
}

// Commit snapshots the cell's current statistics.
func (c *Cell) Commit() {
	c.committedCount = c.count
	c.committedSum = c.sum
	c.committedSumSquared = c.sumSquared
	c.committedSumCubed = c.sumCubed
	c.committedSumFourth = c.sumFourth
}

// Revert restores the last Commit snapshot, discarding updates made
// since.
func (c *Cell) Revert() {
	c.count = c.committedCount
	c.sum = c.committedSum
	c.sumSquared = c.committedSumSquared
	c.sumCubed = c.committedSumCubed
	c.sumFourth = c.committedSumFourth
}

// Table is a keyed collection of Cells, one per aggregate (typically
// one per population row for a given peripheral/aggregation pair).
type Table struct {
	cells map[int]*Cell
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{cells: map[int]*Cell{}}
}

// Cell returns the Cell for key, creating an empty one on first use.
func (t *Table) Cell(key int) *Cell {
	c, ok := t.cells[key]
	if !ok {
		c = NewCell()
		t.cells[key] = c
	}
	return c
}

// Update is one input-row change to apply to a Table: key identifies
// the aggregate cell, hasPrev/prev the value being removed (if any),
// next the value being added.
type Update struct {
	Key     int
	HasPrev bool
	Prev    float64
	Next    float64
}

// UpdateSamples applies a batch of per-input updates, then invokes
// onBatchDone once (spec.md §4.H: "the parent's update_samples is
// called once per update_samples batch", not once per row).
func (t *Table) UpdateSamples(updates []Update, onBatchDone func()) {
	for _, u := range updates {
		cell := t.Cell(u.Key)
		if u.HasPrev {
			cell.ReplaceRow(u.Prev, u.Next)
		} else {
			cell.AddRow(u.Next)
		}
	}
	if onBatchDone != nil {
		onBatchDone()
	}
}

// CommitAll snapshots every cell in the table.
func (t *Table) CommitAll() {
	for _, c := range t.cells {
		c.Commit()
	}
}

// RevertAll reverts every cell in the table to its last snapshot.
func (t *Table) RevertAll() {
	for _, c := range t.cells {
		c.Revert()
	}
}
