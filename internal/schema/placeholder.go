// Package schema implements the engine's declarative data-model graph
// (spec.md §3 "Schema / Placeholder"): population joined to peripherals via
// (join-key, ts, upper-ts) triples, recursively. Grounded on the teacher's
// internal/core validate* family: the same top-level Validate() dispatching
// to small, named validateX helpers, and the same fmt.Errorf-wrapped,
// parent-qualified error messages.
package schema

// Placeholder is one node of the schema tree: it names a table and lists
// the children joined to it. The root Placeholder is the population
// table; every Child.Table is itself a Placeholder, so peripherals
// nest recursively (a peripheral can have its own peripherals —
// subtables, spec.md glossary "Subfeature / subtable").
type Placeholder struct {
	Name     string
	Children []*Child
}

// Child describes one join from the parent Placeholder to a peripheral
// Placeholder.
type Child struct {
	Table *Placeholder

	PopulationJoinKey string
	PeripheralJoinKey string

	PopulationTimeStamp string
	PeripheralTimeStamp string

	// UpperTimeStamp, if non-empty, names a peripheral-side column used
	// as a horizon cutoff: a match additionally requires
	// pop.ts < perip.upper_ts (spec.md §3 "Match").
	UpperTimeStamp string

	// AllowLaggedTargets gates inclusion of same-timestamp target-bearing
	// rows (spec.md §3 "Match").
	AllowLaggedTargets bool

	// Propositionalization marks this join as eligible for
	// propositionalized (flattened, non-aggregated) feature generation
	// rather than only aggregation-based features.
	Propositionalization bool
}

// New constructs a root Placeholder for the population table named name.
func New(name string) *Placeholder {
	return &Placeholder{Name: name}
}

// AddChild appends and returns a new Child joining peripheralName to p.
func (p *Placeholder) AddChild(peripheralName string, child Child) *Child {
	child.Table = New(peripheralName)
	p.Children = append(p.Children, &child)
	return p.Children[len(p.Children)-1]
}

// Walk visits p and every descendant Placeholder depth-first, calling fn
// with the node and its parent Child edge (nil for the root).
func (p *Placeholder) Walk(fn func(node *Placeholder, viaEdge *Child)) {
	p.walk(nil, fn)
}

func (p *Placeholder) walk(viaEdge *Child, fn func(*Placeholder, *Child)) {
	fn(p, viaEdge)
	for _, child := range p.Children {
		child.Table.walk(child, fn)
	}
}
