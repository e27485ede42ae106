package tree

import (
	"math"

	"relfit/internal/engineerr"
	"relfit/internal/split"
)

// Predict walks the tree for dataset row r and returns the leaf
// contribution: the reached leaf's intercept plus the sum of that
// leaf's linear Weights (spec.md §4.F "Transform"). Values are read directly from
// ds; callers standardize before building ds and rescale the result
// afterward, per spec.md §4.F ("rescaled back to raw units").
func (t *Tree) Predict(ds *Dataset, r int) (float64, error) {
	id := t.Root
	for {
		if id == NoNode {
			return 0, engineerr.New(engineerr.InvalidArgument, "tree: predict reached an absent node")
		}
		node := t.Nodes[id]
		if node.IsLeaf {
			out := node.Intercept
			for _, w := range node.Weights {
				v, err := numericValue(ds, w.DataUsed, w.ColumnIndex, r)
				if err != nil {
					return 0, err
				}
				if math.IsNaN(v) {
					continue // a missing weight input contributes nothing, matching sqlgen's NULL-safe rendering
				}
				out += w.Coefficient * v
			}
			return out, nil
		}
		goLeft, err := evaluate(ds, &node.Split, r)
		if err != nil {
			return 0, err
		}
		if goLeft {
			id = node.Left
		} else {
			id = node.Right
		}
	}
}

func evaluate(ds *Dataset, s *split.Split, r int) (bool, error) {
	if isNaNVariant(s.DataUsed) {
		v, err := numericValue(ds, baseOf(s.DataUsed), s.ColumnIndex, r)
		if err != nil {
			return false, err
		}
		return s.EvaluateIsNaN(math.IsNaN(v)), nil
	}
	if group, ok := ds.categoricalGroupFor(s.DataUsed); ok {
		return s.EvaluateCategory(group.Values[r][s.ColumnIndex]), nil
	}
	v, err := numericValue(ds, s.DataUsed, s.ColumnIndex, r)
	if err != nil {
		return false, err
	}
	return s.EvaluateNumerical(v), nil
}

func numericValue(ds *Dataset, du split.DataUsed, col, r int) (float64, error) {
	group, ok := ds.numericGroup(du)
	if !ok {
		return 0, engineerr.Newf(engineerr.InvalidArgument, "tree: no numeric group for data_used %q", du)
	}
	if col < 0 || col >= len(group.Names) {
		return 0, engineerr.Newf(engineerr.InvalidArgument, "tree: column index %d out of range for %q", col, du)
	}
	return group.Values[r][col], nil
}

// categoricalGroupFor exposes the package-private lookup to this file
// (dataset.go defines the unexported helpers used across fit/transform).
func (d *Dataset) categoricalGroupFor(du split.DataUsed) (*CategoricalGroup, bool) {
	return d.categoricalGroup(du)
}

var isNaNVariants = map[split.DataUsed]split.DataUsed{
	split.NumericalInputIsNaN:  split.NumericalInput,
	split.NumericalOutputIsNaN: split.NumericalOutput,
	split.DiscreteInputIsNaN:   split.DiscreteInput,
	split.DiscreteOutputIsNaN:  split.DiscreteOutput,
}

func isNaNVariant(du split.DataUsed) bool {
	_, ok := isNaNVariants[du]
	return ok
}

func baseOf(du split.DataUsed) split.DataUsed {
	return isNaNVariants[du]
}
