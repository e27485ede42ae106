package tree

import "relfit/internal/agg"

// Aggregate predicts every row of ds with t, groups the per-match
// outputs by population row (ds.LossRows), and folds each group
// through kind — the in-process counterpart of internal/sqlgen
// wrapping the rendered CASE expression in the candidate's real SQL
// aggregation function, so a Transform call and the emitted SQL agree
// on every aggregation kind, not just SUM (spec.md §8.5). nRows is the
// population table's row count; population rows with no matching
// dataset rows fold to 0.
func Aggregate(ds *Dataset, t *Tree, kind agg.Kind, nRows int) ([]float64, error) {
	byRow := make(map[int][]float64, ds.NumRows())
	tsDiff := ds.TimeStampsDiff()
	var tsByRow map[int][]float64
	if tsDiff != nil {
		tsByRow = make(map[int][]float64, ds.NumRows())
	}

	for r := 0; r < ds.NumRows(); r++ {
		d, err := t.Predict(ds, r)
		if err != nil {
			return nil, err
		}
		row := ds.LossRows[r]
		byRow[row] = append(byRow[row], d)
		if tsDiff != nil {
			tsByRow[row] = append(tsByRow[row], tsDiff[r])
		}
	}

	out := make([]float64, nRows)
	for row, xs := range byRow {
		out[row] = kind.Reduce(xs, tsByRow[row])
	}
	return out, nil
}
