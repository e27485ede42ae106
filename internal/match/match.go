// Package match implements the engine's Matchmaker (spec.md §4.C): for a
// population row and a peripheral table, produce the deterministically
// ordered set of peripheral rows joined to it under the schema's
// join-key/time-stamp/upper-time-stamp constraints.
//
// Grounded on the teacher's internal/diff row-matching loops: ordered
// iteration over a candidate list with no extra allocation beyond the
// result slice, and the same early-continue filter style.
package match

import (
	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
	"relfit/internal/schema"
)

// Match is one population-to-peripheral join: ix_output indexes the
// population row, ix_input indexes the peripheral row, ts_diff is
// pop.ts - perip.ts for that pair.
type Match struct {
	IxOutput int
	IxInput  int
	TSDiff   float64
}

// Candidates returns, for population row popRow, every peripheral row
// matched under edge's join-key/time-stamp constraints. pop and perip
// must share edge's JKEncoding (they do whenever both come from the
// same Engine) so the interned join-key id on the population side can
// be looked up directly in the peripheral's join index.
//
// Matches emitted satisfy, in order: identical join key; perip.ts <=
// pop.ts; perip.upper_ts, when present, strictly greater than pop.ts;
// allow_lagged_targets or perip.ts != pop.ts. Candidate order is
// ascending by peripheral row position, so the result is deterministic.
func Candidates(pop *dataframe.DataFrame, popRow int, perip *dataframe.DataFrame, edge *schema.Child) ([]Match, error) {
	popJK, err := pop.JoinKey(edge.PopulationJoinKey)
	if err != nil {
		return nil, err
	}
	popTS, err := pop.TimeStamp(edge.PopulationTimeStamp)
	if err != nil {
		return nil, err
	}
	peripTS, err := perip.TimeStamp(edge.PeripheralTimeStamp)
	if err != nil {
		return nil, err
	}
	var upperTS *column.Column[float64]
	if edge.UpperTimeStamp != "" {
		upperTS, err = perip.TimeStamp(edge.UpperTimeStamp)
		if err != nil {
			return nil, err
		}
	}

	jkVal, err := popJK.At(popRow)
	if err != nil {
		return nil, err
	}
	rTS, err := popTS.At(popRow)
	if err != nil {
		return nil, err
	}

	candidateRows, ok := perip.FindJK(edge.PeripheralJoinKey, jkVal)
	if !ok {
		return nil, nil
	}

	out := make([]Match, 0, len(candidateRows))
	for _, c := range candidateRows {
		cTS := peripTS.MustAt(c)
		if cTS > rTS {
			continue
		}
		if upperTS != nil {
			u := upperTS.MustAt(c)
			if !(rTS < u) {
				continue
			}
		}
		if !edge.AllowLaggedTargets && cTS == rTS {
			continue
		}
		out = append(out, Match{IxOutput: popRow, IxInput: c, TSDiff: rTS - cTS})
	}
	return out, nil
}

// WithinSchema walks the full schema tree, computing Candidates for
// every (parent row, child edge) pair at every level. A nested edge's
// parent is its enclosing subtable, so its Matches' IxOutput index that
// subtable's rows. tables maps table name to DataFrame, mirroring the
// map schema.Validate expects.
func WithinSchema(root *schema.Placeholder, tables map[string]*dataframe.DataFrame) (map[*schema.Child][]Match, error) {
	result := map[*schema.Child][]Match{}
	var walk func(node *schema.Placeholder) error
	walk = func(node *schema.Placeholder) error {
		popDF, ok := tables[node.Name]
		if !ok {
			return engineerr.Newf(engineerr.InvalidArgument, "matchmaker: no table registered for %q", node.Name)
		}
		for _, edge := range node.Children {
			peripDF, ok := tables[edge.Table.Name]
			if !ok {
				return engineerr.Newf(engineerr.InvalidArgument, "matchmaker: no table registered for %q", edge.Table.Name)
			}
			all := make([]Match, 0, popDF.NRows())
			for r := 0; r < popDF.NRows(); r++ {
				ms, err := Candidates(popDF, r, peripDF, edge)
				if err != nil {
					return err
				}
				all = append(all, ms...)
			}
			result[edge] = all
			if err := walk(edge.Table); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return result, nil
}
