package dataframe

import "relfit/internal/engineerr"

// Row is a name->value map for one row, used by GetContent to serialize
// a slice of a DataFrame for the command interface (spec.md §4.B
// "get_content(start, length)"). Categorical/join-key ids are resolved
// back to their strings.
type Row map[string]any

// GetContent serializes rows [start, start+length) into Rows, resolving
// interned ids back to strings so the result is self-contained.
func (df *DataFrame) GetContent(start, length int) ([]Row, error) {
	df.mu.RLock()
	defer df.mu.RUnlock()
	if start < 0 || length < 0 || start+length > df.nrows {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "get_content: range [%d,%d) out of bounds (nrows %d)", start, start+length, df.nrows)
	}
	out := make([]Row, length)
	for i := 0; i < length; i++ {
		r := Row{}
		row := start + i
		for _, name := range df.numOrder {
			r[name] = df.numerical[name].MustAt(row)
		}
		for _, name := range df.discOrder {
			r[name] = df.discrete[name].MustAt(row)
		}
		for _, name := range df.catOrder {
			r[name] = df.CatEncoding.String(df.categorical[name].MustAt(row))
		}
		for _, name := range df.jkOrder {
			r[name] = df.JKEncoding.String(df.joinKeys[name].MustAt(row))
		}
		for _, name := range df.tsOrder {
			r[name] = df.timeStamps[name].MustAt(row)
		}
		for _, name := range df.textOrder {
			r[name] = df.text[name].MustAt(row)
		}
		for _, name := range df.targetOrder {
			r[name] = df.target[name].MustAt(row)
		}
		out[i] = r
	}
	return out, nil
}
