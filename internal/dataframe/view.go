package dataframe

import "relfit/internal/engineerr"

// View is an immutable pair of (DataFrame, row list). All accessors
// index through the row list, so a View never mutates its backing
// DataFrame (spec.md §3 "DataFrameView").
type View struct {
	DF   *DataFrame
	Rows []int
}

// NewView wraps df with an explicit row list (not copied defensively —
// callers should treat the slice as owned by the View afterward).
func NewView(df *DataFrame, rows []int) *View {
	return &View{DF: df, Rows: rows}
}

// Full returns a View over every row of df, in order.
func Full(df *DataFrame) *View {
	rows := make([]int, df.NRows())
	for i := range rows {
		rows[i] = i
	}
	return &View{DF: df, Rows: rows}
}

// Len returns the number of rows in the view.
func (v *View) Len() int { return len(v.Rows) }

// Numerical returns the value of column `name` at view-row i (0-based
// within the view, not the backing DataFrame).
func (v *View) Numerical(name string, i int) (float64, error) {
	c, err := v.DF.Numerical(name)
	if err != nil {
		return 0, err
	}
	row, err := v.RowIndex(i)
	if err != nil {
		return 0, err
	}
	return c.At(row)
}

// Discrete returns the value of a discrete column at view-row i.
func (v *View) Discrete(name string, i int) (int64, error) {
	c, err := v.DF.Discrete(name)
	if err != nil {
		return 0, err
	}
	row, err := v.RowIndex(i)
	if err != nil {
		return 0, err
	}
	return c.At(row)
}

// Categorical returns the interned id of a categorical column at
// view-row i.
func (v *View) Categorical(name string, i int) (int64, error) {
	c, err := v.DF.Categorical(name)
	if err != nil {
		return 0, err
	}
	row, err := v.RowIndex(i)
	if err != nil {
		return 0, err
	}
	return c.At(row)
}

// TimeStamp returns the value of a time-stamp column at view-row i.
func (v *View) TimeStamp(name string, i int) (float64, error) {
	c, err := v.DF.TimeStamp(name)
	if err != nil {
		return 0, err
	}
	row, err := v.RowIndex(i)
	if err != nil {
		return 0, err
	}
	return c.At(row)
}

// JoinKey returns the interned join-key id at view-row i.
func (v *View) JoinKey(name string, i int) (int64, error) {
	c, err := v.DF.JoinKey(name)
	if err != nil {
		return 0, err
	}
	row, err := v.RowIndex(i)
	if err != nil {
		return 0, err
	}
	return c.At(row)
}

// RowIndex maps a view-local row index to the backing DataFrame's row
// position.
func (v *View) RowIndex(i int) (int, error) {
	if i < 0 || i >= len(v.Rows) {
		return 0, engineerr.Newf(engineerr.InvalidArgument, "view row %d out of bounds (len %d)", i, len(v.Rows))
	}
	return v.Rows[i], nil
}

// SubviewParams describes a create_subview request (spec.md §4.B): match
// a join-key value and restrict to rows whose time stamp falls within an
// optional window.
type SubviewParams struct {
	JoinKeyColumn string
	JoinKeyValue  int64
	TimeStampCol  string
	MinTS         float64 // inclusive, ignored if HasMinTS is false
	HasMinTS      bool
	MaxTS         float64 // exclusive, ignored if HasMaxTS is false
	HasMaxTS      bool
}

// CreateSubview returns a View restricted to rows matching params, using
// the join-key index for the initial candidate set.
func (df *DataFrame) CreateSubview(params SubviewParams) (*View, error) {
	rows, ok := df.FindJK(params.JoinKeyColumn, params.JoinKeyValue)
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "create_subview: join key column %q not found", params.JoinKeyColumn)
	}
	if params.TimeStampCol == "" {
		out := make([]int, len(rows))
		copy(out, rows)
		return &View{DF: df, Rows: out}, nil
	}
	ts, err := df.TimeStamp(params.TimeStampCol)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		t := ts.MustAt(r)
		if params.HasMinTS && t < params.MinTS {
			continue
		}
		if params.HasMaxTS && t >= params.MaxTS {
			continue
		}
		out = append(out, r)
	}
	return &View{DF: df, Rows: out}, nil
}
