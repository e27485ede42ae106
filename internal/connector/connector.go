// Package connector implements the shared row-scanning half of the
// `DataFrame.from_*` command family (spec.md §6): given a tabular
// result — SQL rows, a CSV reader, or an S3 object's bytes — and a
// caller-declared role per column, build a dataframe.DataFrame.
// Dialect-specific code (internal/connector/{mysql,postgres,sqlite})
// only opens a connection and runs a query; internal/connector/csv and
// internal/connector/s3 only produce [][]string rows. All four funnel
// into FromRows here, so role assignment and type coercion exist in
// exactly one place.
//
// Grounded on the teacher's internal/introspect/{mysql,postgresql,
// sqlite} family: one small per-dialect file that runs a
// dialect-specific query against a live *sql.DB, feeding a
// dialect-agnostic converter — introspectColumns/introspectTables
// there, FromRows here.
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/encoding"
	"relfit/internal/engineerr"
)

// Role names which DataFrame column family a source column is loaded
// into (spec.md §3 "DataFrame": "partitioned by role: categorical,
// discrete, numerical, join_key, time_stamp, text, target").
type Role string

const (
	RoleCategorical Role = "categorical"
	RoleDiscrete    Role = "discrete"
	RoleNumerical   Role = "numerical"
	RoleJoinKey     Role = "join_key"
	RoleTimeStamp   Role = "time_stamp"
	RoleText        Role = "text"
	RoleTarget      Role = "target"
)

// ColumnSpec declares the role a source column should be loaded under.
// Columns are matched to rows positionally, in the order specs lists
// them, so specs must list columns in the same order as the source's
// SELECT list or CSV header.
type ColumnSpec struct {
	Name string
	Role Role
}

// Encodings bundles the interners FromRows needs for categorical and
// join-key columns (spec.md §5: the two process-wide Encodings), plus
// the per-DataFrame word encoding text columns are indexed under.
type Encodings struct {
	Categories *encoding.Encoding
	JoinKeys   *encoding.Encoding
	Words      *encoding.Encoding
}

// FromQuery runs query against db and loads the result into a
// dataframe.DataFrame named name, using specs to assign each selected
// column's role.
func FromQuery(ctx context.Context, db *sql.DB, name, query string, specs []ColumnSpec, enc Encodings) (*dataframe.DataFrame, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, engineerr.Newf(engineerr.IoError, "connector: query failed: %v", err)
	}
	defer rows.Close()

	scan := make([]any, len(specs))
	raw := make([]sql.NullString, len(specs))
	for i := range raw {
		scan[i] = &raw[i]
	}

	var stringRows [][]string
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, engineerr.Newf(engineerr.IoError, "connector: scan failed: %v", err)
		}
		row := make([]string, len(specs))
		for i := range raw {
			row[i] = raw[i].String
		}
		stringRows = append(stringRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.Newf(engineerr.IoError, "connector: row iteration failed: %v", err)
	}

	return FromRows(name, specs, stringRows, enc)
}

// FromRows builds a dataframe.DataFrame named name from rows of raw
// string values (the common shape CSV, S3-fetched CSV, and SQL row
// scanning all reduce to), assigning each column per specs. An empty
// string is the canonical "no value" marker for every role.
func FromRows(name string, specs []ColumnSpec, rows [][]string, enc Encodings) (*dataframe.DataFrame, error) {
	df := dataframe.New(name, enc.Categories, enc.JoinKeys, enc.Words)

	for i, spec := range specs {
		values := columnAt(rows, i)
		var addErr error
		switch spec.Role {
		case RoleNumerical:
			addErr = df.AddNumerical(column.New(spec.Name, toFloats(values)))
		case RoleDiscrete:
			addErr = df.AddDiscrete(column.New(spec.Name, toInts(values)))
		case RoleTarget:
			addErr = df.AddTarget(column.New(spec.Name, toFloats(values)))
		case RoleTimeStamp:
			addErr = df.AddTimeStamp(column.New(spec.Name, toFloats(values)))
		case RoleCategorical:
			addErr = df.AddCategorical(column.New(spec.Name, internAll(enc.Categories, values)))
		case RoleJoinKey:
			addErr = df.AddJoinKey(column.New(spec.Name, internAll(enc.JoinKeys, values)))
		case RoleText:
			addErr = df.AddText(column.New(spec.Name, values))
		default:
			return nil, engineerr.Newf(engineerr.InvalidArgument, "connector: unknown role %q for column %q", spec.Role, spec.Name)
		}
		if addErr != nil {
			return nil, fmt.Errorf("connector: adding column %q: %w", spec.Name, addErr)
		}
	}

	return df, nil
}

func columnAt(rows [][]string, idx int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		if idx < len(r) {
			out[i] = r[idx]
		}
	}
	return out
}

func toFloats(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == "" {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = f
	}
	return out
}

func toInts(values []string) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		if v == "" {
			out[i] = math.MinInt64
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			out[i] = math.MinInt64
			continue
		}
		out[i] = n
	}
	return out
}

func internAll(enc *encoding.Encoding, values []string) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = enc.Intern(v)
	}
	return out
}
