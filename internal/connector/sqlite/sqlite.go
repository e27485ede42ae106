// Package sqlite opens SQLite connections for internal/connector,
// delegating row scanning to connector.FromQuery.
//
// Grounded on the teacher's internal/introspect/sqlite: a thin
// dialect-specific file sitting on top of database/sql, importing the
// driver only for its side-effecting registration.
package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"relfit/internal/connector"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
)

// Open opens a SQLite database using dsn (a file path, or "file::memory:?cache=shared").
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, engineerr.Newf(engineerr.IoError, "connector/sqlite: open failed: %v", err)
	}
	return db, nil
}

// Load runs query against a freshly opened SQLite connection and
// builds a dataframe.DataFrame named name from the result.
func Load(ctx context.Context, dsn, name, query string, specs []connector.ColumnSpec, enc connector.Encodings) (*dataframe.DataFrame, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return connector.FromQuery(ctx, db, name, query, specs, enc)
}
