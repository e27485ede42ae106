// Package mysql opens MySQL connections for internal/connector,
// delegating row scanning to connector.FromQuery.
//
// Grounded on the teacher's internal/introspect/mysql: a thin
// dialect-specific file sitting on top of database/sql, importing the
// driver only for its side-effecting registration.
package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"relfit/internal/connector"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
)

// Open opens a MySQL database using dsn (the go-sql-driver/mysql DSN
// format, e.g. "user:pass@tcp(host:3306)/db").
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, engineerr.Newf(engineerr.IoError, "connector/mysql: open failed: %v", err)
	}
	return db, nil
}

// Load runs query against a freshly opened MySQL connection and
// builds a dataframe.DataFrame named name from the result.
func Load(ctx context.Context, dsn, name, query string, specs []connector.ColumnSpec, enc connector.Encodings) (*dataframe.DataFrame, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return connector.FromQuery(ctx, db, name, query, specs, enc)
}
