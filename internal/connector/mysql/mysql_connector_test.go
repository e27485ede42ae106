package mysql

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"relfit/internal/connector"
	"relfit/internal/encoding"
)

type testMySQLContainer struct {
	container *tcmysql.MySQLContainer
	dsn       string
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("relfit_test"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	_, err = db.ExecContext(ctx, `CREATE TABLE events (jk INT, ts INT, amount DOUBLE)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO events VALUES (1, 50, 10.0), (1, 60, 20.0), (2, 50, 5.0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	return &testMySQLContainer{container: container, dsn: dsn}
}

func TestLoadIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()
	enc := connector.Encodings{Categories: encoding.New(), JoinKeys: encoding.New(), Words: encoding.New()}

	df, err := Load(ctx, tc.dsn, "events", "SELECT jk, ts, amount FROM events ORDER BY jk, ts", []connector.ColumnSpec{
		{Name: "jk", Role: connector.RoleJoinKey},
		{Name: "ts", Role: connector.RoleTimeStamp},
		{Name: "amount", Role: connector.RoleNumerical},
	}, enc)
	require.NoError(t, err)
	require.Equal(t, "events", df.Name)

	col, err := df.Numerical("amount")
	require.NoError(t, err)
	require.Equal(t, []float64{10, 20, 5}, col.Raw())
}

func TestOpenDoesNotDialOnParseableDSN(t *testing.T) {
	_, err := Open("invalid:user@tcp(127.0.0.1:1)/nope")
	require.NoError(t, err, "sql.Open does not dial, so a malformed-but-parseable DSN succeeds here")
}
