package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSNClickHouse(t *testing.T) {
	dsn, err := buildDSN(ClientConfig{
		Driver:      DriverClickHouse,
		Host:        "ch",
		Port:        9000,
		Database:    "finscore",
		User:        "u",
		Password:    "p",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 30 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "clickhouse://u:p@ch:9000/finscore?dial_timeout=5s&max_execution_time=30", dsn)
}

func TestBuildDSNRejectsMissingFields(t *testing.T) {
	_, err := buildDSN(ClientConfig{Driver: DriverClickHouse})
	assert.Error(t, err)
	_, err = buildDSN(ClientConfig{Driver: DriverSQLite})
	assert.Error(t, err)
	_, err = buildDSN(ClientConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteClientInitSchema(t *testing.T) {
	c, err := NewClient(WithDriver(DriverSQLite), WithPath(":memory:"))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT)`,
		"",
	}))
	_, err = c.DB().ExecContext(ctx, `INSERT INTO t (v) VALUES ('x')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, c.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
	assert.Equal(t, DriverSQLite, c.Driver())
	assert.NoError(t, c.Health(ctx))
}
