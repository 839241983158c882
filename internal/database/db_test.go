package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "nested", name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	cs := buildConnectionString("/tmp/x.db", ProfileCache)
	assert.Contains(t, cs, "/tmp/x.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, cs, "synchronous(OFF)")
	assert.Contains(t, cs, "foreign_keys(1)")

	cs = buildConnectionString("file:test?mode=memory", ProfileLedger)
	assert.Contains(t, cs, "file:test?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, cs, "synchronous(FULL)")
}

func TestMigrate_StoreSchema(t *testing.T) {
	db := newTempDB(t, NameStore, ProfileStandard)
	require.NoError(t, db.Migrate())
	// Migrations are idempotent
	require.NoError(t, db.Migrate())

	for _, table := range []string{"accounts", "dividends", "snapshots"} {
		var name string
		err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMigrate_ClientDataSchema(t *testing.T) {
	db := newTempDB(t, NameClientData, ProfileCache)
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('exchange_rates','trading212_instruments','earnings_calendar')",
	).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTempDB(t, "scratch", "")
	assert.NoError(t, db.Migrate())
	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestWithTransaction(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t (v) VALUES (2)")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t (v) VALUES (3)")
		panic("bad")
	})
	assert.Contains(t, err.Error(), "panic in transaction")

	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 1, n)

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}
