package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: ProfileStandard,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func countPortfolios(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM portfolios").Scan(&n))
	return n
}

func TestWithTransaction_Commits(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO portfolios (user_id, name) VALUES (?, ?)", "user-1", "Main")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countPortfolios(t, db.Conn()))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO portfolios (user_id, name) VALUES (?, ?)", "user-1", "Main"); err != nil {
			return err
		}
		return errors.New("holding insert failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holding insert failed")

	// The earlier insert must not survive the failed transaction.
	assert.Equal(t, 0, countPortfolios(t, db.Conn()))
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO portfolios (user_id, name) VALUES (?, ?)", "user-1", "Main"); err != nil {
			return err
		}
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")

	assert.Equal(t, 0, countPortfolios(t, db.Conn()))
}

func TestWithTransaction_NilConnection(t *testing.T) {
	err := WithTransaction(nil, func(*sql.Tx) error { return nil })
	assert.Error(t, err)
}
