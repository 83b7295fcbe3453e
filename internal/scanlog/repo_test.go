package scanlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridizi/pkg/database"
)

func newRepo(t *testing.T) (*Repo, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRepo(db), db
}

func TestRecordWritesRow(t *testing.T) {
	repo, db := newRepo(t)

	repo.Record(context.Background(), "9780747532699", "success", "book added to catalog",
		map[string]any{"source": "worker", "action": "book_added"})

	var isbn, status, message, extra string
	err := db.QueryRow(`SELECT isbn, status, message, extra FROM scan_logs`).
		Scan(&isbn, &status, &message, &extra)
	require.NoError(t, err)

	assert.Equal(t, "9780747532699", isbn)
	assert.Equal(t, "success", status)
	assert.Equal(t, "book added to catalog", message)
	assert.JSONEq(t, `{"source":"worker","action":"book_added"}`, extra)
}

func TestRecordEmptyISBNStoresNull(t *testing.T) {
	repo, db := newRepo(t)

	repo.Record(context.Background(), "", "error", "no isbn provided", nil)

	var isbn, extra sql.NullString
	err := db.QueryRow(`SELECT isbn, extra FROM scan_logs`).Scan(&isbn, &extra)
	require.NoError(t, err)

	assert.False(t, isbn.Valid)
	assert.False(t, extra.Valid)
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	repo, db := newRepo(t)
	require.NoError(t, db.Close())

	// Logging must never break the operation being logged.
	assert.NotPanics(t, func() {
		repo.Record(context.Background(), "9780747532699", "success", "after close", nil)
	})
}
