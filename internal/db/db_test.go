package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/kbexport/internal/db/driver"
)

func TestOpenStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "kb")

	store, err := OpenStore(dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, filepath.Join(dir, "kb.db"), store.Path())
	assert.Equal(t, driver.DialectSQLite, store.Dialect())

	var journalMode string
	require.NoError(t, store.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrate_Tables(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"collections", "documents", "document_states", "attachments"} {
		var count int
		err := store.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	// Reapplying is a no-op.
	require.NoError(t, store.Migrate(ctx))
}

func TestRunInTx_Rollback(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(tx *TxOps) error {
		if err := saveCollection(ctx, tx, &Collection{ID: "c1", TeamID: "t1", Name: "Docs"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := store.GetCollection(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled back collection should not exist")
}
