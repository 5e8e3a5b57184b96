// Package db provides test utilities for database operations.
//
// Tests should use these helpers rather than opening databases directly:
// they use in-memory SQLite and close it via t.Cleanup().
package db

import (
	"testing"
)

// NewTestStore creates an in-memory knowledge base for testing.
// The database is automatically closed when the test completes.
// Schema migrations are applied automatically.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    store := db.NewTestStore(t)
//	    // use store...
//	}
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store, err := OpenStoreInMemory()
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
