package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/randalmurphal/kbexport/internal/db/driver"
)

// Store is the knowledge base read by exports. It embeds DB for raw access.
type Store struct {
	*DB
}

// OpenStore opens (or creates) a SQLite knowledge base under dir and applies
// migrations.
func OpenStore(dir string) (*Store, error) {
	return OpenStoreWithDialect(filepath.Join(dir, "kb.db"), driver.DialectSQLite)
}

// OpenStoreWithDialect opens a knowledge base with a specific dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenStoreWithDialect(dsn string, dialect driver.Dialect) (*Store, error) {
	db, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{DB: db}, nil
}

// OpenStoreInMemory opens an in-memory SQLite knowledge base. Used by tests.
func OpenStoreInMemory() (*Store, error) {
	return OpenStoreWithDialect(":memory:", driver.DialectSQLite)
}

// findOptions controls document lookups.
type findOptions struct {
	withState bool
}

// FindOption configures FindDocument.
type FindOption func(*findOptions)

// WithState loads the latest merged collaborative state alongside the
// cached body.
func WithState() FindOption {
	return func(o *findOptions) { o.withState = true }
}

// nullableTime formats an optional timestamp for storage.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &ts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
