// Package blob reads attachment content from object storage.
//
// Three stores are provided: FS for a local directory, GCS for a Google
// Cloud Storage bucket, and Cache, a badger-backed read-through cache that
// wraps either of them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store fetches objects by storage key. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// cleanKey validates a slash-separated storage key and returns its clean
// form. Keys may not be empty, absolute, or climb out of the store root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty blob key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key %q must be relative", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("blob key %q escapes store root", key)
	}
	return cleaned, nil
}
