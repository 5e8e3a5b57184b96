package blob

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore serves fixed objects and records how often each key is read.
type countingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   map[string]int
	err     error
}

func newCountingStore(objects map[string][]byte) *countingStore {
	return &countingStore{objects: objects, calls: make(map[string]int)}
}

func (s *countingStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *countingStore) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func newTestCache(t *testing.T, next Store) *Cache {
	t.Helper()
	c, err := NewCache(next, CacheConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_ReadThrough(t *testing.T) {
	t.Parallel()
	next := newCountingStore(map[string][]byte{"a/b.png": []byte("content")})
	cache := newTestCache(t, next)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := cache.Get(ctx, "a/b.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)
	}
	assert.Equal(t, 1, next.count("a/b.png"), "only the first read should reach the wrapped store")
}

func TestCache_NotFoundIsNotCached(t *testing.T) {
	t.Parallel()
	next := newCountingStore(map[string][]byte{})
	cache := newTestCache(t, next)
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, next.count("missing"))
}

func TestCache_PropagatesErrors(t *testing.T) {
	t.Parallel()
	next := newCountingStore(nil)
	next.err = errors.New("backend down")
	cache := newTestCache(t, next)

	_, err := cache.Get(context.Background(), "x")
	assert.EqualError(t, err, "backend down")
}

func TestCache_ConcurrentReads(t *testing.T) {
	t.Parallel()
	next := newCountingStore(map[string][]byte{"k": []byte("v")})
	cache := newTestCache(t, next)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := cache.Get(context.Background(), "k")
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), data)
		}()
	}
	wg.Wait()
}

func TestCache_CloseIdempotent(t *testing.T) {
	c, err := NewCache(newCountingStore(nil), CacheConfig{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNewCache_PersistentRequiresDir(t *testing.T) {
	_, err := NewCache(newCountingStore(nil), CacheConfig{})
	assert.Error(t, err)
}
