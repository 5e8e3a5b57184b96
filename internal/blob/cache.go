package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const cacheKeyPrefix = "blob:"

// CacheConfig configures the badger database behind a Cache.
type CacheConfig struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// TTL expires cached objects. Zero keeps them until evicted by GC.
	TTL time.Duration
	// GCInterval runs value log GC periodically. Zero disables it.
	GCInterval time.Duration
	Logger     *slog.Logger
}

// Cache is a read-through cache in front of another Store. Misses are
// fetched from the wrapped store and written to badger; ErrNotFound is
// never cached.
type Cache struct {
	next   Store
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// NewCache opens the cache database and wraps next.
func NewCache(next Store, cfg CacheConfig) (*Cache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("cache directory is required for persistent cache")
		}
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger.With("component", "blob-cache")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob cache: %w", err)
	}

	c := &Cache{next: next, db: db, ttl: cfg.TTL, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.stopGC = make(chan struct{})
		c.gcDone = make(chan struct{})
		go c.runGC(cfg.GCInterval)
	}
	return c, nil
}

// Get returns the cached object or fetches and caches it.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := c.lookup(key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		c.logger.Warn("blob cache read failed", "key", key, "error", err)
	}

	data, err = c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := c.store(key, data); err != nil {
		c.logger.Warn("blob cache write failed", "key", key, "error", err)
	}
	return data, nil
}

func (c *Cache) lookup(key string) ([]byte, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (c *Cache) store(key string, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKeyPrefix+key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (c *Cache) runGC(interval time.Duration) {
	defer close(c.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopGC:
			return
		case <-ticker.C:
			if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Warn("blob cache GC error", "error", err)
			}
		}
	}
}

// Close stops GC and closes the cache database. The wrapped store is not
// closed.
func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		if c.stopGC != nil {
			close(c.stopGC)
			<-c.gcDone
		}
		err = c.db.Close()
	})
	return err
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
