package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/blob"
	"github.com/randalmurphal/kbexport/internal/config"
	"github.com/randalmurphal/kbexport/internal/db"
	"github.com/randalmurphal/kbexport/internal/db/driver"
	"github.com/randalmurphal/kbexport/internal/export"
)

// cacheGCInterval is how often a persistent blob cache reclaims space.
const cacheGCInterval = 10 * time.Minute

// deps holds the collaborators opened from configuration for one command.
type deps struct {
	cfg     *config.Config
	store   *db.Store
	blobs   blob.Store
	closers []io.Closer
}

// openDeps opens the document store and blob store described by cfg.
func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg}
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	d.store = store
	d.closers = append(d.closers, store)

	blobs, err := d.openBlobs(ctx, cfg.Blob)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.blobs = blobs
	return d, nil
}

func openStore(cfg config.DatabaseConfig) (*db.Store, error) {
	var (
		store *db.Store
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		store, err = db.OpenStoreWithDialect(cfg.DSN, driver.DialectPostgres)
	default:
		store, err = db.OpenStore(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	return store, nil
}

func (d *deps) openBlobs(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	var next blob.Store
	switch cfg.Driver {
	case "gcs":
		gcs, err := blob.NewGCS(ctx, blob.GCSConfig{
			Bucket:          cfg.Bucket,
			Project:         cfg.Project,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, gcs)
		next = gcs
	default:
		fs, err := blob.NewFS(cfg.Dir)
		if err != nil {
			return nil, err
		}
		next = fs
	}

	if !cfg.Cache.Enabled {
		return next, nil
	}
	cacheCfg := blob.CacheConfig{
		Dir:      cfg.Cache.Dir,
		InMemory: cfg.Cache.InMemory,
		TTL:      cfg.Cache.TTL,
		Logger:   slog.Default(),
	}
	if !cfg.Cache.InMemory {
		cacheCfg.GCInterval = cacheGCInterval
	}
	cache, err := blob.NewCache(next, cacheCfg)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, cache)
	return cache, nil
}

// Close releases everything opened, in reverse order.
func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// exportDeps returns the collaborators an exporter reads from.
func (d *deps) exportDeps() export.Deps {
	return export.Deps{Store: d.store, Blobs: d.blobs}
}

// exportOptions builds exporter options from configuration.
func exportOptions(cfg *config.Config, archiveFormat archive.Format, metrics *export.Metrics) export.Options {
	return export.Options{
		Version:               Version,
		Environment:           strings.ToLower(cfg.Environment),
		ArchiveFormat:         archiveFormat,
		TempDir:               cfg.Export.TempDir,
		AttachmentConcurrency: cfg.Export.AttachmentConcurrency,
		Logger:                slog.Default().With("component", "export"),
		Metrics:               metrics,
	}
}
