package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
	"github.com/randalmurphal/kbexport/internal/presenter"
	"github.com/randalmurphal/kbexport/internal/util"
)

const (
	// MetadataEntry is the archive entry describing the export itself.
	MetadataEntry = "metadata.json"
	// BackupVersion is the archive layout version written to metadata.json.
	BackupVersion = 1
)

// Metadata is the content of MetadataEntry.
type Metadata struct {
	BackupVersion int       `json:"backupVersion"`
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Manifest is the JSON entry written for one collection. DocumentStructure
// is the collection's hierarchy as stored and indexes into Documents.
type Manifest struct {
	presenter.Collection
	Description       json.RawMessage                 `json:"description"`
	DocumentStructure []db.NavigationNode             `json:"documentStructure"`
	Documents         map[string]DocumentSnapshot     `json:"documents"`
	Attachments       map[string]presenter.Attachment `json:"attachments"`
}

// DocumentSnapshot is one document inside a Manifest. Data is the portable
// rendering of the document's latest content.
type DocumentSnapshot struct {
	ID               string          `json:"id"`
	URLID            string          `json:"urlId"`
	Title            string          `json:"title"`
	Data             json.RawMessage `json:"data"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	PublishedAt      *time.Time      `json:"publishedAt"`
	FullWidth        bool            `json:"fullWidth"`
	Template         bool            `json:"template"`
	ParentDocumentID *string         `json:"parentDocumentId"`
}

// ManifestEntryName is the archive entry name for a collection's manifest.
func ManifestEntryName(collectionName string) string {
	return util.SerializeFilename(collectionName) + ".json"
}

// JSONExporter writes one JSON manifest per collection plus the attachment
// blobs the documents reference.
type JSONExporter struct {
	deps Deps
	opts Options
}

// Export implements Exporter.
func (e *JSONExporter) Export(ctx context.Context, collections []*db.Collection) (*archive.Handle, error) {
	h, _, err := e.ExportWithStats(ctx, collections)
	return h, err
}

// ExportWithStats implements StatsExporter.
func (e *JSONExporter) ExportWithStats(ctx context.Context, collections []*db.Collection) (*archive.Handle, Stats, error) {
	start := time.Now()
	now := e.opts.Now()
	builder := newBuilder(e.opts, now)
	var stats Stats

	h, err := e.run(ctx, builder, collections, now, &stats)
	stats.Duration = time.Since(start)

	var size int64
	if h != nil {
		size = h.Size
	}
	e.opts.Metrics.runFinished(FormatJSON, stats, size, err)
	if err != nil {
		e.opts.Logger.Error("export failed", "format", FormatJSON, "stats", stats, "error", err)
		return nil, stats, err
	}

	e.opts.Logger.Info("export complete",
		"format", FormatJSON,
		"archive", h.Path,
		"size", h.Size,
		"digest", h.Digest,
		"stats", stats,
	)
	return h, stats, nil
}

func (e *JSONExporter) run(ctx context.Context, builder *archive.Builder, collections []*db.Collection, now time.Time, stats *Stats) (*archive.Handle, error) {
	for _, c := range collections {
		manifest, err := e.buildManifest(ctx, builder, c, stats)
		if err != nil {
			return nil, fmt.Errorf("export collection %s: %w", c.ID, err)
		}
		data, err := e.marshal(manifest)
		if err != nil {
			return nil, fmt.Errorf("encode manifest for collection %s: %w", c.ID, err)
		}
		builder.AddEntry(ManifestEntryName(c.Name), data, archive.EntryOptions{})
		stats.Collections++
		e.opts.Logger.Debug("collection exported",
			"collection_id", c.ID,
			"documents", len(manifest.Documents),
			"attachments", len(manifest.Attachments),
		)
	}

	meta, err := e.marshal(Metadata{
		BackupVersion: BackupVersion,
		Version:       e.opts.Version,
		CreatedAt:     now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	builder.AddEntry(MetadataEntry, meta, archive.EntryOptions{})

	h, err := builder.Finalize(ctx)
	if err != nil {
		return nil, kberrors.ErrArchiveFinalize(err)
	}
	return h, nil
}

// buildManifest walks one collection's hierarchy. Attachment blobs are
// added to builder as a side effect.
func (e *JSONExporter) buildManifest(ctx context.Context, builder *archive.Builder, c *db.Collection, stats *Stats) (*Manifest, error) {
	description, err := e.deps.Renderer.ToPortable(c.Description)
	if err != nil {
		return nil, kberrors.ErrRenderFailed("collection "+c.ID, err)
	}

	collection := presenter.PresentCollection(c)
	collection.URL = ""

	m := &Manifest{
		Collection:        collection,
		Description:       description,
		DocumentStructure: c.DocumentStructure,
		Documents:         make(map[string]DocumentSnapshot),
		Attachments:       make(map[string]presenter.Attachment),
	}

	w := &walker{
		store:       e.deps.Store,
		blobs:       e.deps.Blobs,
		builder:     builder,
		concurrency: e.opts.AttachmentConcurrency,
		logger:      e.opts.Logger.With("collection_id", c.ID),
		stats:       stats,
		metrics:     e.opts.Metrics,
	}

	err = w.walk(ctx, c.DocumentStructure, "", func(_ context.Context, doc *db.Document, archived []*db.Attachment, path string) (string, error) {
		for _, a := range archived {
			m.Attachments[a.ID] = presenter.ArchivedAttachment(a)
		}

		data, err := e.deps.Renderer.ToPortable(doc.Body())
		if err != nil {
			return "", kberrors.ErrRenderFailed("document "+doc.ID, err)
		}
		m.Documents[doc.ID] = DocumentSnapshot{
			ID:               doc.ID,
			URLID:            doc.URLID,
			Title:            doc.Title,
			Data:             data,
			CreatedAt:        doc.CreatedAt.UTC(),
			UpdatedAt:        doc.UpdatedAt.UTC(),
			PublishedAt:      doc.PublishedAt,
			FullWidth:        doc.FullWidth,
			Template:         doc.Template,
			ParentDocumentID: doc.ParentDocumentID,
		}
		return path, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (e *JSONExporter) marshal(v any) ([]byte, error) {
	if e.opts.development() {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
