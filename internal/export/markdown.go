package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/attachments"
	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
	"github.com/randalmurphal/kbexport/internal/util"
)

const untitled = "Untitled"

// MarkdownExporter writes each document as a markdown file. Collections
// become top-level folders and a document's children live in a folder
// named after it. Attachment links are rewritten to archive-relative paths.
type MarkdownExporter struct {
	deps Deps
	opts Options
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(ctx context.Context, collections []*db.Collection) (*archive.Handle, error) {
	h, _, err := e.ExportWithStats(ctx, collections)
	return h, err
}

// ExportWithStats implements StatsExporter.
func (e *MarkdownExporter) ExportWithStats(ctx context.Context, collections []*db.Collection) (*archive.Handle, Stats, error) {
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
	e.opts.Metrics.runFinished(FormatMarkdown, stats, size, err)
	if err != nil {
		e.opts.Logger.Error("export failed", "format", FormatMarkdown, "stats", stats, "error", err)
		return nil, stats, err
	}
	e.opts.Logger.Info("export complete",
		"format", FormatMarkdown,
		"archive", h.Path,
		"size", h.Size,
		"digest", h.Digest,
		"stats", stats,
	)
	return h, stats, nil
}

func (e *MarkdownExporter) run(ctx context.Context, builder *archive.Builder, collections []*db.Collection, now time.Time, stats *Stats) (*archive.Handle, error) {
	for _, c := range collections {
		w := &walker{
			store:       e.deps.Store,
			blobs:       e.deps.Blobs,
			builder:     builder,
			concurrency: e.opts.AttachmentConcurrency,
			logger:      e.opts.Logger.With("collection_id", c.ID),
			stats:       stats,
			metrics:     e.opts.Metrics,
		}
		root := pathSegment(c.Name)
		if err := w.walk(ctx, c.DocumentStructure, root, func(_ context.Context, doc *db.Document, archived []*db.Attachment, dir string) (string, error) {
			return e.writeDocument(builder, doc, archived, dir), nil
		}); err != nil {
			return nil, fmt.Errorf("export collection %s: %w", c.ID, err)
		}
		stats.Collections++
	}

	meta, err := json.Marshal(Metadata{
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

// writeDocument adds doc under dir and returns the folder for its children.
func (e *MarkdownExporter) writeDocument(builder *archive.Builder, doc *db.Document, archived []*db.Attachment, dir string) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = untitled
	}
	base := pathSegment(title)
	name := path.Join(dir, base+".md")
	if builder.Has(name) {
		// Sibling with the same title.
		base = pathSegment(title + " " + doc.URLID)
		name = path.Join(dir, base+".md")
	}

	keys := make(map[string]string, len(archived))
	for _, a := range archived {
		keys[a.ID] = a.Key
	}
	up := strings.Repeat("../", strings.Count(dir, "/")+1)
	body := attachments.ReplaceLinks(doc.Body(), func(id string) (string, bool) {
		key, ok := keys[id]
		if !ok {
			return "", false
		}
		return up + key, true
	})

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	builder.AddEntry(name, []byte(b.String()), archive.EntryOptions{CreateFolders: true})
	return path.Join(dir, base)
}

// pathSegment serializes name for use as one folder or file name. Backslashes
// and dot-only names are encoded so the segment can never climb out of its
// parent folder.
func pathSegment(name string) string {
	s := util.SerializeFilename(strings.ReplaceAll(name, "\\", "%5C"))
	if s == "." || s == ".." {
		return strings.Repeat("%2E", len(s))
	}
	return s
}
