// Package export builds knowledge base archives.
//
// An Exporter turns an ordered list of collections into one finalized
// archive. Collections are processed strictly one after another; within a
// collection the document hierarchy is walked depth first and each
// document's attachments are fetched as one bounded concurrent batch that
// is joined before the walk continues. All archive and manifest mutation
// happens on the calling goroutine.
//
// Failures are split three ways. A hierarchy node whose document no longer
// exists is skipped silently. A failed attachment fetch is logged with the
// storage key and the attachment is left out of both the manifest and the
// archive. Every other error aborts the export and no archive is returned.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/blob"
	"github.com/randalmurphal/kbexport/internal/db"
	"github.com/randalmurphal/kbexport/internal/render"
)

// Exporter produces a finalized archive for a set of collections. The
// caller owns the returned handle and must call Cleanup once done with it.
type Exporter interface {
	Export(ctx context.Context, collections []*db.Collection) (*archive.Handle, error)
}

// StatsExporter is an Exporter that also reports what it exported.
type StatsExporter interface {
	Exporter
	ExportWithStats(ctx context.Context, collections []*db.Collection) (*archive.Handle, Stats, error)
}

// DocumentStore is the part of the knowledge base an export reads.
type DocumentStore interface {
	FindDocument(ctx context.Context, id string, opts ...db.FindOption) (*db.Document, error)
	FindAttachments(ctx context.Context, teamID string, ids []string) ([]*db.Attachment, error)
}

// Format selects the manifest layout of an export.
type Format string

const (
	// FormatJSON writes one JSON manifest per collection.
	FormatJSON Format = "json"
	// FormatMarkdown writes one markdown file per document.
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses an export format name. The empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format: %s", s)
	}
}

// DefaultAttachmentConcurrency bounds one document's attachment fetches
// when Options leaves it unset.
const DefaultAttachmentConcurrency = 8

// Deps are the collaborators an export reads from.
type Deps struct {
	Store    DocumentStore
	Blobs    blob.Store
	Renderer render.Renderer
}

// Options tune an export.
type Options struct {
	// Version is the build version recorded in metadata.json.
	Version string
	// Environment "development" pretty-prints JSON entries.
	Environment   string
	ArchiveFormat archive.Format
	TempDir       string
	// AttachmentConcurrency caps concurrent fetches for one document.
	AttachmentConcurrency int
	Logger                *slog.Logger
	Metrics               *Metrics
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.AttachmentConcurrency <= 0 {
		o.AttachmentConcurrency = DefaultAttachmentConcurrency
	}
	if o.ArchiveFormat == "" {
		o.ArchiveFormat = archive.FormatZip
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}

func (o Options) development() bool {
	return o.Environment == "development"
}

// New returns the exporter for format.
func New(format Format, deps Deps, opts Options) (StatsExporter, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("export: document store is required")
	}
	if deps.Blobs == nil {
		return nil, fmt.Errorf("export: blob store is required")
	}
	opts = opts.withDefaults()

	switch format {
	case FormatJSON, "":
		if deps.Renderer == nil {
			deps.Renderer = render.New()
		}
		return &JSONExporter{deps: deps, opts: opts}, nil
	case FormatMarkdown:
		return &MarkdownExporter{deps: deps, opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// Stats summarizes one export run.
type Stats struct {
	Collections        int           `json:"collections"`
	Documents          int           `json:"documents"`
	Skipped            int           `json:"skipped"`
	Attachments        int           `json:"attachments"`
	AttachmentFailures int           `json:"attachment_failures"`
	Duration           time.Duration `json:"duration"`
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("collections", s.Collections),
		slog.Int("documents", s.Documents),
		slog.Int("skipped", s.Skipped),
		slog.Int("attachments", s.Attachments),
		slog.Int("attachment_failures", s.AttachmentFailures),
		slog.Duration("duration", s.Duration),
	)
}

// newBuilder starts an archive stamped with the export's clock.
func newBuilder(opts Options, now time.Time) *archive.Builder {
	return archive.New(opts.ArchiveFormat,
		archive.WithTempDir(opts.TempDir),
		archive.WithModTime(now.UTC().Truncate(time.Second)),
	)
}
