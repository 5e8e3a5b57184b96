package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
	"github.com/randalmurphal/kbexport/internal/export"
	"github.com/randalmurphal/kbexport/internal/presenter"
)

// DigestHeader carries the BLAKE3 digest of a streamed archive.
const DigestHeader = "X-Archive-Digest"

// CollectionLister lists the collections an export can select from.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]*db.Collection, error)
}

// ExportRequest represents the JSON request body for export.
type ExportRequest struct {
	// CollectionIDs holds collection ids or name globs. Empty exports all.
	CollectionIDs []string `json:"collection_ids"`
	Format        string   `json:"format"`
	Archive       string   `json:"archive"`
}

// ExportServer handles export API requests.
type ExportServer struct {
	collections CollectionLister
	deps        export.Deps
	opts        export.Options
	logger      *slog.Logger
}

// NewExportServer creates a new export server. opts.ArchiveFormat is the
// default when a request leaves archive empty.
func NewExportServer(collections CollectionLister, deps export.Deps, opts export.Options, logger *slog.Logger) *ExportServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportServer{
		collections: collections,
		deps:        deps,
		opts:        opts,
		logger:      logger,
	}
}

// HandleListCollections handles GET /api/collections.
func (s *ExportServer) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	all, err := s.collections.ListCollections(r.Context())
	if err != nil {
		HandleError(w, s.logger, kberrors.ErrDocumentStore("list collections", err))
		return
	}
	out := make([]presenter.Collection, 0, len(all))
	for _, c := range all {
		out = append(out, presenter.PresentCollection(c))
	}
	JSONResponse(w, out)
}

// HandleExport handles POST /api/export requests.
// The finished archive is streamed as a binary download and removed after.
func (s *ExportServer) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			HandleError(w, s.logger, kberrors.ErrConfigInvalid("request body", err.Error()))
			return
		}
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		HandleError(w, s.logger, kberrors.ErrConfigInvalid("format", err.Error()))
		return
	}
	opts := s.opts
	if req.Archive != "" {
		af, err := archive.ParseFormat(req.Archive)
		if err != nil {
			HandleError(w, s.logger, kberrors.ErrConfigInvalid("archive", err.Error()))
			return
		}
		opts.ArchiveFormat = af
	}

	ctx := r.Context()
	all, err := s.collections.ListCollections(ctx)
	if err != nil {
		HandleError(w, s.logger, kberrors.ErrDocumentStore("list collections", err))
		return
	}
	selected, err := export.SelectCollections(all, req.CollectionIDs)
	if err != nil {
		HandleError(w, s.logger, err)
		return
	}

	exporter, err := export.New(format, s.deps, opts)
	if err != nil {
		HandleError(w, s.logger, err)
		return
	}
	handle, stats, err := exporter.ExportWithStats(ctx, selected)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("export canceled by client", "error", err)
			return
		}
		HandleError(w, s.logger, err)
		return
	}
	defer func() {
		if err := handle.Cleanup(); err != nil {
			s.logger.Warn("failed to remove archive", "path", handle.Path, "error", err)
		}
	}()

	f, err := os.Open(handle.Path)
	if err != nil {
		HandleError(w, s.logger, kberrors.ErrArchiveFinalize(err))
		return
	}
	defer func() { _ = f.Close() }()

	filename := fmt.Sprintf("kbexport-%s%s", time.Now().UTC().Format("20060102-150405"), handle.Format.Extension())
	w.Header().Set("Content-Type", handle.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(handle.Size, 10))
	w.Header().Set(DigestHeader, handle.Digest)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("failed to stream archive", "error", err)
		return
	}
	s.logger.Info("export served", "format", format, "archive", handle.Format, "size", handle.Size, "stats", stats)
}
