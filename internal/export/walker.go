package export

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/attachments"
	"github.com/randalmurphal/kbexport/internal/blob"
	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

// visitFunc records one resolved document. archived holds the attachments
// whose blobs were added to the archive, in reference order. The returned
// path is handed to the document's children.
type visitFunc func(ctx context.Context, doc *db.Document, archived []*db.Attachment, path string) (string, error)

// walker traverses one collection's hierarchy. A walker and the builder it
// writes to are only touched from the goroutine running walk.
type walker struct {
	store       DocumentStore
	blobs       blob.Store
	builder     *archive.Builder
	concurrency int
	logger      *slog.Logger
	stats       *Stats
	metrics     *Metrics
}

// walk visits nodes depth first in sibling order. A node's attachments are
// archived and the node is visited before any of its children; the whole
// subtree completes before the next sibling starts. Children of a node whose
// document does not resolve are still walked, under the parent's path.
func (w *walker) walk(ctx context.Context, nodes []db.NavigationNode, path string, visit visitFunc) error {
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := w.store.FindDocument(ctx, node.ID, db.WithState())
		if err != nil {
			return kberrors.ErrDocumentStore("find document "+node.ID, err)
		}

		childPath := path
		if doc == nil {
			w.stats.Skipped++
			w.metrics.documentSkipped()
			w.logger.Debug("document not found, skipping node", "document_id", node.ID)
		} else {
			archived, err := w.archiveAttachments(ctx, doc)
			if err != nil {
				return err
			}
			childPath, err = visit(ctx, doc, archived, path)
			if err != nil {
				return err
			}
			w.stats.Documents++
			w.metrics.documentExported()
		}

		if len(node.Children) > 0 {
			if err := w.walk(ctx, node.Children, childPath, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// archiveAttachments fetches every team-owned attachment referenced by doc
// concurrently, waits for all of them, then adds the successful ones to the
// archive in reference order. Failed fetches are logged and dropped.
func (w *walker) archiveAttachments(ctx context.Context, doc *db.Document) ([]*db.Attachment, error) {
	ids := attachments.ParseIDs(doc.Body())
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := w.store.FindAttachments(ctx, doc.TeamID, ids)
	if err != nil {
		return nil, kberrors.ErrDocumentStore("find attachments for "+doc.ID, err)
	}
	found = uniqueAttachments(found)
	if len(found) == 0 {
		return nil, nil
	}

	blobs := make([][]byte, len(found))
	fetchErrs := make([]error, len(found))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, a := range found {
		g.Go(func() error {
			blobs[i], fetchErrs[i] = w.blobs.Get(ctx, a.Key)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archived := make([]*db.Attachment, 0, len(found))
	for i, a := range found {
		if fetchErrs[i] != nil {
			w.stats.AttachmentFailures++
			w.metrics.attachmentFailed()
			w.logger.Error("failed to add attachment to archive",
				"key", a.Key,
				"attachment_id", a.ID,
				"document_id", doc.ID,
				"error", kberrors.ErrBlobFetch(a.Key, fetchErrs[i]),
			)
			continue
		}
		key := archive.NormalizeName(a.Key)
		if key == "" || strings.HasSuffix(key, "/") {
			w.stats.AttachmentFailures++
			w.metrics.attachmentFailed()
			w.logger.Error("attachment key is not a file name", "key", a.Key, "attachment_id", a.ID, "document_id", doc.ID)
			continue
		}
		w.builder.AddEntry(key, blobs[i], archive.EntryOptions{CreateFolders: true})
		w.stats.Attachments++
		w.metrics.attachmentArchived(len(blobs[i]))

		// Descriptors and links name the entry exactly as archived.
		if key != a.Key {
			normalized := *a
			normalized.Key = key
			a = &normalized
		}
		archived = append(archived, a)
	}
	return archived, nil
}

func uniqueAttachments(in []*db.Attachment) []*db.Attachment {
	seen := make(map[string]struct{}, len(in))
	out := make([]*db.Attachment, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
