package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is a single knowledge base page.
type Document struct {
	ID               string
	URLID            string
	TeamID           string
	CollectionID     string
	ParentDocumentID *string
	Title            string
	// Text is the cached markdown body.
	Text string
	// State is the latest merged collaborative body. Only loaded with
	// WithState, and empty when no state has been recorded.
	State       string
	FullWidth   bool
	Template    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
}

// Body returns the freshest available content: the merged state when it
// was loaded, otherwise the cached text.
func (d *Document) Body() string {
	if d.State != "" {
		return d.State
	}
	return d.Text
}

// FindDocument returns a live document by ID, or nil if it does not exist.
func (s *Store) FindDocument(ctx context.Context, id string, opts ...FindOption) (*Document, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	query := `
		SELECT d.id, d.url_id, d.team_id, d.collection_id, d.parent_document_id, d.title, d.text,
			d.full_width, d.template, d.created_at, d.updated_at, d.published_at, `
	if o.withState {
		query += `ds.body
		FROM documents d
		LEFT JOIN document_states ds ON ds.document_id = d.id`
	} else {
		query += `NULL
		FROM documents d`
	}
	query += `
		WHERE d.id = ? AND d.deleted_at IS NULL`

	var d Document
	var collectionID, parentID, publishedAt, state sql.NullString
	var fullWidth, template int
	var createdAt, updatedAt string

	err := s.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.URLID, &d.TeamID, &collectionID, &parentID,
		&d.Title, &d.Text, &fullWidth, &template, &createdAt, &updatedAt, &publishedAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}

	if collectionID.Valid {
		d.CollectionID = collectionID.String
	}
	if parentID.Valid && parentID.String != "" {
		p := parentID.String
		d.ParentDocumentID = &p
	}
	if state.Valid {
		d.State = state.String
	}
	d.FullWidth = fullWidth == 1
	d.Template = template == 1
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	d.PublishedAt = parseNullTime(publishedAt)

	return &d, nil
}

// SaveDocument creates or updates a document.
func (s *Store) SaveDocument(ctx context.Context, d *Document) error {
	return saveDocument(ctx, s.DB, d)
}

func saveDocument(ctx context.Context, ex execer, d *Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	var collectionID any
	if d.CollectionID != "" {
		collectionID = d.CollectionID
	}
	var parentID any
	if d.ParentDocumentID != nil {
		parentID = *d.ParentDocumentID
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO documents (id, url_id, team_id, collection_id, parent_document_id, title, text,
			full_width, template, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url_id = excluded.url_id,
			team_id = excluded.team_id,
			collection_id = excluded.collection_id,
			parent_document_id = excluded.parent_document_id,
			title = excluded.title,
			text = excluded.text,
			full_width = excluded.full_width,
			template = excluded.template,
			updated_at = excluded.updated_at,
			published_at = excluded.published_at
	`, d.ID, d.URLID, d.TeamID, collectionID, parentID, d.Title, d.Text,
		boolToInt(d.FullWidth), boolToInt(d.Template),
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt), nullableTime(d.PublishedAt))
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	return nil
}

// SaveDocumentState records the latest merged collaborative body of a
// document.
func (s *Store) SaveDocumentState(ctx context.Context, documentID, body string) error {
	return saveDocumentState(ctx, s.DB, documentID, body)
}

func saveDocumentState(ctx context.Context, ex execer, documentID, body string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO document_states (document_id, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, documentID, body, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save document state %s: %w", documentID, err)
	}
	return nil
}

// DeleteDocument soft-deletes a document so lookups no longer resolve it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.ExecContext(ctx, `UPDATE documents SET deleted_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}
