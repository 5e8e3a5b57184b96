package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Attachment is metadata for a binary file referenced from document bodies.
// The content itself lives in blob storage under Key.
type Attachment struct {
	ID          string
	TeamID      string
	DocumentID  string
	Key         string
	Name        string
	ContentType string
	Size        int64
	ACL         string
	CreatedAt   time.Time
}

// FindAttachments returns the attachments among ids that belong to teamID,
// in the order of ids. Unknown ids and ids owned by another team are
// dropped; duplicates in ids yield a single result.
func (s *Store) FindAttachments(ctx context.Context, teamID string, ids []string) ([]*Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, teamID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.QueryContext(ctx, `
		SELECT id, team_id, document_id, key, name, content_type, size, acl, created_at
		FROM attachments
		WHERE team_id = ? AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Attachment, len(ids))
	for rows.Next() {
		var a Attachment
		var documentID *string
		var createdAt string
		if err := rows.Scan(&a.ID, &a.TeamID, &documentID, &a.Key, &a.Name, &a.ContentType,
			&a.Size, &a.ACL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if documentID != nil {
			a.DocumentID = *documentID
		}
		a.CreatedAt = parseTime(createdAt)
		byID[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}

	result := make([]*Attachment, 0, len(byID))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			result = append(result, a)
			delete(byID, id)
		}
	}
	return result, nil
}

// SaveAttachment creates or updates attachment metadata.
func (s *Store) SaveAttachment(ctx context.Context, a *Attachment) error {
	return saveAttachment(ctx, s.DB, a)
}

func saveAttachment(ctx context.Context, ex execer, a *Attachment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	if a.ACL == "" {
		a.ACL = "private"
	}
	var documentID any
	if a.DocumentID != "" {
		documentID = a.DocumentID
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO attachments (id, team_id, document_id, key, name, content_type, size, acl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			team_id = excluded.team_id,
			document_id = excluded.document_id,
			key = excluded.key,
			name = excluded.name,
			content_type = excluded.content_type,
			size = excluded.size,
			acl = excluded.acl
	`, a.ID, a.TeamID, documentID, a.Key, a.Name, a.ContentType, a.Size, a.ACL, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("save attachment %s: %w", a.ID, err)
	}
	return nil
}
