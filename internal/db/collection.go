package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NavigationNode is one entry of a collection's document hierarchy.
type NavigationNode struct {
	ID       string           `json:"id" yaml:"id"`
	Title    string           `json:"title" yaml:"title"`
	URL      string           `json:"url" yaml:"url"`
	Children []NavigationNode `json:"children" yaml:"children"`
}

// Sort is the configured ordering of a collection's documents.
type Sort struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction" yaml:"direction"`
}

// Collection is a named group of documents with an ordered hierarchy.
type Collection struct {
	ID                string
	TeamID            string
	URLID             string
	Name              string
	Description       string
	Color             string
	Icon              string
	Permission        string
	Sort              Sort
	DocumentStructure []NavigationNode
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// URL is the in-app path of the collection. It is only meaningful to a
// running instance and is never written into exports.
func (c *Collection) URL() string {
	return "/collection/" + c.URLID
}

const collectionColumns = `id, team_id, url_id, name, description, color, icon, permission,
	sort_field, sort_direction, document_structure, created_at, updated_at`

// ListCollections returns all live collections ordered by creation.
func (s *Store) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections
		WHERE deleted_at IS NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

// GetCollection returns a collection by ID, or nil if it does not exist.
func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	row := s.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", id, err)
	}
	return c, nil
}

// SaveCollection creates or updates a collection.
func (s *Store) SaveCollection(ctx context.Context, c *Collection) error {
	return saveCollection(ctx, s.DB, c)
}

func saveCollection(ctx context.Context, ex execer, c *Collection) error {
	structure, err := json.Marshal(c.DocumentStructure)
	if err != nil {
		return fmt.Errorf("marshal document structure: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Sort.Field == "" {
		c.Sort = Sort{Field: "index", Direction: "asc"}
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO collections (`+collectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			team_id = excluded.team_id,
			url_id = excluded.url_id,
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			icon = excluded.icon,
			permission = excluded.permission,
			sort_field = excluded.sort_field,
			sort_direction = excluded.sort_direction,
			document_structure = excluded.document_structure,
			updated_at = excluded.updated_at
	`, c.ID, c.TeamID, c.URLID, c.Name, c.Description, c.Color, c.Icon, c.Permission,
		c.Sort.Field, c.Sort.Direction, string(structure),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save collection %s: %w", c.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var structure sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&c.ID, &c.TeamID, &c.URLID, &c.Name, &c.Description, &c.Color, &c.Icon,
		&c.Permission, &c.Sort.Field, &c.Sort.Direction, &structure, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if structure.Valid && structure.String != "" {
		if err := json.Unmarshal([]byte(structure.String), &c.DocumentStructure); err != nil {
			return nil, fmt.Errorf("decode document structure for %s: %w", c.ID, err)
		}
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
