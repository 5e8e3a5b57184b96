package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixture is a YAML description of a knowledge base used to populate a
// store for local development and tests.
type Fixture struct {
	TeamID      string              `yaml:"team_id"`
	Collections []FixtureCollection `yaml:"collections"`
	Attachments []FixtureAttachment `yaml:"attachments"`
}

// FixtureCollection is a collection with its documents nested by hierarchy.
type FixtureCollection struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Color       string            `yaml:"color"`
	Icon        string            `yaml:"icon"`
	Documents   []FixtureDocument `yaml:"documents"`
}

// FixtureDocument is one node of a collection hierarchy. A document marked
// Missing appears in the hierarchy but is never stored.
type FixtureDocument struct {
	ID        string            `yaml:"id"`
	Title     string            `yaml:"title"`
	Text      string            `yaml:"text"`
	State     string            `yaml:"state"`
	Published bool              `yaml:"published"`
	FullWidth bool              `yaml:"full_width"`
	Template  bool              `yaml:"template"`
	Missing   bool              `yaml:"missing"`
	Children  []FixtureDocument `yaml:"children"`
}

// FixtureAttachment is attachment metadata plus optional inline content
// for the blob store.
type FixtureAttachment struct {
	ID          string `yaml:"id"`
	TeamID      string `yaml:"team_id"`
	DocumentID  string `yaml:"document_id"`
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type"`
	Content     string `yaml:"content"`
}

// LoadFixture decodes a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.TeamID == "" {
		f.TeamID = uuid.NewString()
	}
	return &f, nil
}

// SeedResult counts what a Seed call stored.
type SeedResult struct {
	Collections int
	Documents   int
	Attachments int
}

// Seed writes the fixture into the store in a single transaction. IDs left
// empty in the fixture are generated and written back into it.
func (s *Store) Seed(ctx context.Context, f *Fixture) (*SeedResult, error) {
	result := &SeedResult{}
	now := time.Now().UTC().Truncate(time.Second)

	err := s.RunInTx(ctx, func(tx *TxOps) error {
		for i := range f.Collections {
			fc := &f.Collections[i]
			if fc.ID == "" {
				fc.ID = uuid.NewString()
			}
			c := &Collection{
				ID:          fc.ID,
				TeamID:      f.TeamID,
				URLID:       shortID(fc.ID),
				Name:        fc.Name,
				Description: fc.Description,
				Color:       fc.Color,
				Icon:        fc.Icon,
				CreatedAt:   now.Add(time.Duration(i) * time.Second),
			}
			c.DocumentStructure = buildStructure(fc.Documents)
			if err := saveCollection(ctx, tx, c); err != nil {
				return err
			}
			result.Collections++

			n, err := seedDocuments(ctx, tx, f.TeamID, c.ID, nil, fc.Documents, now)
			if err != nil {
				return err
			}
			result.Documents += n
		}

		for i := range f.Attachments {
			fa := &f.Attachments[i]
			if fa.ID == "" {
				fa.ID = uuid.NewString()
			}
			teamID := fa.TeamID
			if teamID == "" {
				teamID = f.TeamID
			}
			if fa.Key == "" {
				fa.Key = fmt.Sprintf("uploads/%s/%s/%s", teamID, fa.ID, fa.Name)
			}
			a := &Attachment{
				ID:          fa.ID,
				TeamID:      teamID,
				DocumentID:  fa.DocumentID,
				Key:         fa.Key,
				Name:        fa.Name,
				ContentType: fa.ContentType,
				Size:        int64(len(fa.Content)),
				CreatedAt:   now,
			}
			if err := saveAttachment(ctx, tx, a); err != nil {
				return err
			}
			result.Attachments++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}
	return result, nil
}

// buildStructure assigns missing ids and mirrors the fixture tree as
// navigation nodes.
func buildStructure(docs []FixtureDocument) []NavigationNode {
	nodes := make([]NavigationNode, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		nodes = append(nodes, NavigationNode{
			ID:       d.ID,
			Title:    d.Title,
			URL:      documentURL(d.Title, d.ID),
			Children: buildStructure(d.Children),
		})
	}
	return nodes
}

func seedDocuments(ctx context.Context, ex execer, teamID, collectionID string, parentID *string, docs []FixtureDocument, now time.Time) (int, error) {
	count := 0
	for _, fd := range docs {
		if !fd.Missing {
			doc := &Document{
				ID:               fd.ID,
				URLID:            shortID(fd.ID),
				TeamID:           teamID,
				CollectionID:     collectionID,
				ParentDocumentID: parentID,
				Title:            fd.Title,
				Text:             fd.Text,
				FullWidth:        fd.FullWidth,
				Template:         fd.Template,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if fd.Published {
				published := now
				doc.PublishedAt = &published
			}
			if err := saveDocument(ctx, ex, doc); err != nil {
				return count, err
			}
			if fd.State != "" {
				if err := saveDocumentState(ctx, ex, fd.ID, fd.State); err != nil {
					return count, err
				}
			}
			count++
		}

		id := fd.ID
		n, err := seedDocuments(ctx, ex, teamID, collectionID, &id, fd.Children, now)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func documentURL(title, id string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	if slug == "" {
		return "/doc/" + shortID(id)
	}
	return "/doc/" + slug + "-" + shortID(id)
}
