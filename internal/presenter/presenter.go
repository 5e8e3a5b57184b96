// Package presenter shapes store records into the public descriptors that
// appear in exports and API responses.
package presenter

import (
	"time"

	"github.com/randalmurphal/kbexport/internal/attachments"
	"github.com/randalmurphal/kbexport/internal/db"
)

// Collection is the public view of a collection.
type Collection struct {
	ID         string    `json:"id"`
	URLID      string    `json:"urlId"`
	Name       string    `json:"name"`
	Sort       db.Sort   `json:"sort"`
	Icon       string    `json:"icon,omitempty"`
	Color      string    `json:"color,omitempty"`
	Permission string    `json:"permission,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	// URL is only meaningful to a running instance. Exports clear it.
	URL string `json:"url,omitempty"`
}

// Attachment is the public view of an attachment.
type Attachment struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId,omitempty"`
	ContentType string `json:"contentType"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	// Key is the blob storage key, set for archived attachments.
	Key string `json:"key,omitempty"`
	URL string `json:"url,omitempty"`
}

// PresentCollection returns the public descriptor for c.
func PresentCollection(c *db.Collection) Collection {
	return Collection{
		ID:         c.ID,
		URLID:      c.URLID,
		Name:       c.Name,
		Sort:       c.Sort,
		Icon:       c.Icon,
		Color:      c.Color,
		Permission: c.Permission,
		CreatedAt:  c.CreatedAt.UTC(),
		UpdatedAt:  c.UpdatedAt.UTC(),
		URL:        c.URL(),
	}
}

// PresentAttachment returns the public descriptor for a, addressed by its
// redirect URL.
func PresentAttachment(a *db.Attachment) Attachment {
	return Attachment{
		ID:          a.ID,
		DocumentID:  a.DocumentID,
		ContentType: a.ContentType,
		Name:        a.Name,
		Size:        a.Size,
		URL:         attachments.RedirectURL(a.ID),
	}
}

// ArchivedAttachment returns the descriptor written into exports: it carries
// the storage key the blob was archived under and never a URL.
func ArchivedAttachment(a *db.Attachment) Attachment {
	out := PresentAttachment(a)
	out.Key = a.Key
	out.URL = ""
	return out
}
