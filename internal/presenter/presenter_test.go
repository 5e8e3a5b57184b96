package presenter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/kbexport/internal/db"
)

func TestPresentCollection(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &db.Collection{
		ID:        "c1",
		URLID:     "abc",
		Name:      "Engineering",
		Sort:      db.Sort{Field: "title", Direction: "desc"},
		Color:     "#ff0000",
		CreatedAt: created,
		UpdatedAt: created,
	}

	got := PresentCollection(c)
	assert.Equal(t, "/collection/abc", got.URL)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", gjson.GetBytes(data, "name").String())
	assert.Equal(t, "title", gjson.GetBytes(data, "sort.field").String())
	assert.Equal(t, "2024-01-01T00:00:00Z", gjson.GetBytes(data, "createdAt").String())
	assert.False(t, gjson.GetBytes(data, "icon").Exists())
}

func TestArchivedAttachment(t *testing.T) {
	a := &db.Attachment{
		ID:          "9b2f6f1e-0f6c-4c8e-9d55-6a1f4b0e3c21",
		DocumentID:  "d1",
		Key:         "uploads/t1/9b2f/image.png",
		Name:        "image.png",
		ContentType: "image/png",
		Size:        42,
	}

	public := PresentAttachment(a)
	assert.Equal(t, "/api/attachments.redirect?id=9b2f6f1e-0f6c-4c8e-9d55-6a1f4b0e3c21", public.URL)
	assert.Empty(t, public.Key)

	archived := ArchivedAttachment(a)
	data, err := json.Marshal(archived)
	require.NoError(t, err)
	assert.Equal(t, "uploads/t1/9b2f/image.png", gjson.GetBytes(data, "key").String())
	assert.False(t, gjson.GetBytes(data, "url").Exists(), "archived descriptors never carry a url")
	assert.EqualValues(t, 42, gjson.GetBytes(data, "size").Int())
}
