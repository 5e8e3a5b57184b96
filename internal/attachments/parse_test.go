package attachments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	idA = "0b7f3b4e-6c1d-4c1e-9a3b-5f2d8e7a9c10"
	idB = "f2a1c9d8-3b4e-4f5a-8c7d-1e2f3a4b5c6d"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "no references",
			text: "# Title\n\nplain text",
			want: nil,
		},
		{
			name: "image and link",
			text: "![diagram](/api/attachments.redirect?id=" + idA + ")\n[spec](/api/attachments.redirect?id=" + idB + ")",
			want: []string{idA, idB},
		},
		{
			name: "duplicates collapse in first-seen order",
			text: "/api/attachments.redirect?id=" + idB + " /api/attachments.redirect?id=" + idA + " /api/attachments.redirect?id=" + idB,
			want: []string{idB, idA},
		},
		{
			name: "case-insensitive ids normalize",
			text: "/api/attachments.redirect?id=0B7F3B4E-6C1D-4C1E-9A3B-5F2D8E7A9C10 /api/attachments.redirect?id=" + idA,
			want: []string{idA},
		},
		{
			name: "absolute url",
			text: "https://kb.example.com/api/attachments.redirect?id=" + idA,
			want: []string{idA},
		},
		{
			name: "malformed id ignored",
			text: "/api/attachments.redirect?id=not-a-uuid",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIDs(tt.text))
		})
	}
}

func TestRedirectURLRoundTrip(t *testing.T) {
	text := "![](" + RedirectURL(idA) + ")"
	assert.Equal(t, []string{idA}, ParseIDs(text))
}

func TestReplaceLinks(t *testing.T) {
	text := "![a](/api/attachments.redirect?id=" + idA + ") and [b](/API/attachments.redirect?id=" + idB + ")"

	got := ReplaceLinks(text, func(id string) (string, bool) {
		if id == idA {
			return "../uploads/a.png", true
		}
		return "", false
	})

	assert.Equal(t, "![a](../uploads/a.png) and [b](/API/attachments.redirect?id="+idB+")", got)
}
