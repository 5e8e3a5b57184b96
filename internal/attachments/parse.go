// Package attachments extracts attachment references from raw document bodies.
package attachments

import (
	"regexp"

	"github.com/google/uuid"
)

// redirectPattern matches the link form the editor writes for uploaded files,
// e.g. ![](/api/attachments.redirect?id=0b7f...).
var redirectPattern = regexp.MustCompile(`(?i)/api/attachments\.redirect\?id=([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)

// ParseIDs returns the attachment ids referenced in text, in order of first
// appearance, without duplicates. Ids are returned in canonical lower-case
// form so that differently cased references to the same attachment collapse.
func ParseIDs(text string) []string {
	matches := redirectPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m[1])
		if err != nil {
			continue
		}
		s := id.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		ids = append(ids, s)
	}
	return ids
}

// ReplaceLinks rewrites every attachment redirect link in text. replace
// receives the canonical id and returns the new link; returning false keeps
// the original link.
func ReplaceLinks(text string, replace func(id string) (string, bool)) string {
	return redirectPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := redirectPattern.FindStringSubmatch(match)
		id, err := uuid.Parse(sub[1])
		if err != nil {
			return match
		}
		if link, ok := replace(id.String()); ok {
			return link
		}
		return match
	})
}

// RedirectURL returns the in-document link for an attachment id.
func RedirectURL(id string) string {
	return "/api/attachments.redirect?id=" + id
}
