package export

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

// SelectCollections picks the collections named by patterns, keeping the
// order of all. A pattern matches a collection by exact id or as a
// doublestar glob on its name. No patterns selects everything. A pattern
// that matches nothing is an error.
func SelectCollections(all []*db.Collection, patterns []string) ([]*db.Collection, error) {
	if len(patterns) == 0 {
		return all, nil
	}

	selected := make([]bool, len(all))
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, kberrors.ErrConfigInvalid("collection", "invalid pattern: "+p)
		}
		matched := false
		for i, c := range all {
			if c.ID == p {
				selected[i], matched = true, true
				continue
			}
			if ok, _ := doublestar.Match(p, c.Name); ok {
				selected[i], matched = true, true
			}
		}
		if !matched {
			return nil, kberrors.ErrCollectionNotFound(p)
		}
	}

	out := make([]*db.Collection, 0, len(all))
	for i, c := range all {
		if selected[i] {
			out = append(out, c)
		}
	}
	return out, nil
}
