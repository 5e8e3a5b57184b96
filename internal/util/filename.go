package util

import (
	"strings"
	"unicode/utf8"
)

// maxFilenameBytes is the longest entry name most filesystems accept.
const maxFilenameBytes = 255

// SerializeFilename turns an arbitrary display name into something usable as
// a single archive path segment. Slashes are percent-encoded so a name like
// "Design/UX" does not create a nested folder, and the result is truncated to
// 255 bytes without splitting a multi-byte rune.
//
// Distinct inputs can serialize to the same output (for example after
// truncation); callers that need unique names must disambiguate themselves.
func SerializeFilename(name string) string {
	s := strings.ReplaceAll(name, "/", "%2F")
	if len(s) <= maxFilenameBytes {
		return s
	}
	// Back off over the continuation bytes of a rune split by the cut.
	// Invalid bytes elsewhere in the name are left alone.
	n := maxFilenameBytes
	for i := 0; i < utf8.UTFMax-1 && n > 0 && !utf8.RuneStart(s[n]); i++ {
		n--
	}
	return s[:n]
}
