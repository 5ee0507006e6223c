// Package locator turns the document links typed into the case queue into
// Drive file IDs.
package locator

import (
	"regexp"
	"strings"
)

var (
	docPattern    = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	folderPattern = regexp.MustCompile(`folders/([a-zA-Z0-9_-]+)`)
)

// minBareIDLen is the length a bare identifier must exceed to be accepted.
const minBareIDLen = 20

// FileID extracts the Drive ID from a Docs/Drive URL ("/d/<id>" or
// "folders/<id>") or accepts a bare ID longer than 20 characters with no
// path separator. Anything else is unresolvable.
func FileID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if m := docPattern.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if m := folderPattern.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if len(raw) > minBareIDLen && !strings.Contains(raw, "/") {
		return raw, true
	}
	return "", false
}

// Plausible reports whether a queue cell looks like it could hold a link at
// all. Short junk such as "-" or "n/a" is skipped without an API call.
func Plausible(raw string) bool {
	return len(strings.TrimSpace(raw)) > 5
}
