package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Names: letters (any script), spaces, hyphens, apostrophes and dots.
var nameRe = regexp.MustCompile(`^[\p{L}][\p{L}\s\-'.]*$`)

const (
	MaxNameLen   = 120
	MaxReasonLen = 500
)

func IsValidName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= MaxNameLen && nameRe.MatchString(name)
}

// CleanText trims surrounding space and collapses internal runs of
// whitespace, so audit text compares and displays consistently.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsValidReason reports whether an already cleaned reason is non-empty and
// within MaxReasonLen runes.
func IsValidReason(reason string) bool {
	n := utf8.RuneCountInString(reason)
	return n > 0 && n <= MaxReasonLen
}
