package menu

import (
	"regexp"
	"strings"

	"movie-relay/pkg/types"
)

// MaxLabelLen is the inline button display limit.
const MaxLabelLen = 60

const ellipsis = "…"

// Anything outside this set trips the control surface's encoding rules.
var unsafeRE = regexp.MustCompile(`[^A-Za-z0-9 \-\(\),\+\&\.\:…]`)

// BuildLabel renders one aggregate entry as a bounded button label:
// "Title - Year - Quality - Lang1, Lang2", truncated to MaxLabelLen with a
// trailing ellipsis, then sanitized for the control surface.
func BuildLabel(e types.Classified) string {
	parts := []string{e.Title}
	if e.Year != "" {
		parts = append(parts, e.Year)
	}
	if e.Quality != "" {
		parts = append(parts, e.Quality)
	}
	if len(e.Languages) > 0 {
		parts = append(parts, strings.Join(e.Languages, ", "))
	}
	label := strings.Join(parts, " - ")
	if r := []rune(label); len(r) > MaxLabelLen {
		label = strings.TrimRight(string(r[:MaxLabelLen-1]), " ") + ellipsis
	}
	return Sanitize(label)
}

// Sanitize strips characters the control surface cannot carry. A label that
// sanitizes away entirely becomes "Untitled" so no empty button is ever
// rendered.
func Sanitize(s string) string {
	s = strings.TrimSpace(unsafeRE.ReplaceAllString(s, ""))
	if s == "" {
		return "Untitled"
	}
	return s
}
