package classify

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	leadTagRE = regexp.MustCompile(`^\[.*?\]\s*`)
	// title = everything before the first year, resolution or language marker
	markerRE  = regexp.MustCompile(`^(.*?)(?:\s\(?\d{4}\)?|\s\d{3,4}p|\s(?:hindi|telugu|tamil|malayalam|kannada|english|bengali|marathi|punjabi|gujarati|odia|oriya))`)
	partNumRE = regexp.MustCompile(`\s-\s(?:part|the)\s\d`)
	subPartRE = regexp.MustCompile(`:\s(?:the|part)\s\w+`)
)

// NormalizeTitle canonicalizes a noisy label into a dedup key. It strips a
// leading bracketed tag, cuts at the first year/quality/language marker and
// drops common "- part N" subtitle noise. Two differently formatted labels
// for the same release must land on the same key; that is the whole point.
// Falls back to the title-cased full text when no marker is found.
func NormalizeTitle(text string) string {
	t := strings.ToLower(text)
	t = leadTagRE.ReplaceAllString(t, "")
	m := markerRE.FindStringSubmatch(t)
	if m == nil {
		return titleCase(strings.TrimSpace(t))
	}
	title := strings.TrimSpace(m[1])
	title = partNumRE.ReplaceAllString(title, "")
	title = subPartRE.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	if title == "" {
		return titleCase(strings.TrimSpace(t))
	}
	return titleCase(title)
}

// titleCase uppercases the first letter of every word, where a word starts
// after any non-letter (so "mad-max" becomes "Mad-Max").
func titleCase(s string) string {
	out := []rune(s)
	prevLetter := false
	for i, r := range out {
		if unicode.IsLetter(r) {
			if prevLetter {
				out[i] = unicode.ToLower(r)
			} else {
				out[i] = unicode.ToUpper(r)
			}
			prevLetter = true
			continue
		}
		prevLetter = false
	}
	return string(out)
}
