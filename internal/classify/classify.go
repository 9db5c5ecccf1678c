package classify

import (
	"regexp"
	"strings"

	"movie-relay/pkg/types"
)

// Pure text classifiers for raw result labels. All of these are total over
// arbitrary text: absence of a signal is "", never an error.

var yearRE = regexp.MustCompile(`(19|20)\d{2}`)

// ExtractYear returns the first 4-digit year in 1900..2099 that is not
// glued to other digits (so "x264 2019" matches, "12019" does not).
func ExtractYear(text string) string {
	for _, loc := range yearRE.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isDigit(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isDigit(text[loc[1]]) {
			continue
		}
		return text[loc[0]:loc[1]]
	}
	return ""
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ExtractQuality matches known quality tokens by priority and returns the
// canonical tier label, not the matched substring ("4k" folds into "2160p").
func ExtractQuality(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "2160p") || strings.Contains(t, "4k"):
		return "2160p"
	case strings.Contains(t, "1080p"):
		return "1080p"
	case strings.Contains(t, "720p"):
		return "720p"
	case strings.Contains(t, "480p"):
		return "480p"
	case strings.Contains(t, "hdrip"):
		return "HDRip"
	}
	return ""
}

var qualityRanks = map[string]int{
	"2160p": 4,
	"1080p": 3,
	"720p":  2,
	"480p":  1,
	"HDRip": 0,
}

// QualityRank orders tiers for dedup. Unknown ranks below every known tier,
// so any classified quality always beats an unclassified one.
func QualityRank(q string) int {
	if r, ok := qualityRanks[q]; ok {
		return r
	}
	return -1
}

// langWords maps raw markers to canonical labels. Order matters: labels are
// emitted first-seen, and synonym groups collapse into one label.
var langWords = []struct{ word, label string }{
	{"hindi", "Hindi"},
	{"english", "English"},
	{"telugu", "Telugu"},
	{"tamil", "Tamil"},
	{"malayalam", "Malayalam"},
	{"kannada", "Kannada"},
	{"bengali", "Bengali"},
	{"marathi", "Marathi"},
	{"punjabi", "Punjabi"},
	{"gujarati", "Gujarati"},
	{"odia", "Odia"},
	{"oriya", "Odia"},
	{"dual", "Multi"},
	{"multi", "Multi"},
	{"multiaudio", "Multi"},
	{"hin+eng", "Hin+eng"},
	{"hin-eng", "Hin-eng"},
	{"tam+tel", "Tam+tel"},
	{"dubbed", "Dubbed"},
	{"hindidub", "Hindi Dub"},
	{"hindub", "Hindi Dub"},
}

// ExtractLanguages scans the fixed language vocabulary and returns the
// canonical labels in first-seen order, deduplicated.
func ExtractLanguages(text string) []string {
	t := strings.ToLower(text)
	var out []string
	seen := map[string]bool{}
	for _, lw := range langWords {
		if !strings.Contains(t, lw.word) {
			continue
		}
		if seen[lw.label] {
			continue
		}
		seen[lw.label] = true
		out = append(out, lw.label)
	}
	return out
}

// Classify runs the whole pipeline over one button label.
func Classify(text string, page, index int) types.Classified {
	q := ExtractQuality(text)
	return types.Classified{
		Candidate: types.Candidate{Text: text, Page: page, Index: index},
		Title:     NormalizeTitle(text),
		Year:      ExtractYear(text),
		Quality:   q,
		QRank:     QualityRank(q),
		Languages: ExtractLanguages(text),
	}
}
