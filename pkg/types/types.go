package types

// Candidate is one raw result button seen during a page walk.
type Candidate struct {
	Text  string // visible button text, as rendered by the remote bot
	Page  int    // 1-based page the button was seen on
	Index int    // position in the page's flattened button list
}

// Classified is a Candidate plus everything pulled out of its text.
type Classified struct {
	Candidate
	Title     string   // normalized title, used as the dedup key
	Year      string   // "1900".."2099" or ""
	Quality   string   // "2160p","1080p","720p","480p","HDRip" or ""
	QRank     int      // total order over qualities; unknown < every known
	Languages []string // canonical labels, first-seen order, deduped
}
