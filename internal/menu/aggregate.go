package menu

import "movie-relay/pkg/types"

// Aggregator folds classified candidates into one entry per canonical
// title. Policy: best quality wins; on a tie the first seen (earliest page)
// entry stays. The retained entry's (page, index) always point at the
// button that produced the retained quality.
//
// The map is owned by a single discovery run and dies with it — it is never
// shared across goroutines and never serialized.
type Aggregator struct {
	byTitle map[string]int
	entries []types.Classified
}

func NewAggregator() *Aggregator {
	return &Aggregator{byTitle: make(map[string]int)}
}

func (a *Aggregator) Consider(c types.Classified) {
	if c.Title == "" {
		return
	}
	i, ok := a.byTitle[c.Title]
	if !ok {
		a.byTitle[c.Title] = len(a.entries)
		a.entries = append(a.entries, c)
		return
	}
	if c.QRank > a.entries[i].QRank {
		a.entries[i] = c
	}
}

// Entries returns the retained entries in first-seen order.
func (a *Aggregator) Entries() []types.Classified { return a.entries }

func (a *Aggregator) Len() int { return len(a.entries) }
