package agent

import (
	"context"
	"errors"
	"log"
	"strings"

	"movie-relay/internal/classify"
	"movie-relay/internal/convo"
	"movie-relay/internal/menu"
	"movie-relay/pkg/types"
)

// Discover walks the remote pager for query and returns the deduped
// entries in first-seen order, plus the number of pages actually visited.
// The walk is strictly sequential: the remote bot models page N+1 as an
// in-place edit of the page N message, so there is nothing to parallelize.
//
// A timeout while advancing is a soft stop — whatever earlier pages
// produced is still served. Only a dead first response or a control-less
// reply is terminal.
func (a *Agent) Discover(ctx context.Context, query string) ([]types.Classified, int, error) {
	sess, err := a.Channel.Open(ctx, a.Peer)
	if err != nil {
		return nil, 0, err
	}
	defer sess.Close()

	cur, err := a.openAndGate(ctx, sess, query)
	if err != nil {
		return nil, 0, err
	}
	if len(convo.Flatten(cur)) == 0 {
		return nil, 0, ErrNoResults
	}

	agg := menu.NewAggregator()
	words := strings.Fields(strings.ToLower(query))
	page := 1
	for page <= a.MaxPages {
		controls := convo.Flatten(cur)
		for i, c := range controls {
			text := strings.TrimSpace(c.Text())
			if text == "" {
				continue
			}
			if !matchesAll(text, words) {
				continue
			}
			cand := classify.Classify(text, page, i)
			if cand.Title == "" {
				continue
			}
			agg.Consider(cand)
		}

		next := findNext(controls)
		if next == nil || page >= a.MaxPages {
			break
		}
		if err := next.Click(ctx); err != nil {
			log.Printf("[discover] next click failed on page %d: %v", page, err)
			break
		}
		nxt, err := sess.AwaitEdit(ctx, a.EditWait)
		if err != nil {
			if !errors.Is(err, convo.ErrTimeout) {
				log.Printf("[discover] edit wait failed on page %d: %v", page, err)
			}
			break // serve what we gathered so far
		}
		cur = nxt
		page++
	}

	return agg.Entries(), page, nil
}
