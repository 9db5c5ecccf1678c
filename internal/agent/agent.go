package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"movie-relay/internal/convo"
)

var (
	// ErrNoResults: the remote bot answered without any interactive
	// controls even after the gate step.
	ErrNoResults = errors.New("no results")
	// ErrStateChanged: the "next" control vanished before the target page
	// during replay; the remote menu is not stable across conversations.
	ErrStateChanged = errors.New("result menu changed upstream")
	// ErrDeliveryTimeout: no file arrived within the poll budget after
	// clicking the final selection.
	ErrDeliveryTimeout = errors.New("no file arrived after selection")
)

// Agent drives discovery walks and selection replays over the shared
// conversational channel. Tunables live on the struct so tests can shrink
// them; defaults come from config in main.
type Agent struct {
	Channel convo.Channel
	Peer    string // the remote search bot

	ConvTimeout  time.Duration // first-response wait
	EditWait     time.Duration // per-page edit wait
	GatePause    time.Duration // settle time after dismissing a gate
	MaxPages     int           // hard page ceiling; guarantees termination
	PollAttempts int           // responses to inspect for the file artifact
}

// openAndGate sends the query and returns the first real results message.
// An interstitial "join/subscribe" gate is dismissed transparently: click
// the first control, pause, take the next response. Gate dismissal failing
// is not fatal; we just proceed with what we have.
func (a *Agent) openAndGate(ctx context.Context, sess convo.Session, query string) (convo.Message, error) {
	if err := sess.Send(ctx, query); err != nil {
		return nil, err
	}
	cur, err := sess.AwaitResponse(ctx, a.ConvTimeout)
	if err != nil {
		return nil, err
	}
	if isGate(cur) {
		if controls := convo.Flatten(cur); len(controls) > 0 {
			if err := controls[0].Click(ctx); err == nil {
				sleep(ctx, a.GatePause)
				if nxt, err := sess.AwaitResponse(ctx, a.ConvTimeout); err == nil {
					cur = nxt
				}
			}
		}
	}
	return cur, nil
}

func isGate(m convo.Message) bool {
	if len(m.Controls()) == 0 {
		return false
	}
	t := strings.ToLower(m.Text())
	return strings.Contains(t, "join") || strings.Contains(t, "subscribe")
}

// findNext locates the pager control: text starting with "next", any case.
func findNext(controls []convo.Control) convo.Control {
	for _, c := range controls {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(c.Text())), "next") {
			return c
		}
	}
	return nil
}

// matchesAll is the query filter: every whitespace-delimited query word
// must appear in the label as a case-insensitive substring. Plain AND over
// substrings, no fuzzing.
func matchesAll(label string, words []string) bool {
	l := strings.ToLower(label)
	for _, w := range words {
		if !strings.Contains(l, w) {
			return false
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
