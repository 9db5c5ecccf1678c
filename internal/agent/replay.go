package agent

import (
	"context"
	"errors"
	"log"

	"movie-relay/internal/convo"
)

// Replay reconstructs the remote conversation from scratch — same query,
// same gate handling, same page walk — clicks the control at targetIndex
// on targetPage, waits for the file artifact and forwards it to deliverTo.
//
// Nothing from the original discovery survives except the (page, index)
// coordinates: the remote session cannot be paused and resumed, only
// replayed. That makes this path idempotent and also the one that can fail
// when the remote result set shifted between discovery and selection.
func (a *Agent) Replay(ctx context.Context, query string, targetPage, targetIndex int, deliverTo int64) error {
	sess, err := a.Channel.Open(ctx, a.Peer)
	if err != nil {
		return err
	}
	defer sess.Close()

	cur, err := a.openAndGate(ctx, sess, query)
	if err != nil {
		return err
	}

	for page := 1; page < targetPage; page++ {
		next := findNext(convo.Flatten(cur))
		if next == nil {
			return ErrStateChanged
		}
		if err := next.Click(ctx); err != nil {
			return err
		}
		cur, err = sess.AwaitEdit(ctx, a.EditWait)
		if err != nil {
			return err
		}
	}

	controls := convo.Flatten(cur)
	if targetIndex < 0 || targetIndex >= len(controls) {
		return ErrStateChanged
	}
	if err := controls[targetIndex].Click(ctx); err != nil {
		return err
	}

	for i := 0; i < a.PollAttempts; i++ {
		resp, err := sess.AwaitResponse(ctx, a.ConvTimeout)
		if err != nil {
			if errors.Is(err, convo.ErrTimeout) {
				return ErrDeliveryTimeout
			}
			return err
		}
		if !resp.HasMedia() {
			continue // status chatter before the actual file
		}
		if err := sess.Forward(ctx, resp, deliverTo); err != nil {
			return err
		}
		log.Printf("[replay] delivered artifact for %q (page %d index %d)", query, targetPage, targetIndex)
		return nil
	}
	return ErrDeliveryTimeout
}
