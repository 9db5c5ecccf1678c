package convo

import (
	"context"
	"errors"
	"time"
)

// The conversational channel to the remote search bot. The remote side has
// no API and no stable item IDs — just rendered buttons inside a stateful
// conversation — so the whole surface is: send text, wait for the reply,
// wait for an in-place edit of it, click a button. Every call can time out;
// ErrTimeout is a recoverable condition that bounds the current loop, not a
// fault.

var ErrTimeout = errors.New("conversation timed out")

// Channel opens request/response conversations with a remote peer. The
// implementation serializes conversations: a second Open blocks until the
// first session closes.
type Channel interface {
	Open(ctx context.Context, peer string) (Session, error)
}

type Session interface {
	Send(ctx context.Context, text string) error
	// AwaitResponse blocks for the next new message from the peer.
	AwaitResponse(ctx context.Context, timeout time.Duration) (Message, error)
	// AwaitEdit blocks for the next in-place edit from the peer. The remote
	// pager models "next page" as an edit of the same message, so this is
	// an explicit event rather than incidental control flow.
	AwaitEdit(ctx context.Context, timeout time.Duration) (Message, error)
	// Forward delivers a message carrying a file artifact to a chat.
	Forward(ctx context.Context, m Message, chatID int64) error
	Close() error
}

// Message is one remote message with its interactive controls.
type Message interface {
	Text() string
	// Controls returns the button rows as rendered.
	Controls() [][]Control
	// HasMedia reports whether the message carries a delivered file.
	HasMedia() bool
}

// Control is one interactive button on a message.
type Control interface {
	Text() string
	Click(ctx context.Context) error
}

// Flatten collapses a message's button rows into one ordered list; token
// coordinates index into this list.
func Flatten(m Message) []Control {
	var out []Control
	for _, row := range m.Controls() {
		out = append(out, row...)
	}
	return out
}
