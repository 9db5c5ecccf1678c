package convo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Bridge talks to the userbot sidecar over a websocket. The sidecar holds
// the authenticated user session and exposes the remote conversation as a
// small JSON protocol:
//
//	-> {"id":"<uuid>","op":"open","peer":"..."}         ack {"id":..,"ok":true}
//	-> {"id":"<uuid>","op":"send","text":"..."}
//	-> {"id":"<uuid>","op":"click","msg":123,"index":4}  // flattened, row-major
//	-> {"id":"<uuid>","op":"forward","msg":123,"chat":456}
//	-> {"id":"<uuid>","op":"close"}
//	<- {"event":"message","msg":{...}}  new message from the peer
//	<- {"event":"edit","msg":{...}}     in-place edit of a prior message
//
// One conversation at a time: Open holds the conversation lock until the
// session closes, which is exactly the serialization the remote session
// gives us anyway.

const (
	bridgeReadLimit   = 1 << 20
	bridgePongWait    = 60 * time.Second
	bridgePingEvery   = 20 * time.Second
	bridgeEventBuffer = 16
)

type wireFrame struct {
	ID    string `json:"id,omitempty"`
	Op    string `json:"op,omitempty"`
	Peer  string `json:"peer,omitempty"`
	Text  string `json:"text,omitempty"`
	Msg   int64  `json:"msg,omitempty"`
	Index int    `json:"index,omitempty"`
	Chat  int64  `json:"chat,omitempty"`

	// server -> client
	OK    *bool        `json:"ok,omitempty"`
	Error string       `json:"error,omitempty"`
	Event string       `json:"event,omitempty"`
	MsgIn *wireMessage `json:"message,omitempty"`
}

type wireMessage struct {
	ID      int64      `json:"id"`
	Text    string     `json:"text"`
	Media   bool       `json:"media"`
	Buttons [][]string `json:"buttons"`
}

type Bridge struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // websocket writes are not concurrency-safe
	convMu  sync.Mutex // one open conversation at a time

	mu      sync.Mutex
	pending map[string]chan wireFrame
	msgCh   chan *wireMessage // nil unless a session is open
	editCh  chan *wireMessage

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the sidecar and starts the read/ping pumps.
func Dial(ctx context.Context, url string) (*Bridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge dial %s: %w", url, err)
	}
	b := &Bridge{
		conn:    conn,
		pending: make(map[string]chan wireFrame),
		closed:  make(chan struct{}),
	}
	conn.SetReadLimit(bridgeReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(bridgePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bridgePongWait))
	})
	go b.readPump()
	go b.pingPump()
	return b, nil
}

func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		err = b.conn.Close()
		b.mu.Lock()
		for id, ch := range b.pending {
			close(ch)
			delete(b.pending, id)
		}
		b.mu.Unlock()
	})
	return err
}

func (b *Bridge) readPump() {
	defer b.Close()
	for {
		var f wireFrame
		if err := b.conn.ReadJSON(&f); err != nil {
			select {
			case <-b.closed:
			default:
				log.Printf("[bridge] read: %v", err)
			}
			return
		}
		switch {
		case f.ID != "":
			b.mu.Lock()
			ch, ok := b.pending[f.ID]
			if ok {
				delete(b.pending, f.ID)
			}
			b.mu.Unlock()
			if ok {
				ch <- f
			}
		case f.Event != "" && f.MsgIn != nil:
			b.deliverEvent(f.Event, f.MsgIn)
		}
	}
}

func (b *Bridge) deliverEvent(event string, m *wireMessage) {
	b.mu.Lock()
	var ch chan *wireMessage
	switch event {
	case "message":
		ch = b.msgCh
	case "edit":
		ch = b.editCh
	}
	b.mu.Unlock()
	if ch == nil {
		return // no conversation open; stray event
	}
	select {
	case ch <- m:
	default:
		log.Printf("[bridge] dropping %s event, session not draining", event)
	}
}

func (b *Bridge) pingPump() {
	t := time.NewTicker(bridgePingEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			b.writeMu.Lock()
			err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-b.closed:
			return
		}
	}
}

// rpc writes one frame and waits for its ack.
func (b *Bridge) rpc(ctx context.Context, f wireFrame) (wireFrame, error) {
	f.ID = uuid.NewString()
	ch := make(chan wireFrame, 1)
	b.mu.Lock()
	b.pending[f.ID] = ch
	b.mu.Unlock()

	b.writeMu.Lock()
	err := b.conn.WriteJSON(f)
	b.writeMu.Unlock()
	if err != nil {
		b.mu.Lock()
		delete(b.pending, f.ID)
		b.mu.Unlock()
		return wireFrame{}, err
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return wireFrame{}, errors.New("bridge closed")
		}
		if ack.OK != nil && !*ack.OK {
			return ack, fmt.Errorf("bridge %s: %s", f.Op, ack.Error)
		}
		return ack, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, f.ID)
		b.mu.Unlock()
		return wireFrame{}, ctx.Err()
	case <-b.closed:
		return wireFrame{}, errors.New("bridge closed")
	}
}

// Open acquires the single conversation slot and tells the sidecar which
// peer to talk to. The returned session must be closed to release the slot.
func (b *Bridge) Open(ctx context.Context, peer string) (Session, error) {
	b.convMu.Lock()
	if _, err := b.rpc(ctx, wireFrame{Op: "open", Peer: peer}); err != nil {
		b.convMu.Unlock()
		return nil, err
	}
	s := &bridgeSession{b: b}
	b.mu.Lock()
	b.msgCh = make(chan *wireMessage, bridgeEventBuffer)
	b.editCh = make(chan *wireMessage, bridgeEventBuffer)
	b.mu.Unlock()
	return s, nil
}

type bridgeSession struct {
	b    *Bridge
	once sync.Once
}

func (s *bridgeSession) Send(ctx context.Context, text string) error {
	_, err := s.b.rpc(ctx, wireFrame{Op: "send", Text: text})
	return err
}

func (s *bridgeSession) AwaitResponse(ctx context.Context, timeout time.Duration) (Message, error) {
	return s.await(ctx, timeout, true)
}

func (s *bridgeSession) AwaitEdit(ctx context.Context, timeout time.Duration) (Message, error) {
	return s.await(ctx, timeout, false)
}

func (s *bridgeSession) await(ctx context.Context, timeout time.Duration, response bool) (Message, error) {
	s.b.mu.Lock()
	ch := s.b.msgCh
	if !response {
		ch = s.b.editCh
	}
	s.b.mu.Unlock()
	if ch == nil {
		return nil, errors.New("session closed")
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case m := <-ch:
		return newBridgeMessage(s.b, m), nil
	case <-t.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.b.closed:
		return nil, errors.New("bridge closed")
	}
}

func (s *bridgeSession) Forward(ctx context.Context, m Message, chatID int64) error {
	bm, ok := m.(*bridgeMessage)
	if !ok {
		return errors.New("forward: message did not come from this bridge")
	}
	_, err := s.b.rpc(ctx, wireFrame{Op: "forward", Msg: bm.id, Chat: chatID})
	return err
}

func (s *bridgeSession) Close() error {
	var err error
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err = s.b.rpc(ctx, wireFrame{Op: "close"})
		s.b.mu.Lock()
		s.b.msgCh = nil
		s.b.editCh = nil
		s.b.mu.Unlock()
		s.b.convMu.Unlock()
	})
	return err
}

type bridgeMessage struct {
	id    int64
	text  string
	media bool
	rows  [][]Control
}

func newBridgeMessage(b *Bridge, w *wireMessage) *bridgeMessage {
	m := &bridgeMessage{id: w.ID, text: w.Text, media: w.Media}
	flat := 0
	for _, row := range w.Buttons {
		var r []Control
		for _, text := range row {
			r = append(r, &bridgeControl{b: b, msgID: w.ID, index: flat, text: text})
			flat++
		}
		m.rows = append(m.rows, r)
	}
	return m
}

func (m *bridgeMessage) Text() string          { return m.text }
func (m *bridgeMessage) Controls() [][]Control { return m.rows }
func (m *bridgeMessage) HasMedia() bool        { return m.media }

type bridgeControl struct {
	b     *Bridge
	msgID int64
	index int // flattened, row-major; what the sidecar clicks by
	text  string
}

func (c *bridgeControl) Text() string { return c.text }

func (c *bridgeControl) Click(ctx context.Context) error {
	_, err := c.b.rpc(ctx, wireFrame{Op: "click", Msg: c.msgID, Index: c.index})
	return err
}
