package menu

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// Tracker remembers menus that are live in a chat so a later callback can
// recover the query text that produced them, and so abandoned menus get
// cleaned up. Only (chat, message, query) is kept — never the aggregated
// result set; a selection is replayed from the token coordinates alone.

type Menu struct {
	ChatID    int64
	MessageID int
	Query     string // original search text, needed to replay
	RequestID int    // the user message the menu replies to
}

type Tracker struct {
	mu     sync.Mutex
	menus  map[string]*tracked
	ttl    time.Duration
	expire func(Menu) // delete the rendered menu; provided by main
	stopCh chan struct{}
}

type tracked struct {
	menu   Menu
	sentAt time.Time
}

func menuKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + "|" + strconv.Itoa(messageID)
}

// NewTracker starts a reaper that drops menus older than ttl, calling
// expire for each so the stale buttons disappear from the chat.
func NewTracker(ttl, sweepEvery time.Duration, expire func(Menu)) *Tracker {
	t := &Tracker{
		menus:  make(map[string]*tracked),
		ttl:    ttl,
		expire: expire,
		stopCh: make(chan struct{}),
	}
	go t.reaper(sweepEvery)
	return t
}

func (t *Tracker) Shutdown() { close(t.stopCh) }

func (t *Tracker) Remember(m Menu) {
	t.mu.Lock()
	t.menus[menuKey(m.ChatID, m.MessageID)] = &tracked{menu: m, sentAt: time.Now()}
	t.mu.Unlock()
}

func (t *Tracker) Lookup(chatID int64, messageID int) (Menu, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.menus[menuKey(chatID, messageID)]
	if !ok {
		return Menu{}, false
	}
	return e.menu, true
}

func (t *Tracker) Forget(chatID int64, messageID int) {
	t.mu.Lock()
	delete(t.menus, menuKey(chatID, messageID))
	t.mu.Unlock()
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.menus)
}

func (t *Tracker) reaper(every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			for _, m := range t.sweep(time.Now()) {
				log.Printf("[menu] expiring menu %d in chat %d (%q)", m.MessageID, m.ChatID, m.Query)
				if t.expire != nil {
					t.expire(m)
				}
			}
		case <-t.stopCh:
			return
		}
	}
}

// sweep removes expired menus and returns them; expire callbacks run
// outside the lock.
func (t *Tracker) sweep(now time.Time) []Menu {
	var out []Menu
	t.mu.Lock()
	for k, e := range t.menus {
		if now.Sub(e.sentAt) > t.ttl {
			out = append(out, e.menu)
			delete(t.menus, k)
		}
	}
	t.mu.Unlock()
	return out
}
