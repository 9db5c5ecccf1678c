package logx

import (
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Combined filter + de-dup writer for the stdlib logger.
//   - allowPattern (optional): if set, only lines matching it pass
//   - denyPattern  (optional): lines matching it are dropped
//   - window: identical lines seen within this window are dropped
//
// The walker and bridge can emit the same timeout line many times in a
// burst; the window keeps the log readable without losing the first hit.
type Writer struct {
	dst         io.Writer
	allow, deny *regexp.Regexp
	window      time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func New(dst io.Writer, window time.Duration, allowPattern, denyPattern string) *Writer {
	w := &Writer{dst: dst, window: window, lastSeen: make(map[string]time.Time)}
	if p := strings.TrimSpace(allowPattern); p != "" {
		if re, err := regexp.Compile(p); err == nil {
			w.allow = re
		} // fail-soft: a bad pattern just disables the filter
	}
	if p := strings.TrimSpace(denyPattern); p != "" {
		if re, err := regexp.Compile(p); err == nil {
			w.deny = re
		}
	}
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	line := string(p)

	if w.deny != nil && w.deny.MatchString(line) {
		return len(p), nil
	}
	if w.allow != nil && !w.allow.MatchString(line) {
		return len(p), nil
	}

	key := strings.TrimRight(line, "\r\n")
	now := time.Now()

	w.mu.Lock()
	if last, ok := w.lastSeen[key]; ok && now.Sub(last) < w.window {
		w.mu.Unlock()
		return len(p), nil
	}
	if len(w.lastSeen) > 4096 {
		w.prune(now)
	}
	w.lastSeen[key] = now
	w.mu.Unlock()

	return w.dst.Write(p)
}

// prune drops entries older than the window; called with mu held.
func (w *Writer) prune(now time.Time) {
	for k, t := range w.lastSeen {
		if now.Sub(t) >= w.window {
			delete(w.lastSeen, k)
		}
	}
}
