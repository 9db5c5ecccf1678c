package token

import (
	"errors"
	"strconv"
	"strings"
)

// A selection token is pure replay coordinates: "get:<page>:<index>". It
// deliberately carries nothing else — no title, no checksum — because the
// aggregated result set is never persisted; the only reconstructible truth
// is "replay the same query and walk back to this page and index".

const prefix = "get"

// MaxLen is the control payload ceiling (inline callback data is 64 bytes).
const MaxLen = 64

var ErrInvalid = errors.New("malformed selection token")

func Encode(page, index int) string {
	return prefix + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(index)
}

// Decode parses a token back into (page, index). Any shape mismatch —
// wrong prefix, wrong field count, non-integer fields — is ErrInvalid;
// callers treat that as an ignorable stray action, never a crash.
func Decode(s string) (page, index int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != prefix {
		return 0, 0, ErrInvalid
	}
	page, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrInvalid
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, ErrInvalid
	}
	return page, index, nil
}

// Recognized reports whether s carries our prefix at all. Foreign-prefix
// callbacks are acked silently instead of being reported as invalid.
func Recognized(s string) bool {
	return strings.HasPrefix(s, prefix+":")
}
