// Package syncx holds the pagination cursor shared by collection listings.
package syncx

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is the position after the last item of a page.
// Format: base64("<created_at_ms>|<uuid>"). Items are listed in
// (created_at_ms, id) order so ties on the timestamp stay deterministic.
type Cursor struct {
	Ms int64
	ID uuid.UUID
}

// EncodeCursor returns "" for the zero cursor
func EncodeCursor(c Cursor) string {
	if c.IsZero() {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Ms, c.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor string; false for empty or malformed input
func DecodeCursor(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	ms, rest, ok := strings.Cut(string(b), "|")
	if !ok {
		return Cursor{}, false
	}

	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{Ms: n, ID: id}, true
}

// IsZero reports whether c is the start of the listing
func (c Cursor) IsZero() bool {
	return c.Ms == 0 && c.ID == uuid.Nil
}

// At returns the cursor pointing at an item created at t with the given id
func At(t time.Time, id uuid.UUID) Cursor {
	return Cursor{Ms: t.UnixMilli(), ID: id}
}

// After reports whether the position (ms, id) sorts strictly after c
func (c Cursor) After(ms int64, id uuid.UUID) bool {
	if ms != c.Ms {
		return ms > c.Ms
	}
	return strings.Compare(id.String(), c.ID.String()) > 0
}
