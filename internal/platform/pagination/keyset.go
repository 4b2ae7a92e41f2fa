package pagination

import (
	"fmt"
	"strings"
	"time"
)

// TimeKey is a keyset position for listings ordered by a timestamp and then an id, both
// descending.
type TimeKey struct {
	At time.Time
	ID string
}

// Before reports whether an entry at (at, id) sorts after the key in descending order, that
// is, whether it belongs on the next page.
func (k TimeKey) Before(at time.Time, id string) bool {
	if at.Equal(k.At) {
		return id < k.ID
	}
	return at.Before(k.At)
}

// EncodeTimeKey produces the page token for key.
func EncodeTimeKey(key TimeKey) (string, error) {
	return EncodeToken(Cursor{StartAfter: []any{key.At.UTC().Format(time.RFC3339Nano), key.ID}})
}

// DecodeTimeKey parses a token produced by EncodeTimeKey. An empty token yields ok=false.
func DecodeTimeKey(token string) (TimeKey, bool, error) {
	cursor, err := DecodeToken(token)
	if err != nil {
		return TimeKey{}, false, err
	}
	if len(cursor.StartAfter) == 0 {
		return TimeKey{}, false, nil
	}
	if len(cursor.StartAfter) != 2 {
		return TimeKey{}, false, fmt.Errorf("%w: unexpected cursor shape", ErrInvalidPageToken)
	}
	rawAt, ok := cursor.StartAfter[0].(string)
	if !ok {
		return TimeKey{}, false, fmt.Errorf("%w: timestamp", ErrInvalidPageToken)
	}
	at, err := time.Parse(time.RFC3339Nano, rawAt)
	if err != nil {
		return TimeKey{}, false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return TimeKey{}, false, fmt.Errorf("%w: id", ErrInvalidPageToken)
	}
	return TimeKey{At: at, ID: id}, true, nil
}
