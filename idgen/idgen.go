// Package idgen generates tabkeeper identifiers.
//
// Session ids are category-prefixed unix-millisecond timestamps
// ("session_1712345678901"), the serialized form every snapshot carries.
// Request ids are UUIDv7 (RFC 9562), time-sortable.
package idgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session category prefixes. A snapshot id is unique within its category;
// the prefix keeps the three id spaces disjoint in practice.
const (
	PrefixManual = "session"
	PrefixAuto   = "auto"
	PrefixClosed = "closed"
)

// SessionID builds a snapshot id for the given category prefix at time t.
func SessionID(prefix string, t time.Time) string {
	return prefix + "_" + strconv.FormatInt(t.UnixMilli(), 10)
}

// CategoryOf reports the prefix of a session id, or "" when it has none.
func CategoryOf(id string) string {
	i := strings.IndexByte(id, '_')
	if i <= 0 {
		return ""
	}
	switch p := id[:i]; p {
	case PrefixManual, PrefixAuto, PrefixClosed:
		return p
	}
	return ""
}

// RequestID produces a UUIDv7 for correlating one dispatched message
// through logs.
func RequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}
