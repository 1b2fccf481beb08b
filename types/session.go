package types

import "time"

// SessionMeta identifies one receiver session (one listen or replay invocation).
// All log entries, storage records and notifications carry these fields.
type SessionMeta struct {
	// SessionID is a unique identifier for the session.
	SessionID string
	// Source names the origin of the datagrams (e.g. a camera name).
	Source string
	// Input describes where datagrams are read from (udp address or file).
	Input string
	// StartedAt is the session start time.
	StartedAt time.Time
}
