package model

import "time"

// SessionState is the handshake state of a desk pairing session.
type SessionState string

const (
	SessionStateIdle        SessionState = "idle"
	SessionStateAwaitingAck SessionState = "awaiting_ack"
	SessionStatePaused      SessionState = "paused"
)

// Role identifies which side of the pairing a connection is.
type Role string

const (
	RoleDesk    Role = "desk"
	RoleScanner Role = "scanner"
)

// Session binds one desk to its scanners for the lifetime of the TTL.
// The secret is only ever shown to the desk that created the session.
type Session struct {
	ID        string       `json:"deskId"`
	Secret    string       `json:"-"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ScanEvent is the in-flight scan held while a session awaits the desk ack.
// It is transient and never persisted.
type ScanEvent struct {
	UniqueID   string    `json:"uniqueId"`
	ReceivedAt time.Time `json:"receivedAt"`
}
