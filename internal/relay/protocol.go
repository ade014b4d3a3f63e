package relay

import "encoding/json"

// Envelope is the frame exchanged on the realtime channel, both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client to server
const (
	EventJoinDesk    = "join-desk"
	EventJoinScanner = "join-scanner"
	EventScan        = "scan-participant"
	EventAckScan     = "ack-scan"
	EventResume      = "resume"
)

// Server to client
const (
	EventDeskJoined       = "desk-joined"
	EventScannerJoined    = "scanner-joined"
	EventScanReceived     = "scan-received"
	EventScanAcknowledged = "scan-acknowledged"
	EventResumeScanning   = "resume-scanning"
	EventDeskDisconnected = "desk-disconnected"
	EventError            = "error"
)

type JoinDeskPayload struct {
	DeskID string `json:"deskId"`
	Secret string `json:"secret"`
}

type JoinScannerPayload struct {
	DeskID    string `json:"deskId"`
	Signature string `json:"signature"`
}

type ScanPayload struct {
	UniqueID string `json:"uniqueId"`
}

// JoinedPayload carries the session's current handshake state so a
// reconnecting desk or a late scanner can render the right UI.
type JoinedPayload struct {
	State string `json:"state"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals data into an Envelope. Payload types here cannot
// fail to marshal, so errors are swallowed.
func NewEnvelope(eventType string, data any) Envelope {
	if data == nil {
		return Envelope{Type: eventType}
	}
	raw, _ := json.Marshal(data)
	return Envelope{Type: eventType, Data: raw}
}

func ErrorEnvelope(message string) Envelope {
	return NewEnvelope(EventError, ErrorPayload{Message: message})
}
