package events

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types carried on the stream.
const (
	TypeDeviceConnected    = "device.connected"
	TypeDeviceDisconnected = "device.disconnected"
	TypeTouchRequired      = "touch.required"
	TypeOperationCompleted = "operation.completed"
)

// Envelope is one event frame. Only the fields relevant to the event type
// are populated; the rest are omitted from the JSON encoding.
type Envelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	// device.* fields.
	Reader  string `json:"reader,omitempty"`
	Version string `json:"version,omitempty"`

	// touch.required and operation.completed fields.
	OpID    string `json:"op_id,omitempty"`
	Account string `json:"account,omitempty"`

	// operation.completed fields.
	Kind       string `json:"kind,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func newEnvelope(typ string, at time.Time) Envelope {
	return Envelope{
		ID:   ulid.Make().String(),
		Type: typ,
		At:   at.UTC(),
	}
}
