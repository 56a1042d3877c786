package yubikey

import (
	"context"
	"time"
)

// State is the device session lifecycle. Disconnected is not terminal; the
// next operation probes again.
type State string

const (
	StateUnknown      State = "unknown"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Info describes the device a successful probe found, including the
// credential enumeration the probe cached.
type Info struct {
	Reader        string
	Version       string
	DeviceID      string
	Accounts      []string
	RequiresTouch map[string]bool
}

// Code is one generated one-time code.
type Code struct {
	Value     string
	Digits    int
	ExpiresAt time.Time
}

// Handle is a logical session on one hardware token.
//
// Implementations are not safe for concurrent use; the request arbiter is
// the only caller and serializes access. Context cancellation is honored
// between wire exchanges, never mid-exchange.
type Handle interface {
	// Probe (re)establishes the device connection and returns what it
	// found. A failed probe leaves the handle safe to probe again.
	Probe(ctx context.Context) (Info, error)

	// ListAccounts enumerates credential names in device order.
	ListAccounts(ctx context.Context) ([]string, error)

	// ComputeCode generates a code for one stored credential name. For
	// touch-protected credentials this blocks until the key is touched
	// or the device gives up.
	ComputeCode(ctx context.Context, name string) (Code, error)

	Close() error
}
