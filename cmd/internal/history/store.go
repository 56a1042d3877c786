// Package history keeps a best-effort audit trail of arbiter operations.
// Recording never fails a caller's operation; a store that cannot write
// logs and moves on.
package history

import (
	"context"
	"time"
)

// Entry is one completed operation. ID is the operation's ULID, shared with
// logs and the event stream for correlation.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	Account    string    `json:"account,omitempty"`
	WaitMS     int64     `json:"wait_ms"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Store persists entries and serves them back newest-first.
type Store interface {
	// Record appends one entry. Best-effort; callers log failures.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	Close() error
}
