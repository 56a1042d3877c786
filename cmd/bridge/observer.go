package bridge

import (
	"context"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Completion describes one operation after the worker is finished with it,
// whether it executed or was skipped as abandoned. Outcome is "ok", a
// stable error code, or "abandoned" for operations skipped in the queue.
type Completion struct {
	OpID     string
	Kind     Kind
	Query    string
	Account  string
	Outcome  string
	Err      error
	Enqueued time.Time
	Started  time.Time
	Finished time.Time
}

// Wait is how long the operation sat in the queue.
func (c Completion) Wait() time.Duration { return c.Started.Sub(c.Enqueued) }

// Duration is how long execution took.
func (c Completion) Duration() time.Duration { return c.Finished.Sub(c.Started) }

// Observer receives worker-side facts: operation completions and device
// session transitions. Implementations must be fast and must never fail
// the operation.
type Observer interface {
	OperationDone(ctx context.Context, c Completion)
	DeviceState(ctx context.Context, state yubikey.State, info yubikey.Info)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OperationDone(context.Context, Completion) {}

func (NopObserver) DeviceState(context.Context, yubikey.State, yubikey.Info) {}

// MultiObserver fans out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OperationDone(ctx context.Context, c Completion) {
	for _, o := range m {
		if o != nil {
			o.OperationDone(ctx, c)
		}
	}
}

func (m MultiObserver) DeviceState(ctx context.Context, state yubikey.State, info yubikey.Info) {
	for _, o := range m {
		if o != nil {
			o.DeviceState(ctx, state, info)
		}
	}
}
