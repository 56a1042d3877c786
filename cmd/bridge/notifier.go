package bridge

import (
	"context"
	"time"
)

// TouchEvent announces that a code generation is about to reach hardware
// and may block on a physical touch.
type TouchEvent struct {
	OpID    string
	Account string
	At      time.Time
}

// Notifier receives exactly one TouchEvent per code generation that
// reaches the hardware stage. Implementations must not block the worker
// for long and must never fail the operation; fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, ev TouchEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, TouchEvent) {}

// MultiNotifier fans one event out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev TouchEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
