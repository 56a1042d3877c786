package events

import (
	"context"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Publisher translates arbiter-side facts into stream envelopes. It plugs
// into the arbiter both as a touch notifier and as an observer.
type Publisher struct {
	hub *Hub
}

// NewPublisher constructs a Publisher over hub.
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// Notify publishes a touch.required event.
func (p *Publisher) Notify(_ context.Context, ev bridge.TouchEvent) {
	env := newEnvelope(TypeTouchRequired, ev.At)
	env.OpID = ev.OpID
	env.Account = ev.Account
	p.hub.Broadcast(env)
}

// OperationDone publishes an operation.completed event.
func (p *Publisher) OperationDone(_ context.Context, c bridge.Completion) {
	env := newEnvelope(TypeOperationCompleted, c.Finished)
	env.OpID = c.OpID
	env.Kind = string(c.Kind)
	env.Outcome = c.Outcome
	env.DurationMS = c.Duration().Milliseconds()
	if c.Outcome == "ok" {
		env.Account = c.Account
	}
	p.hub.Broadcast(env)
}

// DeviceState publishes device.connected / device.disconnected transitions.
func (p *Publisher) DeviceState(_ context.Context, state yubikey.State, info yubikey.Info) {
	typ := TypeDeviceDisconnected
	if state == yubikey.StateConnected {
		typ = TypeDeviceConnected
	}
	env := newEnvelope(typ, time.Now())
	env.Reader = info.Reader
	env.Version = info.Version
	p.hub.Broadcast(env)
}
