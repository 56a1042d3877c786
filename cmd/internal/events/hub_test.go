package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	h.Register(a)
	h.Register(b)

	env := newEnvelope(TypeTouchRequired, time.Now())
	h.Broadcast(env)

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.Send:
			if got.ID != env.ID || got.Type != TypeTouchRequired {
				t.Fatalf("client %s got %+v want id=%s type=%s", c.ID, got, env.ID, TypeTouchRequired)
			}
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestHubDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("slow", 1)
	h.Register(c)

	h.Broadcast(newEnvelope(TypeOperationCompleted, time.Now()))
	h.Broadcast(newEnvelope(TypeOperationCompleted, time.Now()))

	if got := h.Dropped(); got != 1 {
		t.Fatalf("Dropped()=%d want 1", got)
	}
	if got := len(c.Send); got != 1 {
		t.Fatalf("queued=%d want 1", got)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("gone", 4)
	h.Register(c)
	h.Unregister(c.ID)

	if got := h.Clients(); got != 0 {
		t.Fatalf("Clients()=%d want 0", got)
	}

	h.Broadcast(newEnvelope(TypeDeviceConnected, time.Now()))
	if got := len(c.Send); got != 0 {
		t.Fatalf("unregistered client received %d events", got)
	}
}

func TestPublisherShapesEnvelopes(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("sub", 8)
	h.Register(c)
	p := NewPublisher(h)

	ctx := context.Background()

	p.Notify(ctx, bridge.TouchEvent{OpID: "op-1", Account: "GitHub", At: time.Now()})
	touch := <-c.Send
	if touch.Type != TypeTouchRequired || touch.OpID != "op-1" || touch.Account != "GitHub" {
		t.Fatalf("touch envelope=%+v", touch)
	}
	if touch.ID == "" {
		t.Fatalf("missing envelope id")
	}

	start := time.Now()
	p.OperationDone(ctx, bridge.Completion{
		OpID:     "op-2",
		Kind:     bridge.KindGetCode,
		Account:  "GitHub",
		Outcome:  "ok",
		Enqueued: start,
		Started:  start,
		Finished: start.Add(250 * time.Millisecond),
	})
	done := <-c.Send
	if done.Type != TypeOperationCompleted || done.Outcome != "ok" || done.Kind != "get_code" {
		t.Fatalf("completion envelope=%+v", done)
	}
	if done.DurationMS != 250 {
		t.Fatalf("DurationMS=%d want 250", done.DurationMS)
	}

	p.OperationDone(ctx, bridge.Completion{
		OpID: "op-3", Kind: bridge.KindGetCode, Account: "GitHub",
		Outcome: "account_not_found", Finished: time.Now(),
	})
	failed := <-c.Send
	if failed.Account != "" {
		t.Fatalf("failed completion leaked account %q", failed.Account)
	}

	p.DeviceState(ctx, yubikey.StateConnected, yubikey.Info{Reader: "Yubico YubiKey OTP+FIDO+CCID", Version: "5.4.3"})
	dev := <-c.Send
	if dev.Type != TypeDeviceConnected || dev.Reader == "" || dev.Version != "5.4.3" {
		t.Fatalf("device envelope=%+v", dev)
	}

	p.DeviceState(ctx, yubikey.StateDisconnected, yubikey.Info{})
	gone := <-c.Send
	if gone.Type != TypeDeviceDisconnected {
		t.Fatalf("disconnect envelope=%+v", gone)
	}
}
