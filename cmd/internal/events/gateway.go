package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	wsDefaultSendQueue = 32
	wsDefaultHeartbeat = 30 * time.Second

	wsWriteTimeout     = 5 * time.Second
	wsHeartbeatTimeout = 5 * time.Second
	wsCloseGrace       = 1 * time.Second
	wsMaxPingFailures  = 3

	// Subscribers have nothing to say; inbound frames are drained and
	// dropped, so the read limit only needs to fit a close frame.
	wsReadLimit = 4 << 10
)

// Gateway upgrades HTTP requests into one-way event stream subscriptions.
type Gateway struct {
	log *slog.Logger
	hub *Hub

	sendQueue int
	heartbeat time.Duration
}

// NewGateway constructs a Gateway over hub. sendQueue and heartbeat fall
// back to defaults when non-positive.
func NewGateway(log *slog.Logger, hub *Hub, sendQueue int, heartbeat time.Duration) *Gateway {
	if sendQueue <= 0 {
		sendQueue = wsDefaultSendQueue
	}
	if heartbeat <= 0 {
		heartbeat = wsDefaultHeartbeat
	}
	return &Gateway{log: log, hub: hub, sendQueue: sendQueue, heartbeat: heartbeat}
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and streams events until the peer leaves,
// the heartbeat fails, or the server shuts down.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Info("events.ws.accept.fail", "err", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	client := NewClient(ulid.Make().String(), g.sendQueue)
	g.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Unregister(client.ID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.log.Info("events.ws.open", "client_id", client.ID, "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env); err != nil {
					g.log.Debug("events.ws.write.fail", "client_id", client.ID, "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeat)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, wsHeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// The stream is one-way; reading only serves to notice the peer closing
	// and to keep control frames flowing.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}

	g.log.Info("events.ws.close", "client_id", client.ID)
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env Envelope) error {
	ctx, cancel := context.WithTimeout(parent, wsWriteTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
