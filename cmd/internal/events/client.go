package events

import "sync"

// Client represents one connected subscriber.
//
// Design notes:
//   - Send is intentionally NOT closed by the hub to avoid panics from
//     concurrent broadcasters.
//   - done signals the connection goroutines to stop.
//   - Close is idempotent.
type Client struct {
	ID   string
	Send chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 32
	}
	return &Client{
		ID:   id,
		Send: make(chan Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent). It does NOT
// close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
