package bridge

import (
	"crypto/rand"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Kind names the two operations the arbiter executes.
type Kind string

const (
	KindGetCode      Kind = "get_code"
	KindListAccounts Kind = "list_accounts"
)

// CodeResult is a successful code generation.
type CodeResult struct {
	OpID    string
	Account string
	Code    yubikey.Code
}

// operation is one queued unit of work. The done channel is buffered with
// capacity one: the worker is the only writer and writes at most once, the
// submitter is the only reader.
type operation struct {
	id       string
	kind     Kind
	query    string
	enqueued time.Time
	deadline time.Time
	done     chan result

	// abandoned flips when the submitter stops waiting (deadline or
	// context). The worker checks it before execution and before
	// delivery; it never interrupts an execution already underway.
	abandoned atomic.Bool
}

// result is what the worker delivers into operation.done.
type result struct {
	account  string
	code     yubikey.Code
	accounts []string
	err      error
}

// newOpID returns a ULID for correlating an operation across logs, events
// and the audit trail.
func newOpID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
