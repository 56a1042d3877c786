package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Config bounds the arbiter's queue and per-kind deadlines.
type Config struct {
	// QueueDepth is the FIFO capacity; submissions beyond it fail fast.
	QueueDepth int

	// CodeTimeout is the absolute deadline for a code generation. It must
	// exceed the device's own touch window or callers give up first.
	CodeTimeout time.Duration

	// ListTimeout is the absolute deadline for an enumeration.
	ListTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		QueueDepth:  16,
		CodeTimeout: 30 * time.Second,
		ListTimeout: 5 * time.Second,
	}
}

// Status is a point-in-time snapshot of the device session.
type Status struct {
	State        yubikey.State `json:"state"`
	Reader       string        `json:"reader,omitempty"`
	Version      string        `json:"version,omitempty"`
	DeviceID     string        `json:"device_id,omitempty"`
	AccountCount int           `json:"account_count"`
	QueueDepth   int           `json:"queue_depth"`
	LastSeen     time.Time     `json:"last_seen,omitzero"`
	LastError    string        `json:"last_error,omitempty"`
}

// Arbiter owns the device Handle. One worker goroutine executes queued
// operations strictly in order; nothing else touches the handle.
type Arbiter struct {
	log      *slog.Logger
	cfg      Config
	handle   yubikey.Handle
	notifier Notifier
	observer Observer

	ops    chan *operation
	closed atomic.Bool

	mu       sync.RWMutex
	state    yubikey.State
	info     yubikey.Info
	lastSeen time.Time
	lastErr  error
}

// New constructs an Arbiter. The worker does not start until Run is
// called; operations submitted before that just queue up. notifier and
// observer may be nil.
func New(cfg Config, log *slog.Logger, handle yubikey.Handle, notifier Notifier, observer Observer) *Arbiter {
	def := DefaultConfig()
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.CodeTimeout <= 0 {
		cfg.CodeTimeout = def.CodeTimeout
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = def.ListTimeout
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Arbiter{
		log:      log,
		cfg:      cfg,
		handle:   handle,
		notifier: notifier,
		observer: observer,
		ops:      make(chan *operation, cfg.QueueDepth),
		state:    yubikey.StateUnknown,
	}
}

// Run executes operations until ctx is canceled, then fails whatever is
// still queued and closes the handle. It is the only goroutine that may
// touch the handle.
func (a *Arbiter) Run(ctx context.Context) error {
	a.log.Info("bridge.run.start", "queue_depth", a.cfg.QueueDepth,
		"code_timeout", a.cfg.CodeTimeout, "list_timeout", a.cfg.ListTimeout)

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case op := <-a.ops:
			a.execute(ctx, op)
		}
	}
}

// GetCode resolves query against the cached enumeration and generates a
// code for the matched account.
func (a *Arbiter) GetCode(ctx context.Context, query string) (CodeResult, error) {
	op, err := a.submit(ctx, KindGetCode, query)
	if err != nil {
		return CodeResult{}, err
	}
	res, err := a.wait(ctx, op)
	if err != nil {
		return CodeResult{}, err
	}
	return CodeResult{OpID: op.id, Account: res.account, Code: res.code}, nil
}

// ListAccounts enumerates account names fresh from the device.
func (a *Arbiter) ListAccounts(ctx context.Context) ([]string, error) {
	op, err := a.submit(ctx, KindListAccounts, "")
	if err != nil {
		return nil, err
	}
	res, err := a.wait(ctx, op)
	if err != nil {
		return nil, err
	}
	return res.accounts, nil
}

// Status reports the current session snapshot.
func (a *Arbiter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Status{
		State:        a.state,
		AccountCount: len(a.info.Accounts),
		QueueDepth:   len(a.ops),
		LastSeen:     a.lastSeen,
	}
	if a.state == yubikey.StateConnected {
		s.Reader = a.info.Reader
		s.Version = a.info.Version
		s.DeviceID = a.info.DeviceID
	}
	if a.lastErr != nil {
		s.LastError = yubikey.ErrorCode(a.lastErr)
	}
	return s
}

// submit builds and enqueues an operation without waiting on it.
func (a *Arbiter) submit(ctx context.Context, kind Kind, query string) (*operation, error) {
	if a.closed.Load() {
		return nil, yubikey.OpError{Op: "bridge.submit", Kind: yubikey.ErrInternalFailure, Msg: "shutting down"}
	}
	now := time.Now()
	id, err := newOpID(now)
	if err != nil {
		return nil, yubikey.OpError{Op: "bridge.submit", Kind: yubikey.ErrInternalFailure, Msg: err.Error()}
	}

	op := &operation{
		id:       id,
		kind:     kind,
		query:    query,
		enqueued: now,
		deadline: now.Add(a.timeout(kind)),
		done:     make(chan result, 1),
	}

	select {
	case a.ops <- op:
	default:
		a.log.Warn("bridge.queue.full", "kind", kind, "capacity", cap(a.ops))
		return nil, yubikey.OpError{Op: "bridge.submit", Kind: yubikey.ErrInternalFailure, Msg: "queue full"}
	}

	a.log.Debug("bridge.op.enqueue", "op_id", op.id, "kind", kind, "queue_depth", len(a.ops))
	return op, nil
}

// wait blocks until the worker delivers, the caller's context ends, or
// the operation's deadline passes. The two failure paths abandon the
// operation; the worker is never interrupted.
func (a *Arbiter) wait(ctx context.Context, op *operation) (result, error) {
	timer := time.NewTimer(time.Until(op.deadline))
	defer timer.Stop()

	select {
	case res := <-op.done:
		return res, res.err
	case <-ctx.Done():
		op.abandoned.Store(true)
		a.log.Debug("bridge.op.abandon", "op_id", op.id, "reason", "context", "err", ctx.Err())
		return result{}, ctx.Err()
	case <-timer.C:
		op.abandoned.Store(true)
		a.log.Info("bridge.op.abandon", "op_id", op.id, "kind", op.kind, "reason", "deadline")
		return result{}, deadlineError(op.kind)
	}
}

func (a *Arbiter) timeout(kind Kind) time.Duration {
	if kind == KindListAccounts {
		return a.cfg.ListTimeout
	}
	return a.cfg.CodeTimeout
}

// deadlineError maps an expired deadline onto the taxonomy: a stuck code
// generation is indistinguishable from an unconfirmed touch, an expired
// enumeration is not a touch problem.
func deadlineError(kind Kind) error {
	if kind == KindGetCode {
		return yubikey.OpError{Op: "bridge.getcode", Kind: yubikey.ErrTouchTimeout, Msg: "deadline elapsed"}
	}
	return yubikey.OpError{Op: "bridge.list", Kind: yubikey.ErrInternalFailure, Msg: "deadline elapsed"}
}

// execute runs one operation on the worker goroutine.
func (a *Arbiter) execute(ctx context.Context, op *operation) {
	started := time.Now()

	if op.abandoned.Load() {
		a.log.Debug("bridge.op.skip", "op_id", op.id, "kind", op.kind)
		a.observe(ctx, op, "", "abandoned", nil, started)
		return
	}

	if a.stale() {
		info, err := a.handle.Probe(ctx)
		if err != nil {
			a.noteAbsent(ctx, err)
			// A failed probe fails the operation as absent regardless
			// of the probe error's own classification.
			res := result{err: yubikey.OpError{Op: "bridge.probe", Kind: yubikey.ErrDeviceAbsent, Msg: err.Error()}}
			a.finish(ctx, op, "", res, started)
			return
		}
		a.noteConnected(ctx, info)
	}

	switch op.kind {
	case KindGetCode:
		a.executeGetCode(ctx, op, started)
	case KindListAccounts:
		a.executeList(ctx, op, started)
	}
}

func (a *Arbiter) executeGetCode(ctx context.Context, op *operation, started time.Time) {
	account, err := yubikey.Resolve(op.query, a.cachedAccounts())
	if err != nil {
		// Resolution failures never reach hardware and never notify.
		a.finish(ctx, op, "", result{err: err}, started)
		return
	}

	a.notifier.Notify(ctx, TouchEvent{OpID: op.id, Account: account, At: time.Now()})

	code, err := a.handle.ComputeCode(ctx, account)
	if err != nil {
		a.noteFailure(ctx, err)
		a.finish(ctx, op, account, result{err: err}, started)
		return
	}
	a.noteSuccess()
	a.finish(ctx, op, account, result{account: account, code: code}, started)
}

func (a *Arbiter) executeList(ctx context.Context, op *operation, started time.Time) {
	names, err := a.handle.ListAccounts(ctx)
	if err != nil {
		a.noteFailure(ctx, err)
		a.finish(ctx, op, "", result{err: err}, started)
		return
	}

	a.mu.Lock()
	a.info.Accounts = names
	a.mu.Unlock()

	a.noteSuccess()
	a.finish(ctx, op, "", result{accounts: names}, started)
}

// finish delivers the result (unless abandoned) and reports the completion.
func (a *Arbiter) finish(ctx context.Context, op *operation, account string, res result, started time.Time) {
	outcome := "ok"
	if res.err != nil {
		outcome = yubikey.ErrorCode(res.err)
	}

	if op.abandoned.Load() {
		a.log.Debug("bridge.op.discard_late", "op_id", op.id, "kind", op.kind, "outcome", outcome)
	} else {
		select {
		case op.done <- res:
		default:
			// Worker writes at most once; a full buffer cannot happen.
		}
	}

	if res.err != nil {
		a.log.Info("bridge.op.fail", "op_id", op.id, "kind", op.kind, "code", outcome,
			"dur_ms", time.Since(started).Milliseconds())
	} else {
		a.log.Info("bridge.op.ok", "op_id", op.id, "kind", op.kind, "account", account,
			"dur_ms", time.Since(started).Milliseconds())
	}
	a.observe(ctx, op, account, outcome, res.err, started)
}

func (a *Arbiter) observe(ctx context.Context, op *operation, account, outcome string, err error, started time.Time) {
	a.observer.OperationDone(ctx, Completion{
		OpID:     op.id,
		Kind:     op.kind,
		Query:    op.query,
		Account:  account,
		Outcome:  outcome,
		Err:      err,
		Enqueued: op.enqueued,
		Started:  started,
		Finished: time.Now(),
	})
}

// stale reports whether the next operation must probe first. Connected
// sessions stay trusted across non-absent failures; any absence flips the
// state and forces a probe.
func (a *Arbiter) stale() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state != yubikey.StateConnected
}

func (a *Arbiter) cachedAccounts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info.Accounts
}

func (a *Arbiter) noteConnected(ctx context.Context, info yubikey.Info) {
	a.mu.Lock()
	prev := a.state
	a.state = yubikey.StateConnected
	a.info = info
	a.lastSeen = time.Now()
	a.lastErr = nil
	a.mu.Unlock()

	if prev != yubikey.StateConnected {
		a.log.Info("bridge.device.connected", "reader", info.Reader,
			"version", info.Version, "accounts", len(info.Accounts))
		a.observer.DeviceState(ctx, yubikey.StateConnected, info)
	}
}

func (a *Arbiter) noteAbsent(ctx context.Context, err error) {
	a.mu.Lock()
	prev := a.state
	a.state = yubikey.StateDisconnected
	a.lastErr = err
	a.mu.Unlock()

	if prev != yubikey.StateDisconnected {
		a.log.Warn("bridge.device.absent", "err", err)
		a.observer.DeviceState(ctx, yubikey.StateDisconnected, yubikey.Info{})
	}
}

// noteFailure records an operation failure, demoting the session only when
// the device went away.
func (a *Arbiter) noteFailure(ctx context.Context, err error) {
	if yubikey.IsDeviceAbsent(err) {
		a.noteAbsent(ctx, err)
		return
	}
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}

func (a *Arbiter) noteSuccess() {
	a.mu.Lock()
	a.lastSeen = time.Now()
	a.lastErr = nil
	a.mu.Unlock()
}

// shutdown fails everything still queued and closes the handle. Operations
// enqueued concurrently with shutdown still time out at their deadline.
func (a *Arbiter) shutdown() {
	a.closed.Store(true)

	drained := 0
	for {
		select {
		case op := <-a.ops:
			res := result{err: yubikey.OpError{Op: "bridge.shutdown", Kind: yubikey.ErrInternalFailure, Msg: "shutting down"}}
			a.finish(context.Background(), op, "", res, time.Now())
			drained++
		default:
			if err := a.handle.Close(); err != nil {
				a.log.Error("bridge.handle.close.fail", "err", err)
			}
			a.log.Info("bridge.run.stop", "drained", drained)
			return
		}
	}
}
