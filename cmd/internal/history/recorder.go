package history

import (
	"context"
	"log/slog"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Recorder plugs a Store into the arbiter as an observer. Insert failures
// are logged, never propagated; the audit trail must not cost an operation.
type Recorder struct {
	log   *slog.Logger
	store Store
}

// NewRecorder constructs a Recorder over store.
func NewRecorder(log *slog.Logger, store Store) *Recorder {
	return &Recorder{log: log, store: store}
}

// OperationDone records one completion.
func (r *Recorder) OperationDone(ctx context.Context, c bridge.Completion) {
	e := Entry{
		ID:         c.OpID,
		Kind:       string(c.Kind),
		Outcome:    c.Outcome,
		WaitMS:     c.Wait().Milliseconds(),
		DurationMS: c.Duration().Milliseconds(),
		At:         c.Finished,
	}
	if c.Outcome == "ok" {
		e.Account = c.Account
	}

	if err := r.store.Record(ctx, e); err != nil {
		r.log.Warn("history.record.fail", "op_id", c.OpID, "err", err)
	}
}

// DeviceState is part of bridge.Observer; session transitions are not
// audited, only operations.
func (r *Recorder) DeviceState(context.Context, yubikey.State, yubikey.Info) {}
