// Package notify delivers "touch your key now" prompts. Implementations are
// fire-and-forget: a notification that cannot be delivered is logged and
// dropped, never surfaced as an operation failure.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
)

const defaultTimeout = 5 * time.Second

// Command runs an external program per touch event, e.g. notify-send for a
// desktop popup or paplay for an audible cue. The "{account}" placeholder in
// any argv element is replaced with the account about to be touched.
type Command struct {
	log     *slog.Logger
	name    string
	argv    []string
	timeout time.Duration
}

// NewCommand constructs a Command notifier. name labels the channel in logs
// ("popup", "sound"). An empty argv yields a notifier that does nothing.
func NewCommand(log *slog.Logger, name string, argv []string, timeout time.Duration) *Command {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Command{log: log, name: name, argv: argv, timeout: timeout}
}

// Notify launches the configured program in the background. The arbiter's
// worker returns immediately; the program gets its own timeout and its exit
// status is only logged.
func (c *Command) Notify(_ context.Context, ev bridge.TouchEvent) {
	if len(c.argv) == 0 {
		return
	}
	argv := expandArgs(c.argv, ev.Account)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if err := cmd.Run(); err != nil {
			c.log.Warn("notify.command.fail", "channel", c.name, "command", argv[0], "err", err)
			return
		}
		c.log.Debug("notify.command.ok", "channel", c.name, "command", argv[0], "op_id", ev.OpID)
	}()
}

// expandArgs substitutes the {account} placeholder without mutating the
// configured argv.
func expandArgs(argv []string, account string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{account}", account)
	}
	return out
}
