package oath

import (
	"errors"
	"fmt"
)

// Public, stable errors for callers.
var (
	// ErrNoDevice means no connected reader currently exposes a YubiKey.
	ErrNoDevice = errors.New("no yubikey present")

	// ErrAuthRequired means the applet is password protected and the
	// session has not completed VALIDATE.
	ErrAuthRequired = errors.New("oath authentication required")

	// ErrWrongPassword means VALIDATE failed, either because the applet
	// rejected our response or because the applet's own response to our
	// challenge did not verify.
	ErrWrongPassword = errors.New("wrong oath password")

	// ErrTouchTimeout means the applet gave up waiting for a touch.
	ErrTouchTimeout = errors.New("touch not confirmed")

	// ErrNoSuchObject means the named credential does not exist on the
	// device.
	ErrNoSuchObject = errors.New("no such credential")
)

// StatusError reports a status word the session did not expect. Well-known
// words are mapped to the sentinel errors above before this is used.
type StatusError struct {
	Op string
	SW uint16
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status 0x%04x", e.Op, e.SW)
}

// swError maps a non-OK status word to a stable error for op.
func swError(op string, sw uint16) error {
	switch sw {
	case swConditionsNotSatisfied:
		return fmt.Errorf("%s: %w", op, ErrTouchTimeout)
	case swAuthRequired:
		return fmt.Errorf("%s: %w", op, ErrAuthRequired)
	case swNoSuchObject:
		return fmt.Errorf("%s: %w", op, ErrNoSuchObject)
	default:
		return StatusError{Op: op, SW: sw}
	}
}
