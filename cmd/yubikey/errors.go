package yubikey

import (
	"errors"
	"fmt"
	"strings"
)

// OpError is a typed operation error with a stable Op + Kind contract for
// callers/tests.
// - Kind MUST be one of the sentinel kinds (ErrDeviceAbsent, ...).
// - Msg may include human-readable context; do not include codes or secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// AmbiguousError reports a query that resolved to more than one account.
// Matches preserves device order so transports can echo the candidates.
type AmbiguousError struct {
	Query   string
	Matches []string
}

func (e AmbiguousError) Error() string {
	return fmt.Sprintf("%v: %q matches %s", ErrAccountAmbiguous, e.Query, strings.Join(e.Matches, ", "))
}

func (e AmbiguousError) Unwrap() error { return ErrAccountAmbiguous }

// IsDeviceAbsent reports whether err represents ErrDeviceAbsent.
func IsDeviceAbsent(err error) bool { return errors.Is(err, ErrDeviceAbsent) }

// IsTouchTimeout reports whether err represents ErrTouchTimeout.
func IsTouchTimeout(err error) bool { return errors.Is(err, ErrTouchTimeout) }

// IsNotFound reports whether err represents ErrAccountNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrAccountNotFound) }

// IsAmbiguous reports whether err is an AmbiguousError.
func IsAmbiguous(err error) bool {
	var ae AmbiguousError
	return errors.As(err, &ae)
}

// ErrorCode returns the stable wire code for err, identical across every
// transport. Unrecognized errors classify as internal_failure.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceAbsent):
		return "device_absent"
	case errors.Is(err, ErrDeviceBusy):
		return "device_busy"
	case errors.Is(err, ErrTouchTimeout):
		return "touch_timeout"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrAccountAmbiguous):
		return "account_ambiguous"
	default:
		return "internal_failure"
	}
}
