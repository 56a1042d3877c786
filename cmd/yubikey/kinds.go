package yubikey

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to transport
// status codes). Every error a device operation returns wraps exactly one
// of these.
var (
	// ErrDeviceAbsent covers no reader, no card, and removal mid-operation.
	ErrDeviceAbsent = errors.New("device_absent")

	// ErrDeviceBusy is reserved for a future concurrent-access policy.
	// Nothing returns it today; transports still map it.
	ErrDeviceBusy = errors.New("device_busy")

	// ErrTouchTimeout means the touch window elapsed unconfirmed.
	ErrTouchTimeout = errors.New("touch_timeout")

	// ErrAccountNotFound means resolution matched nothing.
	ErrAccountNotFound = errors.New("account_not_found")

	// ErrAccountAmbiguous means resolution matched more than one account.
	ErrAccountAmbiguous = errors.New("account_ambiguous")

	// ErrInternalFailure covers protocol violations and everything else.
	ErrInternalFailure = errors.New("internal_failure")
)
