// Package yubikey implements the daemon's device domain.
//
// It contains the stable error taxonomy shared by every transport, the
// Handle interface the request arbiter drives, the account resolver, and
// the OATH/PC/SC-backed Handle implementation.
//
// This package is intentionally dependency-light; transports depend on it
// for error classification, never the other way around.
package yubikey
