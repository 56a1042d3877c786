// Package oath implements the client side of the YubiKey OATH applet
// protocol over an ISO 7816 APDU channel.
//
// It covers the subset of the protocol a read-only code generator needs:
// - SELECT with applet state parsing (version, device ID, auth challenge)
// - VALIDATE with PBKDF2-derived keys and mutual challenge-response
// - LIST and CALCULATE ALL credential enumeration
// - CALCULATE with truncated response decoding and period-aware challenges
// - Response chaining via SEND REMAINING for oversized replies
//
// The transport is abstracted behind the Card interface; pcsc.go provides
// the PC/SC implementation used against real hardware.
//
// Security notes:
// - Credential secrets never leave the device; only truncated codes do.
// - VALIDATE verifies the device's response to our challenge, so a
//   counterfeit reader cannot simply ack the password.
package oath
