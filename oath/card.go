package oath

import "strings"

// Card is a connected smart card channel capable of APDU exchange.
// Implementations are not safe for concurrent use; callers serialize.
type Card interface {
	// Transmit sends one command APDU and returns the raw response,
	// including the trailing status word.
	Transmit(apdu []byte) ([]byte, error)
	Close() error
}

// Opener hands out connected cards. The PC/SC implementation walks the
// reader list on every call so replugged devices are found again.
type Opener interface {
	// Open connects to the first present YubiKey and returns the card
	// together with the reader name it was found on.
	Open() (Card, string, error)
	Close() error
}

// IsYubiKeyReader reports whether a PC/SC reader name looks like a YubiKey.
// Yubico's CCID interface announces itself with the vendor name in the
// reader string on all supported platforms.
func IsYubiKeyReader(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "yubikey") || strings.Contains(n, "yubico")
}
