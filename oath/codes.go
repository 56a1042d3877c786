package oath

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPeriod is the TOTP period assumed when a credential name carries
// no explicit period prefix.
const DefaultPeriod = 30 * time.Second

// Code is a generated one-time code together with its validity window end.
type Code struct {
	Value     string
	Digits    int
	ExpiresAt time.Time
}

// FormatCode decodes the applet's truncated response: a 4 byte big-endian
// value whose top bit is masked, reduced modulo 10^digits and left-padded
// with zeros.
func FormatCode(truncated []byte, digits int) (string, error) {
	if len(truncated) != 4 {
		return "", fmt.Errorf("truncated response is %d bytes, want 4", len(truncated))
	}
	if digits < 6 || digits > 10 {
		return "", fmt.Errorf("unsupported digit count %d", digits)
	}
	v := binary.BigEndian.Uint32(truncated) & 0x7fffffff
	mod := uint32(1)
	for i := 0; i < digits && mod < 1_000_000_000; i++ {
		mod *= 10
	}
	if digits >= 10 {
		// 10 digits cannot wrap a 31 bit value; print it as-is.
		return fmt.Sprintf("%0*d", digits, v), nil
	}
	return fmt.Sprintf("%0*d", digits, v%mod), nil
}

// ParsePeriod splits an optional "NN/" period prefix off a credential name.
// The applet stores non-default-period credentials as "<seconds>/<name>".
// Names without a valid prefix keep DefaultPeriod.
func ParsePeriod(name string) (time.Duration, string) {
	head, rest, ok := strings.Cut(name, "/")
	if !ok {
		return DefaultPeriod, name
	}
	secs, err := strconv.Atoi(head)
	if err != nil || secs <= 0 {
		return DefaultPeriod, name
	}
	return time.Duration(secs) * time.Second, rest
}

// timeChallenge encodes the 8 byte big-endian counter CALCULATE expects for
// a TOTP credential: unix time divided by the period.
func timeChallenge(at time.Time, period time.Duration) []byte {
	counter := uint64(at.Unix()) / uint64(period/time.Second)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], counter)
	return b[:]
}

// periodEnd returns the end of the validity window containing at.
func periodEnd(at time.Time, period time.Duration) time.Time {
	secs := int64(period / time.Second)
	next := (at.Unix()/secs + 1) * secs
	return time.Unix(next, 0).UTC()
}
