package yubikey

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Berghmans/yk-daemon/oath"
)

// OATHDevice is the Handle implementation for real hardware: a YubiKey's
// OATH applet reached over PC/SC. Not safe for concurrent use.
type OATHDevice struct {
	opener   oath.Opener
	password string
	now      func() time.Time

	card oath.Card
	sess *oath.Session
}

// NewOATHDevice wraps an opener (usually oath.NewPCSC) into a Handle.
// password is the OATH access password, empty for unprotected applets.
func NewOATHDevice(opener oath.Opener, password string) *OATHDevice {
	return &OATHDevice{opener: opener, password: password, now: time.Now}
}

// Probe reconnects from scratch: open the first YubiKey reader, select the
// applet, authenticate if demanded, and enumerate credentials with their
// touch flags in a single CALCULATE ALL round trip.
func (d *OATHDevice) Probe(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, OpError{Op: "yubikey.probe", Kind: ErrInternalFailure, Msg: err.Error()}
	}
	d.drop()

	card, reader, err := d.opener.Open()
	if err != nil {
		return Info{}, d.fail("yubikey.probe", err)
	}
	sess, err := oath.Select(card)
	if err != nil {
		_ = card.Close()
		return Info{}, d.fail("yubikey.probe", err)
	}
	if sess.RequiresAuth() {
		if err := sess.Validate(d.password); err != nil {
			_ = card.Close()
			return Info{}, d.fail("yubikey.probe", err)
		}
	}

	results, err := sess.CalculateAll(d.now())
	if err != nil {
		_ = card.Close()
		return Info{}, d.fail("yubikey.probe", err)
	}

	d.card = card
	d.sess = sess

	info := Info{
		Reader:        reader,
		Version:       sess.Version(),
		DeviceID:      hex.EncodeToString(sess.DeviceID()),
		Accounts:      make([]string, 0, len(results)),
		RequiresTouch: make(map[string]bool, len(results)),
	}
	for _, r := range results {
		info.Accounts = append(info.Accounts, r.Name)
		info.RequiresTouch[r.Name] = r.TouchRequired
	}
	return info, nil
}

// ListAccounts enumerates credential names from the device in device order.
func (d *OATHDevice) ListAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, OpError{Op: "yubikey.list", Kind: ErrInternalFailure, Msg: err.Error()}
	}
	if d.sess == nil {
		return nil, OpError{Op: "yubikey.list", Kind: ErrDeviceAbsent, Msg: "no open session"}
	}
	creds, err := d.sess.List()
	if err != nil {
		return nil, d.fail("yubikey.list", err)
	}
	names := make([]string, 0, len(creds))
	for _, c := range creds {
		names = append(names, c.Name)
	}
	return names, nil
}

// ComputeCode generates a code for one exact credential name. Blocks for
// touch-protected credentials until touched or the applet gives up.
func (d *OATHDevice) ComputeCode(ctx context.Context, name string) (Code, error) {
	if err := ctx.Err(); err != nil {
		return Code{}, OpError{Op: "yubikey.compute", Kind: ErrInternalFailure, Msg: err.Error()}
	}
	if d.sess == nil {
		return Code{}, OpError{Op: "yubikey.compute", Kind: ErrDeviceAbsent, Msg: "no open session"}
	}
	code, err := d.sess.Calculate(name, d.now())
	if err != nil {
		return Code{}, d.fail("yubikey.compute", err)
	}
	return Code{Value: code.Value, Digits: code.Digits, ExpiresAt: code.ExpiresAt}, nil
}

// Close drops the card connection and releases the opener.
func (d *OATHDevice) Close() error {
	d.drop()
	return d.opener.Close()
}

// fail classifies a protocol or transport error into the taxonomy. Errors
// meaning the device is gone also drop the connection so the next probe
// starts clean.
func (d *OATHDevice) fail(op string, err error) error {
	if oath.IsDeviceGone(err) {
		d.drop()
		return OpError{Op: op, Kind: ErrDeviceAbsent, Msg: err.Error()}
	}
	switch {
	case errors.Is(err, oath.ErrTouchTimeout):
		return OpError{Op: op, Kind: ErrTouchTimeout}
	case errors.Is(err, oath.ErrNoSuchObject):
		return OpError{Op: op, Kind: ErrAccountNotFound, Msg: err.Error()}
	default:
		// Auth failures, unexpected status words, malformed replies.
		return OpError{Op: op, Kind: ErrInternalFailure, Msg: err.Error()}
	}
}

func (d *OATHDevice) drop() {
	if d.card != nil {
		_ = d.card.Close()
	}
	d.card = nil
	d.sess = nil
}
