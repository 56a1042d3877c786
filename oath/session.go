package oath

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// aid is the OATH applet identifier.
var aid = []byte{0xa0, 0x00, 0x00, 0x05, 0x27, 0x21, 0x01}

// Key derivation parameters fixed by the applet: PBKDF2-HMAC-SHA1 over the
// device ID salt.
const (
	keyIterations = 1000
	keyLength     = 16
)

// CredentialType distinguishes the two OATH flavors.
type CredentialType byte

const (
	TypeHOTP CredentialType = 0x10
	TypeTOTP CredentialType = 0x20
)

func (t CredentialType) String() string {
	switch t {
	case TypeHOTP:
		return "HOTP"
	case TypeTOTP:
		return "TOTP"
	default:
		return fmt.Sprintf("type(0x%02x)", byte(t))
	}
}

// Algorithm is the HMAC hash a credential was provisioned with.
type Algorithm byte

const (
	AlgoSHA1   Algorithm = 0x01
	AlgoSHA256 Algorithm = 0x02
	AlgoSHA512 Algorithm = 0x03
)

func (a Algorithm) String() string {
	switch a {
	case AlgoSHA1:
		return "SHA1"
	case AlgoSHA256:
		return "SHA256"
	case AlgoSHA512:
		return "SHA512"
	default:
		return fmt.Sprintf("algo(0x%02x)", byte(a))
	}
}

// Credential is one stored entry as reported by LIST.
type Credential struct {
	Name      string
	Type      CredentialType
	Algorithm Algorithm
}

// CalcResult is one entry of a CALCULATE ALL response. Code is only
// populated for TOTP credentials that compute without touch.
type CalcResult struct {
	Name          string
	Code          Code
	TouchRequired bool
	HOTP          bool
}

// Session is an open OATH applet session on a connected card.
// Not safe for concurrent use.
type Session struct {
	card      Card
	version   string
	deviceID  []byte
	challenge []byte
}

// Select selects the OATH applet and parses its state. A non-nil challenge
// in the response means the applet demands VALIDATE before credential
// operations.
func Select(card Card) (*Session, error) {
	s := &Session{card: card}
	resp, err := s.exchange(apdu{ins: insSelect, p1: 0x04, data: aid}, "oath.select")
	if err != nil {
		return nil, err
	}
	tlvs, err := parseTLVs(resp)
	if err != nil {
		return nil, fmt.Errorf("oath.select: %w", err)
	}
	for _, t := range tlvs {
		switch t.tag {
		case tagVersion:
			if len(t.value) >= 3 {
				s.version = fmt.Sprintf("%d.%d.%d", t.value[0], t.value[1], t.value[2])
			}
		case tagName:
			s.deviceID = append([]byte(nil), t.value...)
		case tagChallenge:
			s.challenge = append([]byte(nil), t.value...)
		}
	}
	return s, nil
}

// Version is the applet version reported by SELECT, e.g. "5.4.3".
func (s *Session) Version() string { return s.version }

// DeviceID is the applet's identity bytes, also the VALIDATE key salt.
func (s *Session) DeviceID() []byte { return s.deviceID }

// RequiresAuth reports whether the applet demanded VALIDATE at SELECT.
func (s *Session) RequiresAuth() bool { return len(s.challenge) > 0 }

// Validate authenticates against a password-protected applet with mutual
// challenge-response. A no-op when the applet is not protected.
func (s *Session) Validate(password string) error {
	if !s.RequiresAuth() {
		return nil
	}
	if password == "" {
		return fmt.Errorf("oath.validate: %w", ErrAuthRequired)
	}

	key := pbkdf2.Key([]byte(password), s.deviceID, keyIterations, keyLength, sha1.New)
	response := hmacSHA1(key, s.challenge)

	ourChallenge := make([]byte, 8)
	if _, err := rand.Read(ourChallenge); err != nil {
		return fmt.Errorf("oath.validate: challenge: %w", err)
	}

	var data []byte
	data = appendTLV(data, tagResponse, response)
	data = appendTLV(data, tagChallenge, ourChallenge)

	resp, err := s.exchange(apdu{ins: insValidate, data: data}, "oath.validate")
	if err != nil {
		if IsDeviceGone(err) {
			return err
		}
		return fmt.Errorf("oath.validate: %w", ErrWrongPassword)
	}

	tlvs, err := parseTLVs(resp)
	if err != nil {
		return fmt.Errorf("oath.validate: %w", err)
	}
	for _, t := range tlvs {
		if t.tag == tagResponse {
			if hmac.Equal(t.value, hmacSHA1(key, ourChallenge)) {
				s.challenge = nil
				return nil
			}
			break
		}
	}
	return fmt.Errorf("oath.validate: device response: %w", ErrWrongPassword)
}

// List enumerates stored credentials in device order.
func (s *Session) List() ([]Credential, error) {
	resp, err := s.exchange(apdu{ins: insList}, "oath.list")
	if err != nil {
		return nil, err
	}
	tlvs, err := parseTLVs(resp)
	if err != nil {
		return nil, fmt.Errorf("oath.list: %w", err)
	}
	var creds []Credential
	for _, t := range tlvs {
		if t.tag != tagNameList || len(t.value) < 1 {
			continue
		}
		kind := t.value[0]
		creds = append(creds, Credential{
			Name:      string(t.value[1:]),
			Type:      CredentialType(kind & 0xf0),
			Algorithm: Algorithm(kind & 0x0f),
		})
	}
	return creds, nil
}

// Calculate computes the truncated code for one named credential at the
// given time. Touch-protected credentials block until touched or the
// applet's touch window elapses, which surfaces as ErrTouchTimeout.
func (s *Session) Calculate(name string, at time.Time) (Code, error) {
	period, _ := ParsePeriod(name)

	var data []byte
	data = appendTLV(data, tagName, []byte(name))
	data = appendTLV(data, tagChallenge, timeChallenge(at, period))

	resp, err := s.exchange(apdu{ins: insCalculate, p2: 0x01, data: data}, "oath.calculate")
	if err != nil {
		return Code{}, err
	}
	tlvs, err := parseTLVs(resp)
	if err != nil {
		return Code{}, fmt.Errorf("oath.calculate: %w", err)
	}
	for _, t := range tlvs {
		if t.tag != tagTruncated || len(t.value) < 1 {
			continue
		}
		digits := int(t.value[0])
		value, err := FormatCode(t.value[1:], digits)
		if err != nil {
			return Code{}, fmt.Errorf("oath.calculate: %w", err)
		}
		return Code{Value: value, Digits: digits, ExpiresAt: periodEnd(at, period)}, nil
	}
	return Code{}, fmt.Errorf("oath.calculate: no truncated response")
}

// CalculateAll computes every TOTP credential in one round trip using the
// default period challenge. Touch-protected and HOTP entries come back as
// markers without codes.
func (s *Session) CalculateAll(at time.Time) ([]CalcResult, error) {
	var data []byte
	data = appendTLV(data, tagChallenge, timeChallenge(at, DefaultPeriod))

	resp, err := s.exchange(apdu{ins: insCalculateAll, p2: 0x01, data: data}, "oath.calculateall")
	if err != nil {
		return nil, err
	}
	tlvs, err := parseTLVs(resp)
	if err != nil {
		return nil, fmt.Errorf("oath.calculateall: %w", err)
	}

	var out []CalcResult
	var cur *CalcResult
	for _, t := range tlvs {
		switch t.tag {
		case tagName:
			out = append(out, CalcResult{Name: string(t.value)})
			cur = &out[len(out)-1]
		case tagTruncated:
			if cur == nil || len(t.value) < 1 {
				continue
			}
			digits := int(t.value[0])
			value, err := FormatCode(t.value[1:], digits)
			if err != nil {
				return nil, fmt.Errorf("oath.calculateall: %q: %w", cur.Name, err)
			}
			period, _ := ParsePeriod(cur.Name)
			cur.Code = Code{Value: value, Digits: digits, ExpiresAt: periodEnd(at, period)}
		case tagTouch:
			if cur != nil {
				cur.TouchRequired = true
			}
		case tagHOTP:
			if cur != nil {
				cur.HOTP = true
			}
		}
	}
	return out, nil
}

// exchange runs one command, following 61xx chaining until the full
// response is assembled, and maps non-OK status words to errors.
func (s *Session) exchange(a apdu, op string) ([]byte, error) {
	cmd, err := a.encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var payload []byte
	for {
		resp, err := s.card.Transmit(cmd)
		if err != nil {
			return nil, fmt.Errorf("%s: transmit: %w", op, err)
		}
		body, sw, err := splitStatus(resp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		payload = append(payload, body...)

		switch {
		case sw == swOK:
			return payload, nil
		case sw>>8 == swMoreData:
			next, err := (apdu{ins: insSendRemaining}).encode()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			cmd = next
		default:
			return nil, swError(op, sw)
		}
	}
}

func hmacSHA1(key, msg []byte) []byte {
	m := hmac.New(sha1.New, key)
	m.Write(msg)
	return m.Sum(nil)
}
