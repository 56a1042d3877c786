package oath

import (
	"errors"
	"fmt"
)

// Applet instructions. SELECT is the ISO interindustry instruction; the
// rest live in the proprietary range of the OATH applet.
const (
	insSelect        = 0xa4
	insList          = 0xa1
	insCalculate     = 0xa2
	insValidate      = 0xa3
	insCalculateAll  = 0xa4
	insSendRemaining = 0xa5
)

// TLV tags used by the applet in requests and responses.
const (
	tagName      = 0x71
	tagNameList  = 0x72
	tagChallenge = 0x74
	tagResponse  = 0x75
	tagTruncated = 0x76
	tagHOTP      = 0x77
	tagVersion   = 0x79
	tagAlgorithm = 0x7b
	tagTouch     = 0x7c
)

// Status words.
const (
	swOK                     = 0x9000
	swAuthRequired           = 0x6982
	swNoSuchObject           = 0x6984
	swConditionsNotSatisfied = 0x6985
	swMoreData               = 0x61 // SW1; SW2 carries the remaining length
)

var errTruncatedTLV = errors.New("truncated tlv")

// apdu is a short-form command APDU. Le is never sent; the applet returns
// what it has and signals the rest via 61xx chaining.
type apdu struct {
	cla, ins, p1, p2 byte
	data             []byte
}

func (a apdu) encode() ([]byte, error) {
	if len(a.data) > 0xff {
		return nil, fmt.Errorf("apdu: %d byte payload exceeds short form", len(a.data))
	}
	out := make([]byte, 0, 5+len(a.data))
	out = append(out, a.cla, a.ins, a.p1, a.p2)
	if len(a.data) > 0 {
		out = append(out, byte(len(a.data)))
		out = append(out, a.data...)
	}
	return out, nil
}

// splitStatus separates the payload from the trailing status word.
func splitStatus(resp []byte) ([]byte, uint16, error) {
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("response too short: %d bytes", len(resp))
	}
	n := len(resp)
	sw := uint16(resp[n-2])<<8 | uint16(resp[n-1])
	return resp[:n-2], sw, nil
}

// tlv is a single-byte-tag, BER-length value as emitted by the applet.
type tlv struct {
	tag   byte
	value []byte
}

// appendTLV appends tag/length/value to buf and returns the new slice.
// Values this client sends are always short enough for a one-byte length,
// but the encoder mirrors the parser for symmetry.
func appendTLV(buf []byte, tag byte, value []byte) []byte {
	buf = append(buf, tag)
	switch {
	case len(value) < 0x80:
		buf = append(buf, byte(len(value)))
	case len(value) <= 0xff:
		buf = append(buf, 0x81, byte(len(value)))
	default:
		buf = append(buf, 0x82, byte(len(value)>>8), byte(len(value)))
	}
	return append(buf, value...)
}

// parseTLVs decodes a concatenated TLV sequence. The applet uses one-byte
// tags and one- or two-byte BER lengths.
func parseTLVs(b []byte) ([]tlv, error) {
	var out []tlv
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, errTruncatedTLV
		}
		tag := b[0]
		length := int(b[1])
		rest := b[2:]
		switch {
		case length == 0x81:
			if len(rest) < 1 {
				return nil, errTruncatedTLV
			}
			length = int(rest[0])
			rest = rest[1:]
		case length == 0x82:
			if len(rest) < 2 {
				return nil, errTruncatedTLV
			}
			length = int(rest[0])<<8 | int(rest[1])
			rest = rest[2:]
		case length > 0x82:
			return nil, fmt.Errorf("unsupported tlv length form 0x%02x", length)
		}
		if len(rest) < length {
			return nil, errTruncatedTLV
		}
		out = append(out, tlv{tag: tag, value: rest[:length]})
		b = rest[length:]
	}
	return out, nil
}
