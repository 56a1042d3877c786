package yubikey

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want string
	}{
		{in: ErrDeviceAbsent, want: "device_absent"},
		{in: ErrDeviceBusy, want: "device_busy"},
		{in: ErrTouchTimeout, want: "touch_timeout"},
		{in: ErrAccountNotFound, want: "account_not_found"},
		{in: ErrAccountAmbiguous, want: "account_ambiguous"},
		{in: ErrInternalFailure, want: "internal_failure"},
		{in: OpError{Op: "yubikey.probe", Kind: ErrDeviceAbsent}, want: "device_absent"},
		{in: AmbiguousError{Query: "aws", Matches: []string{"a", "b"}}, want: "account_ambiguous"},
		{in: fmt.Errorf("wrapped: %w", ErrTouchTimeout), want: "touch_timeout"},
		{in: errors.New("anything else"), want: "internal_failure"},
	}

	for _, tc := range cases {
		if got := ErrorCode(tc.in); got != tc.want {
			t.Fatalf("ErrorCode(%v)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestOpError_Unwrap(t *testing.T) {
	t.Parallel()

	err := OpError{Op: "yubikey.compute", Kind: ErrTouchTimeout, Msg: "window elapsed"}
	if !errors.Is(err, ErrTouchTimeout) {
		t.Fatalf("OpError does not unwrap to its kind")
	}
	if !IsTouchTimeout(err) {
		t.Fatalf("IsTouchTimeout=false")
	}
	if got := err.Error(); got != "yubikey.compute: touch_timeout: window elapsed" {
		t.Fatalf("Error()=%q", got)
	}
}

func TestIsHelpers(t *testing.T) {
	t.Parallel()

	absent := OpError{Op: "yubikey.probe", Kind: ErrDeviceAbsent, Msg: "no readers"}
	if !IsDeviceAbsent(absent) || IsTouchTimeout(absent) || IsNotFound(absent) || IsAmbiguous(absent) {
		t.Fatalf("helper misclassified %v", absent)
	}

	amb := AmbiguousError{Query: "a", Matches: []string{"aa", "ab"}}
	if !IsAmbiguous(amb) || IsNotFound(amb) {
		t.Fatalf("helper misclassified %v", amb)
	}

	notFound := OpError{Op: "yubikey.resolve", Kind: ErrAccountNotFound}
	if !IsNotFound(notFound) || IsAmbiguous(notFound) {
		t.Fatalf("helper misclassified %v", notFound)
	}
}
