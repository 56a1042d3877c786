package restapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/internal/history"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

type fakeBridge struct {
	accounts   []string
	listErr    error
	codeErr    error
	lastQuery  string
	status     bridge.Status
	codeResult bridge.CodeResult
}

func (f *fakeBridge) GetCode(_ context.Context, query string) (bridge.CodeResult, error) {
	f.lastQuery = query
	if f.codeErr != nil {
		return bridge.CodeResult{}, f.codeErr
	}
	return f.codeResult, nil
}

func (f *fakeBridge) ListAccounts(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.accounts, nil
}

func (f *fakeBridge) Status() bridge.Status { return f.status }

type fakeHistory struct {
	entries []history.Entry
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

func newTestHandler(fb *fakeBridge, fh History) *http.ServeMux {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandler(log, fb, fh).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestAccountsOK(t *testing.T) {
	t.Parallel()

	fb := &fakeBridge{accounts: []string{"GitHub", "AWS-prod"}}
	rr := do(t, newTestHandler(fb, nil), http.MethodGet, "/api/accounts")

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp accountsResponse
	decode(t, rr, &resp)
	if !resp.Success || resp.Count != 2 || len(resp.Accounts) != 2 {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Timestamp.IsZero() {
		t.Fatalf("missing timestamp")
	}
}

func TestAccountsEmptyIsArrayNotNull(t *testing.T) {
	t.Parallel()

	fb := &fakeBridge{}
	rr := do(t, newTestHandler(fb, nil), http.MethodGet, "/api/accounts")

	var raw map[string]json.RawMessage
	decode(t, rr, &raw)
	if string(raw["accounts"]) != "[]" {
		t.Fatalf("accounts=%s want []", raw["accounts"])
	}
}

func TestTOTPPathVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		target    string
		wantQuery string
	}{
		{name: "bare", target: "/api/totp", wantQuery: ""},
		{name: "trailing slash", target: "/api/totp/", wantQuery: ""},
		{name: "simple", target: "/api/totp/GitHub", wantQuery: "GitHub"},
		{name: "structured", target: "/api/totp/arn:aws:iam::111:user/alice", wantQuery: "arn:aws:iam::111:user/alice"},
		{name: "escaped", target: "/api/totp/AWS%20prod", wantQuery: "AWS prod"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fb := &fakeBridge{codeResult: bridge.CodeResult{
				Account: "resolved",
				Code:    yubikey.Code{Value: "123456", Digits: 6, ExpiresAt: time.Unix(90, 0)},
			}}
			rr := do(t, newTestHandler(fb, nil), http.MethodGet, tc.target)

			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if fb.lastQuery != tc.wantQuery {
				t.Fatalf("query=%q want %q", fb.lastQuery, tc.wantQuery)
			}
			var resp totpResponse
			decode(t, rr, &resp)
			if !resp.Success || resp.Code != "123456" || resp.Account != "resolved" {
				t.Fatalf("resp=%+v", resp)
			}
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code       string
		err        error
		wantStatus int
	}{
		{code: "device_absent", err: yubikey.OpError{Op: "t", Kind: yubikey.ErrDeviceAbsent}, wantStatus: http.StatusServiceUnavailable},
		{code: "device_busy", err: yubikey.OpError{Op: "t", Kind: yubikey.ErrDeviceBusy}, wantStatus: http.StatusServiceUnavailable},
		{code: "touch_timeout", err: yubikey.OpError{Op: "t", Kind: yubikey.ErrTouchTimeout}, wantStatus: http.StatusRequestTimeout},
		{code: "account_not_found", err: yubikey.OpError{Op: "t", Kind: yubikey.ErrAccountNotFound}, wantStatus: http.StatusNotFound},
		{code: "account_ambiguous", err: yubikey.AmbiguousError{Query: "aws", Matches: []string{"AWS-prod", "aws-dev"}}, wantStatus: http.StatusConflict},
		{code: "internal_failure", err: yubikey.OpError{Op: "t", Kind: yubikey.ErrInternalFailure}, wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()

			fb := &fakeBridge{codeErr: tc.err}
			rr := do(t, newTestHandler(fb, nil), http.MethodGet, "/api/totp/x")

			if rr.Code != tc.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			var resp errorResponse
			decode(t, rr, &resp)
			if resp.Success || resp.Error != tc.code {
				t.Fatalf("resp=%+v want error=%s", resp, tc.code)
			}
			if tc.code == "account_ambiguous" && len(resp.Matches) != 2 {
				t.Fatalf("matches=%v want two candidates", resp.Matches)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	seen := time.Unix(1700000000, 0)
	fb := &fakeBridge{status: bridge.Status{
		State:        yubikey.StateConnected,
		Reader:       "Yubico YubiKey OTP+FIDO+CCID",
		Version:      "5.4.3",
		DeviceID:     "deadbeef",
		AccountCount: 3,
		QueueDepth:   1,
		LastSeen:     seen,
	}}
	rr := do(t, newTestHandler(fb, nil), http.MethodGet, "/api/status")

	var resp statusResponse
	decode(t, rr, &resp)
	if resp.State != yubikey.StateConnected || resp.Serial != "deadbeef" || resp.Accounts != 3 {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.LastSeen == nil || !resp.LastSeen.Equal(seen) {
		t.Fatalf("last_seen=%v want %v", resp.LastSeen, seen)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	fh := &fakeHistory{entries: []history.Entry{
		{ID: "op-2", Kind: "get_code", Outcome: "ok", Account: "GitHub", At: time.Unix(2, 0)},
		{ID: "op-1", Kind: "list_accounts", Outcome: "ok", At: time.Unix(1, 0)},
	}}
	mux := newTestHandler(&fakeBridge{}, fh)

	rr := do(t, mux, http.MethodGet, "/api/history?limit=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if fh.limit != 2 {
		t.Fatalf("limit=%d want 2", fh.limit)
	}
	var resp historyResponse
	decode(t, rr, &resp)
	if resp.Count != 2 || resp.Entries[0].ID != "op-2" {
		t.Fatalf("resp=%+v", resp)
	}

	if rr := do(t, mux, http.MethodGet, "/api/history?limit=bogus"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bogus limit status=%d", rr.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestHandler(&fakeBridge{}, nil), http.MethodGet, "/api/history")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := newTestHandler(&fakeBridge{}, nil)
	for _, target := range []string{"/api/accounts", "/api/totp", "/api/status"} {
		rr := do(t, mux, http.MethodPost, target)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s status=%d want 405", target, rr.Code)
		}
		var resp errorResponse
		decode(t, rr, &resp)
		if resp.Success || resp.Error != "method_not_allowed" {
			t.Fatalf("%s resp=%+v", target, resp)
		}
	}
}
