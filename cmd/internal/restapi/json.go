package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, matches []string) {
	writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     code,
		Message:   msg,
		Matches:   matches,
		Timestamp: time.Now().UTC(),
	})
}

// writeTaxonomyError maps a device/resolution error onto the stable wire
// code and HTTP status shared by every transport.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	code := yubikey.ErrorCode(err)

	var matches []string
	var ambiguous yubikey.AmbiguousError
	if errors.As(err, &ambiguous) {
		matches = ambiguous.Matches
	}

	writeError(w, httpStatus(code), code, err.Error(), matches)
}

func httpStatus(code string) int {
	switch code {
	case "device_absent", "device_busy":
		return http.StatusServiceUnavailable
	case "touch_timeout":
		return http.StatusRequestTimeout
	case "account_not_found":
		return http.StatusNotFound
	case "account_ambiguous":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
