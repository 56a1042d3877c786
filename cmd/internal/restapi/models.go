package restapi

import (
	"time"

	"github.com/Berghmans/yk-daemon/cmd/internal/history"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

type accountsResponse struct {
	Success   bool      `json:"success"`
	Accounts  []string  `json:"accounts"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

type totpResponse struct {
	Success   bool      `json:"success"`
	Account   string    `json:"account"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

type statusResponse struct {
	Success   bool          `json:"success"`
	State     yubikey.State `json:"state"`
	Reader    string        `json:"reader,omitempty"`
	Serial    string        `json:"serial,omitempty"`
	Version   string        `json:"version,omitempty"`
	Accounts  int           `json:"accounts"`
	QueueLen  int           `json:"queue_len"`
	LastSeen  *time.Time    `json:"last_seen,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type historyResponse struct {
	Success   bool            `json:"success"`
	Entries   []history.Entry `json:"entries"`
	Count     int             `json:"count"`
	Timestamp time.Time       `json:"timestamp"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Matches   []string  `json:"matches,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
