// Package restapi is the HTTP adapter over the request arbiter. It shapes
// JSON and maps the error taxonomy onto status codes; all device semantics
// live below it.
package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/internal/history"
)

const defaultHistoryLimit = 50

// Bridge is the arbiter surface the handler needs.
type Bridge interface {
	GetCode(ctx context.Context, query string) (bridge.CodeResult, error)
	ListAccounts(ctx context.Context) ([]string, error)
	Status() bridge.Status
}

// History serves the recent-operations endpoint. Optional.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handler serves the /api routes.
type Handler struct {
	log     *slog.Logger
	bridge  Bridge
	history History
}

// NewHandler constructs a Handler. history may be nil, which disables
// /api/history with a 404.
func NewHandler(log *slog.Logger, b Bridge, h History) *Handler {
	return &Handler{log: log, bridge: b, history: h}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/accounts", h.handleAccounts)
	mux.HandleFunc("/api/totp", h.handleTOTP)
	mux.HandleFunc("/api/totp/", h.handleTOTP)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/history", h.handleHistory)
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	accounts, err := h.bridge.ListAccounts(r.Context())
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	if accounts == nil {
		accounts = []string{}
	}

	writeJSON(w, http.StatusOK, accountsResponse{
		Success:   true,
		Accounts:  accounts,
		Count:     len(accounts),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleTOTP(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	query, ok := accountFromPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed account in path", nil)
		return
	}

	res, err := h.bridge.GetCode(r.Context(), query)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, totpResponse{
		Success:   true,
		Account:   res.Account,
		Code:      res.Code.Value,
		ExpiresAt: res.Code.ExpiresAt.UTC(),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	st := h.bridge.Status()
	resp := statusResponse{
		Success:   true,
		State:     st.State,
		Reader:    st.Reader,
		Serial:    st.DeviceID,
		Version:   st.Version,
		Accounts:  st.AccountCount,
		QueueLen:  st.QueueDepth,
		LastError: st.LastError,
		Timestamp: time.Now().UTC(),
	}
	if !st.LastSeen.IsZero() {
		seen := st.LastSeen.UTC()
		resp.LastSeen = &seen
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "history is not enabled", nil)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("restapi.history.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_failure", "history unavailable", nil)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Success:   true,
		Entries:   entries,
		Count:     len(entries),
		Timestamp: time.Now().UTC(),
	})
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported", nil)
	return false
}

// accountFromPath extracts the account query from /api/totp/<account>. The
// remainder of the path is taken whole and URL-unescaped so structured names
// containing '/' and ':' survive.
func accountFromPath(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/api/totp")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", true
	}
	account, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return account, true
}
