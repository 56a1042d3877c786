// Package socketserver is the line-protocol adapter over the request
// arbiter: one command per line in, one "OK ..." or "ERROR ..." line out,
// connections stay open for further commands.
package socketserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

const (
	defaultIdleTimeout  = 30 * time.Second
	defaultMaxLineBytes = 4 << 10

	writeTimeout = 5 * time.Second
)

// Bridge is the arbiter surface the server needs.
type Bridge interface {
	GetCode(ctx context.Context, query string) (bridge.CodeResult, error)
	ListAccounts(ctx context.Context) ([]string, error)
}

// Config bounds per-connection behavior.
type Config struct {
	Addr string

	// IdleTimeout closes a connection that sends nothing for this long.
	IdleTimeout time.Duration

	// MaxLineBytes rejects oversized request lines.
	MaxLineBytes int
}

// Server accepts local TCP clients and answers the two textual commands
// GET_TOTP and LIST_ACCOUNTS.
type Server struct {
	log    *slog.Logger
	bridge Bridge
	cfg    Config

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New constructs a Server. Zero config fields fall back to defaults.
func New(log *slog.Logger, b Bridge, cfg Config) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	return &Server{
		log:    log,
		bridge: b,
		cfg:    cfg,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe serves until ctx is canceled, then closes the listener and
// every open connection and waits for handlers to drain.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("socket listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on an existing listener. Exposed so tests can
// bind to 127.0.0.1:0 themselves.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("socket.listen", "addr", ln.Addr().String(), "idle_timeout", s.cfg.IdleTimeout)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("socket.stop")
				return nil
			}
			return fmt.Errorf("socket accept: %w", err)
		}

		s.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Info("socket.conn.open", "remote", remote)
	defer func() {
		_ = conn.Close()
		s.log.Info("socket.conn.close", "remote", remote)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), s.cfg.MaxLineBytes)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if !scanner.Scan() {
			if err := scanner.Err(); errors.Is(err, bufio.ErrTooLong) {
				s.reply(conn, "ERROR invalid_request Request line too long")
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			// Stray newlines from interactive clients are not an error.
			continue
		}

		if !s.reply(conn, s.dispatch(ctx, line)) {
			return
		}
	}
}

// dispatch executes one command line and renders the single-line response.
func (s *Server) dispatch(ctx context.Context, line string) string {
	verb, rest := splitCommand(line)

	switch strings.ToUpper(verb) {
	case "GET_TOTP":
		res, err := s.bridge.GetCode(ctx, rest)
		if err != nil {
			return renderError(err)
		}
		return "OK " + res.Code.Value

	case "LIST_ACCOUNTS":
		accounts, err := s.bridge.ListAccounts(ctx)
		if err != nil {
			return renderError(err)
		}
		if len(accounts) == 0 {
			return "OK"
		}
		return "OK " + strings.Join(accounts, ",")

	default:
		return "ERROR invalid_request Unknown command: " + verb
	}
}

// renderError keeps the same stable code vocabulary the HTTP adapter uses,
// followed by a human-readable message.
func renderError(err error) string {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	return "ERROR " + yubikey.ErrorCode(err) + " " + msg
}

// splitCommand separates the verb from its argument. The argument is the
// whole rest of the line, so account queries may contain spaces, colons and
// slashes.
func splitCommand(line string) (verb, rest string) {
	verb, rest, _ = strings.Cut(line, " ")
	return verb, strings.TrimSpace(rest)
}

func (s *Server) reply(conn net.Conn, line string) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return false
	}
	if _, err := fmt.Fprintln(conn, line); err != nil {
		s.log.Debug("socket.write.fail", "err", err)
		return false
	}
	return true
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
