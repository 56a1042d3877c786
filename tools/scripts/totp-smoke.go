//go:build ignore

// Manual end-to-end smoke check against a running yk-daemon.
//
// It exercises both transports:
//   - socket: LIST_ACCOUNTS, then GET_TOTP (optionally with an account query)
//   - HTTP: GET /api/status
//
// Raw protocol lines and response bodies are printed as-is. A GET_TOTP
// against a touch-protected credential blocks until the key is touched.
//
// Usage:
//
//	go run tools/scripts/totp-smoke.go [-socket 127.0.0.1:5001] [-http http://127.0.0.1:5000] [-account aws]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		socketAddr = flag.String("socket", "127.0.0.1:5001", "socket transport address")
		httpBase   = flag.String("http", "http://127.0.0.1:5000", "HTTP transport base URL")
		account    = flag.String("account", "", "account query for GET_TOTP (empty = first account)")
		timeout    = flag.Duration("timeout", 40*time.Second, "per-step timeout (covers the touch wait)")
	)
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *socketAddr, 5*time.Second)
	if err != nil {
		fatalf("dial socket: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	fmt.Println(roundTrip(conn, r, "LIST_ACCOUNTS", *timeout))

	cmd := "GET_TOTP"
	if *account != "" {
		cmd += " " + *account
	}
	fmt.Println(roundTrip(conn, r, cmd, *timeout))

	resp, err := http.Get(strings.TrimRight(*httpBase, "/") + "/api/status")
	if err != nil {
		fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fatalf("read status body: %v", err)
	}
	fmt.Printf("HTTP %d %s", resp.StatusCode, body)
}

func roundTrip(conn net.Conn, r *bufio.Reader, cmd string, timeout time.Duration) string {
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		fatalf("send %q: %v", cmd, err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		fatalf("read reply for %q: %v", cmd, err)
	}
	return strings.TrimRight(line, "\n")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "totp-smoke: "+format+"\n", args...)
	os.Exit(1)
}
