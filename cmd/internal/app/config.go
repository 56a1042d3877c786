package app

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment
// variables (YK_DAEMON_* keys).
type Config struct {
	HTTPEnabled bool
	HTTPAddr    string

	SocketEnabled     bool
	SocketAddr        string
	SocketIdleTimeout time.Duration

	LogLevel  string
	LogFormat string // "json" or "pretty"

	// Arbiter bounds.
	CodeTimeout time.Duration
	ListTimeout time.Duration
	QueueDepth  int

	// OATH applet access password; empty for unprotected devices.
	OATHPassword string

	NotifyPopup        bool
	NotifyPopupCommand []string
	NotifySound        bool
	NotifySoundCommand []string
	NotifyTimeout      time.Duration

	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32
	HistoryLimit int

	// If true, /readyz returns 503 until the device session is connected.
	ReadinessRequireDevice bool

	WSSendQueue int
	WSHeartbeat time.Duration

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPEnabled: EnvBool("YK_DAEMON_HTTP_ENABLED", true),
		HTTPAddr:    EnvString("YK_DAEMON_HTTP_ADDR", "127.0.0.1:5000"),

		SocketEnabled:     EnvBool("YK_DAEMON_SOCKET_ENABLED", true),
		SocketAddr:        EnvString("YK_DAEMON_SOCKET_ADDR", "127.0.0.1:5001"),
		SocketIdleTimeout: EnvDuration("YK_DAEMON_SOCKET_IDLE_TIMEOUT", 30*time.Second),

		LogLevel:  EnvString("YK_DAEMON_LOG_LEVEL", "info"),
		LogFormat: EnvString("YK_DAEMON_LOG_FORMAT", "json"),

		CodeTimeout: EnvDuration("YK_DAEMON_CODE_TIMEOUT", 30*time.Second),
		ListTimeout: EnvDuration("YK_DAEMON_LIST_TIMEOUT", 5*time.Second),
		QueueDepth:  EnvInt("YK_DAEMON_QUEUE_DEPTH", 16),

		OATHPassword: EnvString("YK_DAEMON_OATH_PASSWORD", ""),

		NotifyPopup:        EnvBool("YK_DAEMON_NOTIFY_POPUP", true),
		NotifyPopupCommand: EnvArgv("YK_DAEMON_NOTIFY_POPUP_COMMAND", []string{"notify-send", "YubiKey", "Touch your YubiKey to continue"}),
		NotifySound:        EnvBool("YK_DAEMON_NOTIFY_SOUND", false),
		NotifySoundCommand: EnvArgv("YK_DAEMON_NOTIFY_SOUND_COMMAND", []string{"paplay", "/usr/share/sounds/freedesktop/stereo/bell.oga"}),
		NotifyTimeout:      EnvDuration("YK_DAEMON_NOTIFY_TIMEOUT", 5*time.Second),

		DatabaseURL:  EnvString("YK_DAEMON_DATABASE_URL", ""),
		DBMaxConns:   EnvInt32("YK_DAEMON_DB_MAX_CONNS", 4),
		DBMinConns:   EnvInt32("YK_DAEMON_DB_MIN_CONNS", 0),
		HistoryLimit: EnvInt("YK_DAEMON_HISTORY_LIMIT", 256),

		ReadinessRequireDevice: EnvBool("YK_DAEMON_READINESS_REQUIRE_DEVICE", false),

		WSSendQueue: EnvInt("YK_DAEMON_WS_SEND_QUEUE", 32),
		WSHeartbeat: EnvDuration("YK_DAEMON_WS_HEARTBEAT", 30*time.Second),

		ReadHeaderTimeout: EnvDuration("YK_DAEMON_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("YK_DAEMON_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("YK_DAEMON_HTTP_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       EnvDuration("YK_DAEMON_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("YK_DAEMON_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    EnvInt("YK_DAEMON_HTTP_MAX_HEADER_BYTES", 1<<20),
	}
}

// Validate enforces the cross-field rules that must fail startup rather
// than fall back to defaults.
func (c Config) Validate() error {
	if !c.HTTPEnabled && !c.SocketEnabled {
		return errors.New("config: at least one of HTTP and socket transports must be enabled")
	}
	if c.HTTPEnabled && c.SocketEnabled && c.HTTPAddr == c.SocketAddr {
		return fmt.Errorf("config: HTTP and socket transports share address %s", c.HTTPAddr)
	}
	if c.WriteTimeout > 0 && c.WriteTimeout <= c.CodeTimeout {
		return fmt.Errorf("config: HTTP write timeout %s must exceed the code timeout %s or touch waits get cut off", c.WriteTimeout, c.CodeTimeout)
	}
	return nil
}

// Warnings reports advisory findings that do not block startup. The daemon
// performs no client authentication, so non-loopback binds deserve a note.
func (c Config) Warnings() []string {
	var out []string
	if c.HTTPEnabled && !isLoopbackAddr(c.HTTPAddr) {
		out = append(out, fmt.Sprintf("HTTP transport bound to non-loopback address %s; anyone who can reach it can request codes", c.HTTPAddr))
	}
	if c.SocketEnabled && !isLoopbackAddr(c.SocketAddr) {
		out = append(out, fmt.Sprintf("socket transport bound to non-loopback address %s; anyone who can reach it can request codes", c.SocketAddr))
	}
	return out
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
