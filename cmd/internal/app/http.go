package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	api interface{ Register(*http.ServeMux) },
	status func() bridge.Status,
	dbPool *pgxpool.Pool,
	metricsHandler http.Handler,
	wsHandler http.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDevice && status().State != yubikey.StateConnected {
			http.Error(w, "device not connected", http.StatusServiceUnavailable)
			return
		}

		if dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	api.Register(mux)

	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/ws", wsHandler)
}
