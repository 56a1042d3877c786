// Package app wires the yk-daemon runtime: config, logging, the device
// arbiter, and the HTTP/socket/WebSocket front-ends.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/internal/events"
	"github.com/Berghmans/yk-daemon/cmd/internal/history"
	"github.com/Berghmans/yk-daemon/cmd/internal/notify"
	"github.com/Berghmans/yk-daemon/cmd/internal/restapi"
	"github.com/Berghmans/yk-daemon/cmd/internal/socketserver"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
	"github.com/Berghmans/yk-daemon/oath"
)

// App is the daemon runtime: it owns the arbiter, the stores, and both
// transport servers.
type App struct {
	cfg Config
	log Logger

	arb     *bridge.Arbiter
	hub     *events.Hub
	gateway *events.Gateway
	metrics *Metrics
	api     *restapi.Handler

	store history.Store
	pool  *pgxpool.Pool
}

// New constructs a fully wired App instance from config and logger. The
// device is not probed here; the first submitted operation does that, so
// startup succeeds with no key plugged in.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	store, pool, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	hub := events.NewHub(log.With("component", "events"))
	publisher := events.NewPublisher(hub)
	gateway := events.NewGateway(log.With("component", "events"), hub, cfg.WSSendQueue, cfg.WSHeartbeat)

	metrics := NewMetrics()

	notifier := bridge.MultiNotifier{publisher}
	if cfg.NotifyPopup {
		notifier = append(notifier, notify.NewCommand(log, "popup", cfg.NotifyPopupCommand, cfg.NotifyTimeout))
	}
	if cfg.NotifySound {
		notifier = append(notifier, notify.NewCommand(log, "sound", cfg.NotifySoundCommand, cfg.NotifyTimeout))
	}

	observer := bridge.MultiObserver{
		metrics,
		history.NewRecorder(log.With("component", "history"), store),
		publisher,
	}

	handle := yubikey.NewOATHDevice(oath.NewPCSC(), cfg.OATHPassword)
	arb := bridge.New(bridge.Config{
		QueueDepth:  cfg.QueueDepth,
		CodeTimeout: cfg.CodeTimeout,
		ListTimeout: cfg.ListTimeout,
	}, log.With("component", "bridge"), handle, notifier, observer)

	metrics.ObserveQueueDepth(func() float64 { return float64(arb.Status().QueueDepth) })
	metrics.ObserveEventStream(
		func() float64 { return float64(hub.Clients()) },
		func() float64 { return float64(hub.Dropped()) },
	)

	api := restapi.NewHandler(log.With("component", "restapi"), arb, store)

	return &App{
		cfg:     cfg,
		log:     log,
		arb:     arb,
		hub:     hub,
		gateway: gateway,
		metrics: metrics,
		api:     api,
		store:   store,
		pool:    pool,
	}, nil
}

// Run starts the arbiter worker and the enabled transports, then blocks
// until ctx is canceled or a server fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.arb.Run(gctx) })

	if a.cfg.HTTPEnabled {
		g.Go(func() error { return a.runHTTP(gctx) })
	}
	if a.cfg.SocketEnabled {
		socket := socketserver.New(a.log.With("component", "socket"), a.arb, socketserver.Config{
			Addr:        a.cfg.SocketAddr,
			IdleTimeout: a.cfg.SocketIdleTimeout,
		})
		g.Go(func() error { return socket.ListenAndServe(gctx) })
	}

	err := g.Wait()

	if cerr := a.store.Close(); cerr != nil {
		a.log.Error("store.close.fail", "err", cerr)
	}
	if a.pool != nil {
		a.pool.Close()
	}

	if err != nil {
		a.log.Error("server.fail", "err", err)
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.api, a.arb.Status, a.pool, a.metrics.Handler(), a.gateway)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}
	a.log.Info("server.stop", "reason", "context_done")
	return nil
}

// newStore decides between Postgres-backed audit history and the in-memory
// ring.
func newStore(ctx context.Context, cfg Config, log Logger) (history.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("history.store.memory", "capacity", cfg.HistoryLimit)
		return history.NewMemoryStore(cfg.HistoryLimit), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := history.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("history.store.postgres")
	return store, pool, nil
}
