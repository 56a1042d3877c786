package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Berghmans/yk-daemon/cmd/bridge"
	"github.com/Berghmans/yk-daemon/cmd/yubikey"
)

// Metrics owns the daemon's Prometheus collectors. It plugs into the
// arbiter as an observer; gauges over live components (queue depth, event
// stream clients) are registered later via the Observe* methods once those
// components exist.
type Metrics struct {
	reg *prometheus.Registry

	ops             *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	deviceConnected prometheus.Gauge
}

// NewMetrics builds the collectors on a private registry, so constructing
// two Apps in one process (tests) cannot collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ykdaemon_ops_total",
			Help: "Completed operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ykdaemon_op_duration_seconds",
			Help: "Operation execution time, queue wait excluded.",
			// Touch waits dominate; buckets reach past the 30s window.
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"kind"}),
		deviceConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ykdaemon_device_connected",
			Help: "1 while the device session is connected.",
		}),
	}
}

// ObserveQueueDepth registers a live gauge over the arbiter queue.
func (m *Metrics) ObserveQueueDepth(depth func() float64) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ykdaemon_queue_depth",
		Help: "Operations currently queued for the device worker.",
	}, depth)
}

// ObserveEventStream registers gauges over the WebSocket hub.
func (m *Metrics) ObserveEventStream(clients func() float64, dropped func() float64) {
	factory := promauto.With(m.reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ykdaemon_ws_clients",
		Help: "Connected event stream subscribers.",
	}, clients)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "ykdaemon_ws_dropped_total",
		Help: "Events dropped due to subscriber backpressure.",
	}, dropped)
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// OperationDone implements bridge.Observer.
func (m *Metrics) OperationDone(_ context.Context, c bridge.Completion) {
	m.ops.WithLabelValues(string(c.Kind), c.Outcome).Inc()
	m.duration.WithLabelValues(string(c.Kind)).Observe(c.Duration().Seconds())
}

// DeviceState implements bridge.Observer.
func (m *Metrics) DeviceState(_ context.Context, state yubikey.State, _ yubikey.Info) {
	if state == yubikey.StateConnected {
		m.deviceConnected.Set(1)
		return
	}
	m.deviceConnected.Set(0)
}
