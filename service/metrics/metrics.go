package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pprelay"

// Metrics owns its own registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	frames      *prometheus.CounterVec // kind, result
	enqueued    *prometheus.CounterVec // namespace
	drained     *prometheus.CounterVec // namespace
	storeErrors *prometheus.CounterVec // op
	sessions    *prometheus.GaugeVec   // kind
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames by session kind and outcome.",
		}, []string{"kind", "result"}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_enqueued_total",
			Help:      "Messages parked in a pending queue.",
		}, []string{"namespace"}),
		drained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_drained_total",
			Help:      "Messages replayed from a pending queue.",
		}, []string{"namespace"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Pending store operations that failed after retries.",
		}, []string{"op"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open websocket sessions.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.frames, m.enqueued, m.drained, m.storeErrors, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Frame(kind, result string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Enqueued(ns string) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(ns).Inc()
}

func (m *Metrics) Drained(ns string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.drained.WithLabelValues(ns).Add(float64(n))
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionOpened(kind string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionClosed(kind string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(kind).Dec()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
