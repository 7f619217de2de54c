// Package metrics counts rounds, handshakes and envelopes on a private
// Prometheus registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"denim/internal/domain"
)

// Round kinds.
const (
	RoundMessage = "message"
	RoundCommand = "command"
)

// Directions.
const (
	Sent     = "sent"
	Received = "received"
)

// Metrics is safe for concurrent use. A nil *Metrics discards everything.
type Metrics struct {
	reg        *prometheus.Registry
	handshakes *prometheus.CounterVec
	duration   prometheus.Histogram
	envelopes  *prometheus.CounterVec
	rounds     *prometheus.CounterVec
}

// New registers denim's collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "denim",
			Name:      "handshakes_total",
			Help:      "Key exchange rounds by role and result.",
		}, []string{"role", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "denim",
			Name:      "handshake_duration_seconds",
			Help:      "Wall time of successful key exchanges.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "denim",
			Name:      "envelopes_total",
			Help:      "Envelopes by direction and result.",
		}, []string{"direction", "result"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "denim",
			Name:      "rounds_total",
			Help:      "Completed rounds by kind.",
		}, []string{"kind"}),
	}
	m.reg.MustRegister(m.handshakes, m.duration, m.envelopes, m.rounds)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Handshake records one key exchange attempt.
func (m *Metrics) Handshake(role domain.PeerRole, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(role.String(), result(err)).Inc()
	if err == nil {
		m.duration.Observe(took.Seconds())
	}
}

// Envelope records one envelope sent or received.
func (m *Metrics) Envelope(direction string, err error) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(direction, result(err)).Inc()
}

// Round records one completed round.
func (m *Metrics) Round(kind string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(kind).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrHandshakeTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrIntegrity):
		return "integrity"
	case errors.Is(err, domain.ErrAuthenticity):
		return "authenticity"
	case errors.Is(err, domain.ErrFraming):
		return "framing"
	case errors.Is(err, domain.ErrPeerClosed):
		return "closed"
	default:
		return "error"
	}
}
