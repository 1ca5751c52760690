// Package metrics exposes the tutor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/koscakluka/ema-tutor/core/directives"
	"github.com/koscakluka/ema-tutor/core/tutoring"
)

const namespace = "tutor"

// Metrics implements [tutoring.Recorder] and counts connections.
type Metrics struct {
	directivesDispatched *prometheus.CounterVec
	audioFlushedBytes    prometheus.Counter
	audioFlushes         prometheus.Counter
	turns                *prometheus.HistogramVec
	openConnections      prometheus.Gauge
	rateLimited          prometheus.Counter
}

var _ tutoring.Recorder = (*Metrics)(nil)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		directivesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directives_dispatched_total",
			Help:      "Directives dispatched to clients by kind and result",
		}, []string{"kind", "result"}),
		audioFlushedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_flushed_bytes_total",
			Help:      "Bytes of synthesized audio sent to clients",
		}),
		audioFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_flushes_total",
			Help:      "Audio messages sent to clients",
		}),
		turns: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of generation turns by outcome",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
		openConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Client connections currently open",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_messages_total",
			Help:      "Inbound messages rejected by the per connection rate limit",
		}),
	}
}

func (m *Metrics) DirectiveDispatched(kind directives.Kind, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.directivesDispatched.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) AudioFlushed(bytes int) {
	m.audioFlushes.Inc()
	m.audioFlushedBytes.Add(float64(bytes))
}

func (m *Metrics) TurnFinished(outcome string, elapsed time.Duration) {
	m.turns.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ConnectionOpened() { m.openConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.openConnections.Dec() }
func (m *Metrics) RateLimited()      { m.rateLimited.Inc() }
