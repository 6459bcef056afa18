package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketSignal/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	sentiment    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketsignal",
				Name:      "signals_total",
				Help:      "Recommendations issued by kind, target and signal",
			},
			[]string{"kind", "target", "signal"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketsignal",
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		sentiment: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "marketsignal",
				Name:      "sentiment_value",
				Help:      "Last aggregated sentiment per target, in [-1,1]",
			},
			[]string{"target"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "marketsignal",
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal counts an issued recommendation.
func (r *Recorder) RecordSignal(kind, target string, s models.Signal) {
	r.signalsTotal.WithLabelValues(kind, target, string(s)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSentiment records the last aggregated sentiment for a target.
func (r *Recorder) RecordSentiment(target string, value float64) {
	r.sentiment.WithLabelValues(target).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSignal(string, string, models.Signal) {}
func (Nop) RecordError(string)                          {}
func (Nop) RecordSentiment(string, float64)             {}
func (Nop) RecordLatency(string, float64)               {}
