package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinFusion/internal/domain/repository"
)

const namespace = "finfusion"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesProcessed *prometheus.CounterVec
	decisionLatency   *prometheus.HistogramVec
	activeDecisions   prometheus.Gauge
	reflectionDepth   prometheus.Histogram
	gateRejections    *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	lastPrice         *prometheus.GaugeVec
	activeSignals     prometheus.Gauge
}

var _ repository.Metrics = (*Recorder)(nil)

// Option configures Recorder.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New creates a new Prometheus metrics recorder.
func New(opts ...Option) *Recorder {
	o := &options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(o)
	}
	factory := promauto.With(o.registerer)

	return &Recorder{
		messagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_processed_total",
				Help:      "Decision cycles completed per agent",
			},
			[]string{"agent"},
		),
		decisionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_latency_seconds",
				Help:      "Time from cycle start to emitted decision",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"agent"},
		),
		activeDecisions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_decisions",
				Help:      "Decisions held in the in-memory history",
			},
		),
		reflectionDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reflection_depth",
				Help:      "Insights produced per batch reflection",
				Buckets:   prometheus.LinearBuckets(0, 1, 8),
			},
		),
		gateRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_rejections_total",
				Help:      "Decision cycles rejected per risk gate",
			},
			[]string{"gate"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_price",
				Help:      "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		activeSignals: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_signals",
				Help:      "Symbols held in the signal table",
			},
		),
	}
}

func (r *Recorder) RecordMessageProcessed(agent string) {
	r.messagesProcessed.WithLabelValues(agent).Inc()
}

func (r *Recorder) RecordDecisionLatency(agent string, seconds float64) {
	r.decisionLatency.WithLabelValues(agent).Observe(seconds)
}

func (r *Recorder) SetActiveDecisions(n int) {
	r.activeDecisions.Set(float64(n))
}

func (r *Recorder) RecordReflectionDepth(depth int) {
	r.reflectionDepth.Observe(float64(depth))
}

func (r *Recorder) RecordGateRejection(gate string) {
	r.gateRejections.WithLabelValues(gate).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) SetActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

// Nop discards every observation.
type Nop struct{}

var _ repository.Metrics = Nop{}

func (Nop) RecordMessageProcessed(string)         {}
func (Nop) RecordDecisionLatency(string, float64) {}
func (Nop) SetActiveDecisions(int)                {}
func (Nop) RecordReflectionDepth(int)             {}
func (Nop) RecordGateRejection(string)            {}
func (Nop) RecordError(string)                    {}
func (Nop) RecordLastPrice(string, float64)       {}
func (Nop) SetActiveSignals(int)                  {}
