package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesScanned  *prometheus.CounterVec
	candlesIngested *prometheus.CounterVec
	keyCandles      *prometheus.CounterVec
	signalsEmitted  *prometheus.CounterVec
	gridEvaluations *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	atrFallbacks    prometheus.Counter
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesScanned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_candles_scanned_total",
				Help: "Total number of candles examined by the detector",
			},
			[]string{"symbol"},
		),
		candlesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_candles_ingested_total",
				Help: "Total number of candles received from live feeds and stored",
			},
			[]string{"symbol"},
		),
		keyCandles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_key_candles_total",
				Help: "Total number of key candles flagged",
			},
			[]string{"symbol"},
		),
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_signals_total",
				Help: "Total number of breakout signals emitted",
			},
			[]string{"symbol", "direction"},
		),
		gridEvaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_grid_evaluations_total",
				Help: "Total number of grid-search candidate evaluations",
			},
			[]string{"stage"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rangepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		atrFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rangepulse_atr_fallbacks_total",
				Help: "Times the ATR service was unreachable and local computation was used",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rangepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandlesScanned adds to the scanned-candle counter.
func (r *Recorder) RecordCandlesScanned(symbol string, n int) {
	r.candlesScanned.WithLabelValues(symbol).Add(float64(n))
}

// RecordCandlesIngested adds to the live-feed ingestion counter.
func (r *Recorder) RecordCandlesIngested(symbol string, n int) {
	r.candlesIngested.WithLabelValues(symbol).Add(float64(n))
}

// RecordKeyCandle records a flagged key candle.
func (r *Recorder) RecordKeyCandle(symbol string) {
	r.keyCandles.WithLabelValues(symbol).Inc()
}

// RecordSignal records an emitted breakout signal.
func (r *Recorder) RecordSignal(symbol, direction string) {
	r.signalsEmitted.WithLabelValues(symbol, direction).Inc()
}

// RecordGridEvaluation records one grid-search candidate evaluation.
func (r *Recorder) RecordGridEvaluation(stage string) {
	r.gridEvaluations.WithLabelValues(stage).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordATRFallback records a fallback to local ATR computation.
func (r *Recorder) RecordATRFallback() {
	r.atrFallbacks.Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
