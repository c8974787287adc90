// Package metrics exposes parse outcomes as Prometheus counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Recorder implements parser.Observer and counts statement-level results.
type Recorder struct {
	statements    *prometheus.CounterVec
	transactions  *prometheus.CounterVec
	skippedBlocks *prometheus.CounterVec
	fallbacks     prometheus.Counter
	parseLatency  *prometheus.HistogramVec
}

// NewRecorder creates the collectors under namespace.
func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Statements processed, by bank and outcome",
			},
			[]string{"bank", "outcome"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transactions emitted, by direction and deciding tier",
			},
			[]string{"direction", "tier"},
		),
		skippedBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_blocks_total",
				Help:      "Transaction blocks dropped, by reason",
			},
			[]string{"reason"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "amount_fallbacks_total",
				Help:      "Amounts taken from the first raw candidate because no candidate survived filtering",
			},
		),
		parseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Time to extract and parse one statement",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"source"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (r *Recorder) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.statements,
		r.transactions,
		r.skippedBlocks,
		r.fallbacks,
		r.parseLatency,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// BlockSkipped records a dropped block.
func (r *Recorder) BlockSkipped(reason string) {
	r.skippedBlocks.WithLabelValues(reason).Inc()
}

// TransactionParsed records an emitted transaction.
func (r *Recorder) TransactionParsed(direction models.Direction, tier string, fallback bool) {
	r.transactions.WithLabelValues(string(direction), tier).Inc()
	if fallback {
		r.fallbacks.Inc()
	}
}

// StatementDone records one statement. source is "pdf" or "text".
func (r *Recorder) StatementDone(bank models.BankType, source string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if bank == "" {
		bank = "unknown"
	}
	r.statements.WithLabelValues(string(bank), outcome).Inc()
	r.parseLatency.WithLabelValues(source).Observe(d.Seconds())
}
