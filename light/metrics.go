package light

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "light"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Seqno of the trusted key block.
	TrustedSeqno metrics.Gauge
	// Number of validators in the trusted set.
	Validators metrics.Gauge
	// Number of key blocks accepted.
	KeyBlocks metrics.Counter
	// Number of blocks that passed CheckBlock.
	CheckedBlocks metrics.Counter
	// Number of transactions proven included.
	CheckedTransactions metrics.Counter
	// Number of rejected blocks and proofs, by reason.
	VerificationFailures metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		TrustedSeqno: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "trusted_seqno",
			Help:      "Seqno of the latest trusted key block.",
		}, labels).With(labelsAndValues...),
		Validators: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "validators",
			Help:      "Number of validators in the trusted set.",
		}, labels).With(labelsAndValues...),
		KeyBlocks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "key_blocks",
			Help:      "Number of key blocks accepted.",
		}, labels).With(labelsAndValues...),
		CheckedBlocks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "checked_blocks",
			Help:      "Number of blocks proven authentic.",
		}, labels).With(labelsAndValues...),
		CheckedTransactions: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "checked_transactions",
			Help:      "Number of transactions proven included in an authentic block.",
		}, labels).With(labelsAndValues...),
		VerificationFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "verification_failures",
			Help:      "Number of rejected blocks and proofs.",
		}, append(labels, "reason")).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		TrustedSeqno:         discard.NewGauge(),
		Validators:           discard.NewGauge(),
		KeyBlocks:            discard.NewCounter(),
		CheckedBlocks:        discard.NewCounter(),
		CheckedTransactions:  discard.NewCounter(),
		VerificationFailures: discard.NewCounter(),
	}
}
