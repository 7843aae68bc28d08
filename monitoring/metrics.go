package monitoring

import (
	"time"

	"github.com/piratecash/llmqd/llmq"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "llmqd"

// QuorumMetrics exports the events of the quorum engine as Prometheus
// metrics. It implements llmq.Metrics.
type QuorumMetrics struct {
	cacheLookups  *prometheus.CounterVec
	cycleBuilds   *prometheus.HistogramVec
	replays       *prometheus.CounterVec
	computeErrors *prometheus.CounterVec
}

// A compile time check to ensure QuorumMetrics satisfies the llmq.Metrics
// interface.
var _ llmq.Metrics = (*QuorumMetrics)(nil)

// NewQuorumMetrics creates the engine collectors and registers them with reg.
func NewQuorumMetrics(reg prometheus.Registerer) (*QuorumMetrics,
	error) {

	m := &QuorumMetrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "members",
				Name:      "cache_lookups_total",
				Help: "Membership cache lookups by quorum " +
					"type, cache kind and result.",
			},
			[]string{"llmq_type", "kind", "result"},
		),
		cycleBuilds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rotation",
				Name:      "cycle_build_seconds",
				Help:      "Time spent building rotation cycles.",
				Buckets: prometheus.ExponentialBuckets(
					0.0005, 2, 14,
				),
			},
			[]string{"llmq_type"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rotation",
				Name:      "snapshot_replays_total",
				Help:      "Snapshots replayed into quarters.",
			},
			[]string{"llmq_type"},
		),
		computeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "members",
				Name:      "compute_errors_total",
				Help:      "Membership computations that failed.",
			},
			[]string{"llmq_type"},
		),
	}

	collectors := []prometheus.Collector{
		m.cacheLookups, m.cycleBuilds, m.replays, m.computeErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CacheHit is part of the llmq.Metrics interface.
func (m *QuorumMetrics) CacheHit(t llmq.Type, kind string) {
	m.cacheLookups.WithLabelValues(t.String(), kind, "hit").Inc()
}

// CacheMiss is part of the llmq.Metrics interface.
func (m *QuorumMetrics) CacheMiss(t llmq.Type, kind string) {
	m.cacheLookups.WithLabelValues(t.String(), kind, "miss").Inc()
}

// CycleComputed is part of the llmq.Metrics interface.
func (m *QuorumMetrics) CycleComputed(t llmq.Type, took time.Duration) {
	m.cycleBuilds.WithLabelValues(t.String()).Observe(took.Seconds())
}

// SnapshotReplayed is part of the llmq.Metrics interface.
func (m *QuorumMetrics) SnapshotReplayed(t llmq.Type) {
	m.replays.WithLabelValues(t.String()).Inc()
}

// ComputeFailed is part of the llmq.Metrics interface.
func (m *QuorumMetrics) ComputeFailed(t llmq.Type) {
	m.computeErrors.WithLabelValues(t.String()).Inc()
}
