package llmqd

import (
	"math"
	"time"

	"github.com/piratecash/llmqd/build"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// exportPrometheusStats registers the daemon level metrics with reg.
func exportPrometheusStats(reg prometheus.Registerer, s *server) error {
	ltndLog.Info("Adding static Prometheus stats")

	versionGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llmqd_version",
			Help: "Version of llmqd running.",
		},
		[]string{"version", "commit"},
	)
	versionGauge.WithLabelValues(build.Version(), build.Commit).Set(1)

	startTime := time.Now()
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "llmqd_uptime",
			Help: "Uptime of llmqd in seconds.",
		},
		func() float64 {
			return time.Since(startTime).Seconds()
		},
	)

	// Could be a counter, but the tip of a real chain can go back during
	// a reorg.
	blockHeight := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "llmqd_block_height",
			Help: "Height of the best chain.",
		},
		func() float64 {
			tip := s.network.Tip()
			if tip == nil {
				return math.NaN()
			}

			return float64(tip.Height())
		},
	)

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
		versionGauge,
		uptime,
		blockHeight,
		newMasternodeCollector(s),
		newConnectionCollector(s),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// masternodeCollector exports the size of the masternode list at the tip.
type masternodeCollector struct {
	server *server

	countDesc *prometheus.Desc
}

func newMasternodeCollector(s *server) prometheus.Collector {
	return &masternodeCollector{
		server: s,
		countDesc: prometheus.NewDesc(
			"llmqd_masternodes",
			"Number of masternodes in the list at the tip.",
			[]string{"state"}, nil,
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *masternodeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
}

// Collect is part of the prometheus.Collector interface.
func (c *masternodeCollector) Collect(ch chan<- prometheus.Metric) {
	tip := c.server.network.Tip()
	list, err := c.server.network.Lists().ListForBlock(tip)
	if err != nil {
		ltndLog.Debugf("Unable to collect masternode stats: %v", err)
		return
	}

	valid := list.ValidCount()
	ch <- prometheus.MustNewConstMetric(
		c.countDesc, prometheus.GaugeValue, float64(valid), "valid",
	)
	ch <- prometheus.MustNewConstMetric(
		c.countDesc, prometheus.GaugeValue,
		float64(list.AllCount()-valid), "banned",
	)
}

// connectionCollector exports what the quorum engine asked the connection
// manager to do.
type connectionCollector struct {
	server *server

	quorumsDesc *prometheus.Desc
	probesDesc  *prometheus.Desc
}

func newConnectionCollector(s *server) prometheus.Collector {
	return &connectionCollector{
		server: s,
		quorumsDesc: prometheus.NewDesc(
			"llmqd_connected_quorums",
			"Number of quorums with requested connections.",
			nil, nil,
		),
		probesDesc: prometheus.NewDesc(
			"llmqd_pending_probes",
			"Number of masternodes with a requested probe.",
			nil, nil,
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *connectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.quorumsDesc
	ch <- c.probesDesc
}

// Collect is part of the prometheus.Collector interface.
func (c *connectionCollector) Collect(ch chan<- prometheus.Metric) {
	connMan := c.server.connMan

	ch <- prometheus.MustNewConstMetric(
		c.quorumsDesc, prometheus.GaugeValue,
		float64(connMan.QuorumCount()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.probesDesc, prometheus.GaugeValue,
		float64(len(connMan.PendingProbes())),
	)
}
