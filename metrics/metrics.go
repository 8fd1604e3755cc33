// Package metrics exports lock service statistics to Prometheus.
package metrics

import (
	"github.com/enverbisevac/dmutex/lock"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is implemented by *lock.Service.
type StatsSource interface {
	Stats() lock.Stats
}

type counter struct {
	desc  *prometheus.Desc
	value func(lock.Stats) float64
}

// Collector reads a fresh Stats snapshot on every scrape.
type Collector struct {
	src      StatsSource
	counters []counter
	held     *prometheus.Desc
	holdTime *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for src. Metric names are prefixed with
// namespace, "dmutex" when empty.
func NewCollector(src StatsSource, namespace string) *Collector {
	if namespace == "" {
		namespace = "dmutex"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "lock", name), help, nil, nil)
	}

	return &Collector{
		src: src,
		counters: []counter{
			{desc("acquired_total", "Total number of successful lock acquisitions"),
				func(s lock.Stats) float64 { return float64(s.Acquired) }},
			{desc("timeouts_total", "Total number of acquisitions that timed out"),
				func(s lock.Stats) float64 { return float64(s.Timeouts) }},
			{desc("cancelled_total", "Total number of acquisitions stopped by the caller"),
				func(s lock.Stats) float64 { return float64(s.Cancelled) }},
			{desc("released_total", "Total number of lock records deleted by their owner"),
				func(s lock.Stats) float64 { return float64(s.Released) }},
			{desc("release_skipped_total", "Total number of unlocks that found another owner"),
				func(s lock.Stats) float64 { return float64(s.ReleaseSkipped) }},
			{desc("release_errors_total", "Total number of unlocks that failed against the store"),
				func(s lock.Stats) float64 { return float64(s.ReleaseErrors) }},
			{desc("backend_errors_total", "Total number of store errors while acquiring"),
				func(s lock.Stats) float64 { return float64(s.BackendErrors) }},
		},
		held:     desc("held", "Current number of locks held"),
		holdTime: desc("hold_seconds_total", "Cumulative hold time of released locks"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.held
	ch <- c.holdTime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, m.value(stats))
	}
	ch <- prometheus.MustNewConstMetric(c.held, prometheus.GaugeValue, float64(stats.Held))
	ch <- prometheus.MustNewConstMetric(c.holdTime, prometheus.CounterValue, stats.TotalHoldDuration.Seconds())
}

// Register registers a collector for src on reg.
func Register(reg prometheus.Registerer, src StatsSource, namespace string) error {
	return reg.Register(NewCollector(src, namespace))
}
