package perf

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "journey"

// Collector exposes a Monitor as Prometheus metrics. Values are read from
// the monitor at scrape time.
type Collector struct {
	m *Monitor

	executions   *prometheus.Desc
	execSeconds  *prometheus.Desc
	avgSeconds   *prometheus.Desc
	maxSeconds   *prometheus.Desc
	cacheHits    *prometheus.Desc
	cacheMisses  *prometheus.Desc
	cacheHitRate *prometheus.Desc
	errors       *prometheus.Desc
	warnings     *prometheus.Desc
	memory       *prometheus.Desc
	previewLines *prometheus.Desc
	health       *prometheus.Desc
}

// NewCollector returns a Collector reading from m.
func NewCollector(m *Monitor) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "preview", name), help, labels, nil)
	}
	return &Collector{
		m:            m,
		executions:   desc("executions_total", "Completed timed tasks."),
		execSeconds:  desc("execution_seconds_total", "Cumulative task execution time."),
		avgSeconds:   desc("execution_seconds_avg", "Average task execution time."),
		maxSeconds:   desc("execution_seconds_max", "Longest task execution time."),
		cacheHits:    desc("cache_hits_total", "Cache hits reported to the monitor."),
		cacheMisses:  desc("cache_misses_total", "Cache misses reported to the monitor."),
		cacheHitRate: desc("cache_hit_rate", "Cache hit rate."),
		errors:       desc("errors_total", "Recorded errors."),
		warnings:     desc("warnings_total", "Recorded warnings."),
		memory:       desc("memory_bytes", "Heap in use at the last sample."),
		previewLines: desc("lines", "Preview lines on the canvas by state.", "state"),
		health:       desc("health_status", "0 good, 1 warning, 2 critical."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.executions, c.execSeconds, c.avgSeconds, c.maxSeconds,
		c.cacheHits, c.cacheMisses, c.cacheHitRate,
		c.errors, c.warnings, c.memory, c.previewLines, c.health,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	mt := c.m.Metrics()
	st := c.m.Statistics()
	health := c.m.HealthStatus()

	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.executions, float64(mt.LayoutExecutions))
	counter(c.execSeconds, mt.TotalExecutionTime.Seconds())
	gauge(c.avgSeconds, mt.AverageExecutionTime.Seconds())
	gauge(c.maxSeconds, mt.MaxExecutionTime.Seconds())
	counter(c.cacheHits, float64(mt.CacheHits))
	counter(c.cacheMisses, float64(mt.CacheMisses))
	gauge(c.cacheHitRate, mt.CacheHitRate)
	counter(c.errors, float64(mt.ErrorCount))
	counter(c.warnings, float64(mt.WarningCount))
	gauge(c.memory, float64(mt.MemoryUsage))
	gauge(c.previewLines, float64(st.ActivePreviewLines), "free")
	gauge(c.previewLines, float64(st.DraggingPreviewLines), "dragging")
	gauge(c.previewLines, float64(st.ConnectedPreviewLines), "connected")
	gauge(c.health, healthValue(health.Status))
}

func healthValue(status string) float64 {
	switch status {
	case HealthWarning:
		return 1
	case HealthCritical:
		return 2
	default:
		return 0
	}
}
