package perf

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// newTestMonitor returns a monitor on a manual clock with a fixed memory
// sampler that tests can adjust through the returned pointer.
func newTestMonitor(t *testing.T, mutate func(c *types.MonitorConfig)) (*Monitor, *schedule.ManualClock, *uint64) {
	t.Helper()
	cfg := types.DefaultMonitorConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := schedule.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := new(uint64)
	*mem = 10 << 20
	m := New(cfg, WithClock(clock), WithMemorySampler(func() uint64 { return *mem }))
	return m, clock, mem
}

func runTask(m *Monitor, clock *schedule.ManualClock, id string, d time.Duration) Execution {
	m.StartTask(id, nil)
	clock.Advance(d)
	exec, _ := m.EndTask(id, Result{})
	return exec
}

func TestStartEndTask(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	before := m.Metrics().LayoutExecutions

	m.StartTask("t1", map[string]any{"node": "n1"})
	clock.Advance(5 * time.Millisecond)
	rec, ok := m.EndTask("t1", Result{Data: map[string]any{"ok": true}})

	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.ExecutionTime, time.Duration(0))
	assert.Equal(t, 5*time.Millisecond, rec.ExecutionTime)
	assert.True(t, rec.Success)
	assert.Equal(t, before+1, m.Metrics().LayoutExecutions)
	assert.Equal(t, "n1", rec.Metadata["node"])
}

func TestEndUnknownTaskWarns(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	_, ok := m.EndTask("nope", Result{})
	assert.False(t, ok)
	mt := m.Metrics()
	assert.Zero(t, mt.LayoutExecutions)
	assert.Equal(t, uint64(1), mt.WarningCount)
}

func TestTimingAliases(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	m.StartTiming("a", nil)
	clock.Advance(time.Millisecond)
	_, ok := m.EndTiming("a", Result{})
	assert.True(t, ok)
}

func TestAggregates(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	runTask(m, clock, "a", 10*time.Millisecond)
	runTask(m, clock, "b", 30*time.Millisecond)
	runTask(m, clock, "c", 20*time.Millisecond)

	mt := m.Metrics()
	assert.Equal(t, uint64(3), mt.LayoutExecutions)
	assert.Equal(t, 60*time.Millisecond, mt.TotalExecutionTime)
	assert.Equal(t, 20*time.Millisecond, mt.AverageExecutionTime)
	assert.Equal(t, 30*time.Millisecond, mt.MaxExecutionTime)
	assert.Equal(t, 10*time.Millisecond, mt.MinExecutionTime)
}

func TestFailedResultCountsError(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	m.StartTask("t", nil)
	clock.Advance(time.Millisecond)
	rec, ok := m.EndTask("t", Result{Err: errors.New("boom")})
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.Equal(t, "boom", rec.Error)
	assert.Equal(t, uint64(1), m.Metrics().ErrorCount)
	assert.InDelta(t, 1.0, m.ErrorRate(), 1e-9)

	report := m.Report()
	require.Len(t, report.RecentErrors, 1)
	assert.Equal(t, "t", report.RecentErrors[0].Kind)
	assert.Equal(t, "boom", report.RecentErrors[0].Message)
}

func TestErrorRateStaysWithinOne(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	for i := range 4 {
		m.StartTask("t", nil)
		clock.Advance(time.Millisecond)
		var err error
		if i%2 == 0 {
			err = errors.New("boom")
		}
		m.EndTask("t", Result{Err: err})
	}
	assert.Equal(t, uint64(2), m.Metrics().ErrorCount)
	assert.InDelta(t, 0.5, m.ErrorRate(), 1e-9)

	m.RecordError("io", errors.New("disk"), nil)
	assert.Equal(t, uint64(3), m.Metrics().ErrorCount)
}

func TestHistoryIsBounded(t *testing.T) {
	m, clock, _ := newTestMonitor(t, func(c *types.MonitorConfig) { c.MaxHistorySize = 5 })
	for i := 0; i < 12; i++ {
		runTask(m, clock, fmt.Sprintf("t%d", i), time.Millisecond)
	}
	h := m.History()
	require.Len(t, h, 5)
	assert.Equal(t, "t7", h[0].TaskID)
	assert.Equal(t, "t11", h[4].TaskID)
	assert.Equal(t, uint64(12), m.Metrics().LayoutExecutions)
}

func TestSlowExecutionWarning(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	runTask(m, clock, "slow", 80*time.Millisecond)

	r := m.Report()
	require.Len(t, r.RecentWarnings, 1)
	assert.Equal(t, WarnSlowExecution, r.RecentWarnings[0].Kind)
	assert.Equal(t, HealthWarning, r.Health.Status)
	assert.Equal(t, []string{IssuePerformance}, r.Health.Issues)
}

func TestCacheHitRate(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	assert.Equal(t, HealthGood, m.HealthStatus().Status, "no cache traffic is not a cache issue")

	m.RecordCacheHit("k", nil)
	m.RecordCacheHit("k", nil)
	m.RecordCacheHit("k", nil)
	m.RecordCacheMiss("k", nil)
	assert.InDelta(t, 0.75, m.Metrics().CacheHitRate, 1e-9)
	assert.Equal(t, []string{IssueCache}, m.HealthStatus().Issues)
}

func TestHealthCritical(t *testing.T) {
	m, clock, mem := newTestMonitor(t, nil)
	*mem = 200 << 20
	m.RecordCacheMiss("k", nil)
	runTask(m, clock, "slow", 100*time.Millisecond)

	h := m.HealthStatus()
	assert.Equal(t, HealthCritical, h.Status)
	assert.ElementsMatch(t, []string{IssuePerformance, IssueCache, IssueMemory}, h.Issues)
}

func TestMemoryMonitoringDisabled(t *testing.T) {
	m, clock, mem := newTestMonitor(t, func(c *types.MonitorConfig) { c.EnableMemoryMonitoring = false })
	*mem = 500 << 20
	rec := runTask(m, clock, "t", time.Millisecond)
	assert.Zero(t, rec.EndMemory)
	assert.Zero(t, m.Metrics().PeakMemoryUsage)
	assert.Equal(t, HealthGood, m.HealthStatus().Status)
}

func TestMetricsDisabled(t *testing.T) {
	m, _, _ := newTestMonitor(t, func(c *types.MonitorConfig) { c.EnableMetrics = false })
	m.StartTask("t", nil)
	_, ok := m.EndTask("t", Result{})
	assert.False(t, ok)
	assert.Zero(t, m.Metrics().WarningCount)
}

func TestTrendAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      string
	}{
		{"single sample", []time.Duration{time.Millisecond}, TrendInsufficient},
		{"increasing", []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond}, TrendIncreasing},
		{"decreasing", []time.Duration{20 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, TrendDecreasing},
		{"stable", []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock, _ := newTestMonitor(t, nil)
			for i, d := range tt.durations {
				runTask(m, clock, fmt.Sprintf("t%d", i), d)
			}
			assert.Equal(t, tt.want, m.TrendAnalysis().Trend)
		})
	}

	t.Run("average and variance", func(t *testing.T) {
		m, clock, _ := newTestMonitor(t, nil)
		runTask(m, clock, "a", 10*time.Millisecond)
		runTask(m, clock, "b", 20*time.Millisecond)
		tr := m.TrendAnalysis()
		assert.Equal(t, 15*time.Millisecond, tr.Average)
		assert.InDelta(t, 25.0, tr.Variance, 1e-9)
		assert.InDelta(t, 100.0, tr.ChangePercent, 1e-9)
	})
}

func TestReportWindows(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	for i := 0; i < 15; i++ {
		runTask(m, clock, fmt.Sprintf("t%d", i), time.Millisecond)
	}
	for i := 0; i < 8; i++ {
		m.RecordWarning("custom", fmt.Sprintf("w%d", i), nil)
		m.RecordError("custom", fmt.Errorf("e%d", i), nil)
	}
	m.StartTask("open", nil)

	r := m.Report()
	assert.Len(t, r.RecentExecutions, 10)
	assert.Len(t, r.RecentWarnings, 5)
	assert.Len(t, r.RecentErrors, 5)
	assert.Equal(t, "e7", r.RecentErrors[4].Message)
	assert.Equal(t, []string{"open"}, r.ActiveTasks)
	assert.Equal(t, uint64(15), r.Summary.TotalExecutions)
}

func TestResetMetricsKeepsConfig(t *testing.T) {
	m, clock, _ := newTestMonitor(t, func(c *types.MonitorConfig) { c.MaxHistorySize = 7 })
	runTask(m, clock, "t", time.Millisecond)
	m.RecordCacheHit("k", nil)
	m.UpdatePreviewStatistics(Statistics{TotalPreviewLines: 3})

	m.ResetMetrics()
	assert.Equal(t, Metrics{}, m.Metrics())
	assert.Empty(t, m.History())
	assert.Zero(t, m.Statistics().TotalPreviewLines)
	assert.Equal(t, 7, m.Config().MaxHistorySize)
}

func TestExportImport(t *testing.T) {
	src, clock, _ := newTestMonitor(t, nil)
	runTask(src, clock, "a", 3*time.Millisecond)
	src.RecordWarning("custom", "hello", nil)
	src.UpdatePreviewStatistics(Statistics{TotalPreviewLines: 2, ActivePreviewLines: 2})

	data, err := src.ExportJSON()
	require.NoError(t, err)

	dst, _, _ := newTestMonitor(t, nil)
	require.NoError(t, dst.ImportJSON(data))
	assert.Equal(t, src.Metrics(), dst.Metrics())
	assert.Len(t, dst.History(), 1)
	assert.Equal(t, 2, dst.Statistics().TotalPreviewLines)

	assert.Error(t, dst.ImportJSON([]byte("{")))
}

func TestMemoryEfficiency(t *testing.T) {
	m, clock, mem := newTestMonitor(t, nil)
	*mem = 40 << 20
	runTask(m, clock, "a", time.Millisecond)
	*mem = 20 << 20
	runTask(m, clock, "b", time.Millisecond)

	me := m.MemoryEfficiency()
	assert.Equal(t, uint64(20<<20), me.Current)
	assert.Equal(t, uint64(40<<20), me.Peak)
	assert.InDelta(t, 0.5, me.Efficiency, 1e-9)

	ds := m.DetailedStats()
	assert.Equal(t, 2, ds.HistorySize)
	assert.Equal(t, TrendStable, ds.Trend.Trend)
}

func TestCollector(t *testing.T) {
	m, clock, _ := newTestMonitor(t, nil)
	runTask(m, clock, "a", 2*time.Millisecond)
	m.RecordCacheHit("k", nil)
	m.UpdatePreviewStatistics(Statistics{ActivePreviewLines: 3, ConnectedPreviewLines: 1})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(m)))
	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}
	require.Contains(t, byName, "journey_preview_executions_total")
	assert.Equal(t, 1.0, byName["journey_preview_executions_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, byName["journey_preview_cache_hit_rate"].GetMetric()[0].GetGauge().GetValue())

	lines := byName["journey_preview_lines"].GetMetric()
	require.Len(t, lines, 3)
	values := map[string]float64{}
	for _, mm := range lines {
		values[mm.GetLabel()[0].GetValue()] = mm.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"free": 3, "dragging": 0, "connected": 1}, values)
}
