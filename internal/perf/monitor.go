// Package perf implements the performance monitor wrapped around preview
// operations: paired task timings kept in a bounded history, running
// aggregates, cache hit accounting, threshold warnings, and derived health,
// trend, and report views.
//
// The monitor never fails its callers. Threshold breaches and unknown task
// ids become warning records and log lines.
package perf

import (
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// Report window sizes.
const (
	recentExecutions = 10
	recentRecords    = 5
	trendWindow      = 20
	trendChange      = 0.1
	criticalIssues   = 2
)

// Warning kinds.
const (
	WarnSlowExecution = "slow_execution"
	WarnHighMemory    = "high_memory"
	WarnLowHitRate    = "low_cache_hit_rate"
	WarnUnknownTask   = "unknown_task"
)

type activeTask struct {
	start    time.Time
	memory   uint64
	metadata map[string]any
}

// Monitor collects task timings and health signals.
type Monitor struct {
	cfg    types.MonitorConfig
	clock  schedule.Clock
	log    zerolog.Logger
	memory func() uint64

	mu       sync.Mutex
	active   map[string]activeTask
	history  []Execution
	warnings []Record
	errors   []Record
	metrics  Metrics
	stats    Statistics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock used for timings.
func WithClock(c schedule.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.log = l.With().Str("component", "perf").Logger() }
}

// WithMemorySampler replaces the heap sampler used when memory monitoring
// is enabled.
func WithMemorySampler(fn func() uint64) Option {
	return func(m *Monitor) { m.memory = fn }
}

// New creates a Monitor. Zero-valued fields in cfg take the defaults from
// types.DefaultMonitorConfig, except the two enable flags.
func New(cfg types.MonitorConfig, opts ...Option) *Monitor {
	def := types.DefaultMonitorConfig()
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = def.MaxHistorySize
	}
	if cfg.ExecutionTimeThreshold <= 0 {
		cfg.ExecutionTimeThreshold = def.ExecutionTimeThreshold
	}
	if cfg.MemoryUsageThreshold == 0 {
		cfg.MemoryUsageThreshold = def.MemoryUsageThreshold
	}
	m := &Monitor{
		cfg:    cfg,
		clock:  schedule.Real(),
		log:    zerolog.Nop(),
		memory: heapAlloc,
		active: make(map[string]activeTask),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Config returns the monitor configuration.
func (m *Monitor) Config() types.MonitorConfig {
	return m.cfg
}

func (m *Monitor) sampleMemory() uint64 {
	if !m.cfg.EnableMemoryMonitoring || m.memory == nil {
		return 0
	}
	return m.memory()
}

// StartTask opens a timed span named taskID. Starting an id that is already
// open restarts it.
func (m *Monitor) StartTask(taskID string, metadata map[string]any) string {
	if !m.cfg.EnableMetrics {
		return taskID
	}
	mem := m.sampleMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[taskID] = activeTask{start: m.clock.Now(), memory: mem, metadata: metadata}
	return taskID
}

// StartTiming is an alias of StartTask.
func (m *Monitor) StartTiming(taskID string, metadata map[string]any) string {
	return m.StartTask(taskID, metadata)
}

// EndTask closes the span taskID, records it, and checks thresholds. A
// failed result counts as one error and is kept with the error records. It
// returns false when metrics are disabled or no such span is open.
func (m *Monitor) EndTask(taskID string, result Result) (Execution, bool) {
	if !m.cfg.EnableMetrics {
		return Execution{}, false
	}
	mem := m.sampleMemory()

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.active[taskID]
	if !ok {
		m.addWarningLocked(WarnUnknownTask, fmt.Sprintf("no active task %q", taskID), nil)
		return Execution{}, false
	}
	delete(m.active, taskID)

	end := m.clock.Now()
	exec := Execution{
		TaskID:        taskID,
		StartTime:     task.start,
		EndTime:       end,
		ExecutionTime: end.Sub(task.start),
		StartMemory:   task.memory,
		EndMemory:     mem,
		MemoryDelta:   int64(mem) - int64(task.memory),
		Metadata:      task.metadata,
		Success:       result.Err == nil,
		Data:          result.Data,
	}
	if result.Err != nil {
		exec.Error = result.Err.Error()
		m.metrics.ErrorCount++
		m.errors = m.appendBounded(m.errors, Record{Kind: taskID, Message: exec.Error, Timestamp: end, Data: task.metadata})
		m.log.Error().Str("task", taskID).Err(result.Err).Msg("task failed")
	}

	m.history = append(m.history, exec)
	if over := len(m.history) - m.cfg.MaxHistorySize; over > 0 {
		m.history = slices.Delete(m.history, 0, over)
	}

	mt := &m.metrics
	mt.LayoutExecutions++
	mt.TotalExecutionTime += exec.ExecutionTime
	mt.AverageExecutionTime = mt.TotalExecutionTime / time.Duration(mt.LayoutExecutions)
	if exec.ExecutionTime > mt.MaxExecutionTime {
		mt.MaxExecutionTime = exec.ExecutionTime
	}
	if mt.LayoutExecutions == 1 || exec.ExecutionTime < mt.MinExecutionTime {
		mt.MinExecutionTime = exec.ExecutionTime
	}
	if m.cfg.EnableMemoryMonitoring {
		mt.MemoryUsage = mem
		if mem > mt.PeakMemoryUsage {
			mt.PeakMemoryUsage = mem
		}
	}

	m.checkThresholdsLocked(exec)
	return exec, true
}

// EndTiming is an alias of EndTask.
func (m *Monitor) EndTiming(taskID string, result Result) (Execution, bool) {
	return m.EndTask(taskID, result)
}

func (m *Monitor) checkThresholdsLocked(exec Execution) {
	if exec.ExecutionTime > m.cfg.ExecutionTimeThreshold {
		m.addWarningLocked(WarnSlowExecution,
			fmt.Sprintf("task %s took %s", exec.TaskID, exec.ExecutionTime),
			map[string]any{"taskId": exec.TaskID, "executionTime": exec.ExecutionTime.String()})
	}
	if m.cfg.EnableMemoryMonitoring && exec.EndMemory > m.cfg.MemoryUsageThreshold {
		m.addWarningLocked(WarnHighMemory,
			fmt.Sprintf("memory use %d exceeds %d", exec.EndMemory, m.cfg.MemoryUsageThreshold),
			map[string]any{"taskId": exec.TaskID, "memory": exec.EndMemory})
	}
	if m.cacheTrafficLocked() && m.metrics.CacheHitRate < m.cfg.CacheHitRateThreshold {
		m.addWarningLocked(WarnLowHitRate,
			fmt.Sprintf("cache hit rate %.2f below %.2f", m.metrics.CacheHitRate, m.cfg.CacheHitRateThreshold),
			map[string]any{"taskId": exec.TaskID, "hitRate": m.metrics.CacheHitRate})
	}
}

func (m *Monitor) cacheTrafficLocked() bool {
	return m.metrics.CacheHits+m.metrics.CacheMisses > 0
}

// RecordCacheHit counts a cache hit for key.
func (m *Monitor) RecordCacheHit(key string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.CacheHits++
	m.updateHitRateLocked()
}

// RecordCacheMiss counts a cache miss for key.
func (m *Monitor) RecordCacheMiss(key string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.CacheMisses++
	m.updateHitRateLocked()
}

func (m *Monitor) updateHitRateLocked() {
	total := m.metrics.CacheHits + m.metrics.CacheMisses
	if total == 0 {
		m.metrics.CacheHitRate = 0
		return
	}
	m.metrics.CacheHitRate = float64(m.metrics.CacheHits) / float64(total)
}

// RecordError counts an error raised outside any task span and appends
// its record. Failures of a span are recorded by EndTask.
func (m *Monitor) RecordError(kind string, err error, data map[string]any) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.ErrorCount++
	m.errors = m.appendBounded(m.errors, Record{Kind: kind, Message: msg, Timestamp: m.clock.Now(), Data: data})
	m.log.Error().Str("kind", kind).Err(err).Msg("recorded error")
}

// RecordWarning appends a warning record.
func (m *Monitor) RecordWarning(kind, message string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addWarningLocked(kind, message, data)
}

func (m *Monitor) addWarningLocked(kind, message string, data map[string]any) {
	m.metrics.WarningCount++
	m.warnings = m.appendBounded(m.warnings, Record{Kind: kind, Message: message, Timestamp: m.clock.Now(), Data: data})
	m.log.Warn().Str("kind", kind).Msg(message)
}

func (m *Monitor) appendBounded(list []Record, r Record) []Record {
	list = append(list, r)
	if over := len(list) - m.cfg.MaxHistorySize; over > 0 {
		list = slices.Delete(list, 0, over)
	}
	return list
}

// UpdatePreviewStatistics replaces the preview line statistics.
func (m *Monitor) UpdatePreviewStatistics(s Statistics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastUpdated = m.clock.Now()
	m.stats = s
}

// Statistics returns the preview line statistics.
func (m *Monitor) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Metrics returns a copy of the running aggregates.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// History returns a copy of the execution history, oldest first.
func (m *Monitor) History() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// Report returns the summary view.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := m.metrics
	active := slices.Collect(maps.Keys(m.active))
	sort.Strings(active)
	return Report{
		Summary: Summary{
			TotalExecutions:      mt.LayoutExecutions,
			AverageExecutionTime: mt.AverageExecutionTime,
			MaxExecutionTime:     mt.MaxExecutionTime,
			MinExecutionTime:     mt.MinExecutionTime,
			CacheHitRate:         mt.CacheHitRate,
			MemoryUsage:          mt.MemoryUsage,
			PeakMemoryUsage:      mt.PeakMemoryUsage,
			ErrorCount:           mt.ErrorCount,
			WarningCount:         mt.WarningCount,
		},
		RecentExecutions: tail(m.history, recentExecutions),
		ActiveTasks:      active,
		RecentWarnings:   tail(m.warnings, recentRecords),
		RecentErrors:     tail(m.errors, recentRecords),
		Health:           m.healthLocked(),
		Statistics:       m.stats,
	}
}

func tail[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return slices.Clone(s)
}

// HealthStatus reports good, warning, or critical from threshold breaches.
func (m *Monitor) HealthStatus() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthLocked()
}

func (m *Monitor) healthLocked() HealthStatus {
	issues := []string{}
	if m.metrics.LayoutExecutions > 0 && m.metrics.AverageExecutionTime > m.cfg.ExecutionTimeThreshold {
		issues = append(issues, IssuePerformance)
	}
	if m.cacheTrafficLocked() && m.metrics.CacheHitRate < m.cfg.CacheHitRateThreshold {
		issues = append(issues, IssueCache)
	}
	if m.cfg.EnableMemoryMonitoring && m.metrics.MemoryUsage > m.cfg.MemoryUsageThreshold {
		issues = append(issues, IssueMemory)
	}
	status := HealthGood
	switch {
	case len(issues) > criticalIssues:
		status = HealthCritical
	case len(issues) > 0:
		status = HealthWarning
	}
	return HealthStatus{Status: status, Issues: issues}
}

// TrendAnalysis compares the first and second halves of the last twenty
// executions. A change above ten percent either way is a trend.
func (m *Monitor) TrendAnalysis() TrendAnalysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	recent := tail(m.history, trendWindow)
	if len(recent) < 2 {
		return TrendAnalysis{Trend: TrendInsufficient, Samples: len(recent)}
	}

	ms := make([]float64, len(recent))
	var sum float64
	for i, e := range recent {
		ms[i] = float64(e.ExecutionTime) / float64(time.Millisecond)
		sum += ms[i]
	}
	mean := sum / float64(len(ms))
	var variance float64
	for _, v := range ms {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(ms))

	half := len(ms) / 2
	first, second := avg(ms[:half]), avg(ms[half:])
	change := 0.0
	if first > 0 {
		change = (second - first) / first
	}
	trend := TrendStable
	switch {
	case change > trendChange:
		trend = TrendIncreasing
	case change < -trendChange:
		trend = TrendDecreasing
	}
	return TrendAnalysis{
		Trend:         trend,
		Samples:       len(ms),
		Average:       time.Duration(mean * float64(time.Millisecond)),
		Variance:      variance,
		ChangePercent: change * 100,
	}
}

func avg(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// MemoryEfficiency relates current memory use to the peak.
func (m *Monitor) MemoryEfficiency() MemoryEfficiency {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memoryEfficiencyLocked()
}

func (m *Monitor) memoryEfficiencyLocked() MemoryEfficiency {
	me := MemoryEfficiency{Current: m.metrics.MemoryUsage, Peak: m.metrics.PeakMemoryUsage, Efficiency: 1}
	if me.Peak > 0 {
		me.Efficiency = float64(me.Current) / float64(me.Peak)
	}
	if n := len(m.history); n > 0 {
		var total int64
		for _, e := range m.history {
			total += e.MemoryDelta
		}
		me.AverageDelta = total / int64(n)
	}
	return me
}

// ErrorRate returns errors per completed execution.
func (m *Monitor) ErrorRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorRateLocked()
}

func (m *Monitor) errorRateLocked() float64 {
	if m.metrics.LayoutExecutions == 0 {
		return 0
	}
	return float64(m.metrics.ErrorCount) / float64(m.metrics.LayoutExecutions)
}

// DetailedStats bundles every derived view.
func (m *Monitor) DetailedStats() DetailedStats {
	trend := m.TrendAnalysis()
	m.mu.Lock()
	defer m.mu.Unlock()
	return DetailedStats{
		Metrics:          m.metrics,
		Statistics:       m.stats,
		Health:           m.healthLocked(),
		Trend:            trend,
		MemoryEfficiency: m.memoryEfficiencyLocked(),
		ErrorRate:        m.errorRateLocked(),
		HistorySize:      len(m.history),
		ActiveTasks:      len(m.active),
	}
}

// ResetMetrics clears counters, history, records, and open spans. The
// configuration is kept.
func (m *Monitor) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = Metrics{}
	m.stats = Statistics{}
	m.history = nil
	m.warnings = nil
	m.errors = nil
	m.active = make(map[string]activeTask)
}

// Export returns a snapshot of the monitor state.
func (m *Monitor) Export() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ExportedAt: m.clock.Now(),
		Metrics:    m.metrics,
		Statistics: m.stats,
		History:    slices.Clone(m.history),
		Warnings:   slices.Clone(m.warnings),
		Errors:     slices.Clone(m.errors),
	}
}

// Import replaces the monitor state with s, trimming lists to the history
// bound.
func (m *Monitor) Import(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = s.Metrics
	m.stats = s.Statistics
	m.history = tail(s.History, m.cfg.MaxHistorySize)
	m.warnings = tail(s.Warnings, m.cfg.MaxHistorySize)
	m.errors = tail(s.Errors, m.cfg.MaxHistorySize)
}

// ExportJSON encodes Export as JSON.
func (m *Monitor) ExportJSON() ([]byte, error) {
	return json.Marshal(m.Export())
}

// ImportJSON decodes a snapshot produced by ExportJSON.
func (m *Monitor) ImportJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode monitor snapshot: %w", err)
	}
	m.Import(s)
	return nil
}
