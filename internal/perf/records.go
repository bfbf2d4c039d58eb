package perf

import "time"

// Result is the outcome a caller reports when a task ends.
type Result struct {
	Err  error
	Data map[string]any
}

// Execution is one completed task in the history ring.
type Execution struct {
	TaskID        string         `json:"taskId"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	ExecutionTime time.Duration  `json:"executionTime"`
	StartMemory   uint64         `json:"startMemory"`
	EndMemory     uint64         `json:"endMemory"`
	MemoryDelta   int64          `json:"memoryDelta"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// Record is a warning or error entry.
type Record struct {
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Metrics are the running aggregates.
type Metrics struct {
	LayoutExecutions     uint64        `json:"layoutExecutions"`
	TotalExecutionTime   time.Duration `json:"totalExecutionTime"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
	MaxExecutionTime     time.Duration `json:"maxExecutionTime"`
	MinExecutionTime     time.Duration `json:"minExecutionTime"` // Zero until the first execution.
	MemoryUsage          uint64        `json:"memoryUsage"`
	PeakMemoryUsage      uint64        `json:"peakMemoryUsage"`
	CacheHits            uint64        `json:"cacheHits"`
	CacheMisses          uint64        `json:"cacheMisses"`
	CacheHitRate         float64       `json:"cacheHitRate"`
	ErrorCount           uint64        `json:"errorCount"`
	WarningCount         uint64        `json:"warningCount"`
}

// Statistics describe the preview lines currently on the canvas and the
// lifetime creation counts.
type Statistics struct {
	TotalPreviewLines     int       `json:"totalPreviewLines"`
	ActivePreviewLines    int       `json:"activePreviewLines"`
	ConnectedPreviewLines int       `json:"connectedPreviewLines"`
	DraggingPreviewLines  int       `json:"draggingPreviewLines"`
	HintNodes             int       `json:"hintNodes"`
	CreatedCount          uint64    `json:"createdCount"`
	DeletedCount          uint64    `json:"deletedCount"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

// Health statuses.
const (
	HealthGood     = "good"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Health issue names.
const (
	IssuePerformance = "performance"
	IssueCache       = "cache"
	IssueMemory      = "memory"
)

// HealthStatus summarizes threshold breaches.
type HealthStatus struct {
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

// Trend directions.
const (
	TrendInsufficient = "insufficient_data"
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
)

// TrendAnalysis compares the older and newer halves of recent executions.
type TrendAnalysis struct {
	Trend         string        `json:"trend"`
	Samples       int           `json:"samples"`
	Average       time.Duration `json:"average"`
	Variance      float64       `json:"variance"` // In squared milliseconds.
	ChangePercent float64       `json:"changePercent"`
}

// MemoryEfficiency relates current to peak memory use.
type MemoryEfficiency struct {
	Current      uint64  `json:"current"`
	Peak         uint64  `json:"peak"`
	AverageDelta int64   `json:"averageDelta"`
	Efficiency   float64 `json:"efficiency"`
}

// Summary is the headline block of a Report.
type Summary struct {
	TotalExecutions      uint64        `json:"totalExecutions"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
	MaxExecutionTime     time.Duration `json:"maxExecutionTime"`
	MinExecutionTime     time.Duration `json:"minExecutionTime"`
	CacheHitRate         float64       `json:"cacheHitRate"`
	MemoryUsage          uint64        `json:"memoryUsage"`
	PeakMemoryUsage      uint64        `json:"peakMemoryUsage"`
	ErrorCount           uint64        `json:"errorCount"`
	WarningCount         uint64        `json:"warningCount"`
}

// Report is the read-only view shown to operators.
type Report struct {
	Summary          Summary      `json:"summary"`
	RecentExecutions []Execution  `json:"recentExecutions"`
	ActiveTasks      []string     `json:"activeTasks"`
	RecentWarnings   []Record     `json:"recentWarnings"`
	RecentErrors     []Record     `json:"recentErrors"`
	Health           HealthStatus `json:"health"`
	Statistics       Statistics   `json:"statistics"`
}

// DetailedStats bundles every derived view.
type DetailedStats struct {
	Metrics          Metrics          `json:"metrics"`
	Statistics       Statistics       `json:"statistics"`
	Health           HealthStatus     `json:"health"`
	Trend            TrendAnalysis    `json:"trend"`
	MemoryEfficiency MemoryEfficiency `json:"memoryEfficiency"`
	ErrorRate        float64          `json:"errorRate"`
	HistorySize      int              `json:"historySize"`
	ActiveTasks      int              `json:"activeTasks"`
}

// Snapshot is the exportable state of a monitor.
type Snapshot struct {
	ExportedAt time.Time   `json:"exportedAt"`
	Metrics    Metrics     `json:"metrics"`
	Statistics Statistics  `json:"statistics"`
	History    []Execution `json:"history"`
	Warnings   []Record    `json:"warnings"`
	Errors     []Record    `json:"errors"`
}
