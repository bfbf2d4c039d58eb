package types

import (
	"errors"
	"time"
)

// Config holds the settings for an editor session: storage location and the
// tuning of the cache, monitor, layout engine, preview manager, and logger.
type Config struct {
	DataDir string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Cache   CacheConfig   `json:"cache" yaml:"cache" mapstructure:"cache"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor" mapstructure:"monitor"`
	Layout  LayoutConfig  `json:"layout" yaml:"layout" mapstructure:"layout"`
	Preview PreviewConfig `json:"preview" yaml:"preview" mapstructure:"preview"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// CacheConfig tunes the tiered cache.
type CacheConfig struct {
	MaxSize           int           `json:"max_size" yaml:"max_size" mapstructure:"max_size"`
	MaxMemorySize     int64         `json:"max_memory_size" yaml:"max_memory_size" mapstructure:"max_memory_size"`
	DefaultTTL        time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	CleanupThreshold  float64       `json:"cleanup_threshold" yaml:"cleanup_threshold" mapstructure:"cleanup_threshold"`
	EnableTiered      bool          `json:"enable_tiered" yaml:"enable_tiered" mapstructure:"enable_tiered"`
	L1MaxSize         int           `json:"l1_max_size" yaml:"l1_max_size" mapstructure:"l1_max_size"`
	L2MaxSize         int           `json:"l2_max_size" yaml:"l2_max_size" mapstructure:"l2_max_size"`
	EnableCompression bool          `json:"enable_compression" yaml:"enable_compression" mapstructure:"enable_compression"`
}

// MonitorConfig tunes the performance monitor.
type MonitorConfig struct {
	EnableMetrics          bool          `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
	EnableMemoryMonitoring bool          `json:"enable_memory_monitoring" yaml:"enable_memory_monitoring" mapstructure:"enable_memory_monitoring"`
	MaxHistorySize         int           `json:"max_history_size" yaml:"max_history_size" mapstructure:"max_history_size"`
	ExecutionTimeThreshold time.Duration `json:"execution_time_threshold" yaml:"execution_time_threshold" mapstructure:"execution_time_threshold"`
	MemoryUsageThreshold   uint64        `json:"memory_usage_threshold" yaml:"memory_usage_threshold" mapstructure:"memory_usage_threshold"`
	CacheHitRateThreshold  float64       `json:"cache_hit_rate_threshold" yaml:"cache_hit_rate_threshold" mapstructure:"cache_hit_rate_threshold"`
}

// LayoutConfig tunes the layout engine and preview geometry.
type LayoutConfig struct {
	InitDelay        time.Duration `json:"init_delay" yaml:"init_delay" mapstructure:"init_delay"`
	RetryInterval    time.Duration `json:"retry_interval" yaml:"retry_interval" mapstructure:"retry_interval"`
	MaxRetries       int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	VerticalOffset   float64       `json:"vertical_offset" yaml:"vertical_offset" mapstructure:"vertical_offset"`
	BranchSpacingMin float64       `json:"branch_spacing_min" yaml:"branch_spacing_min" mapstructure:"branch_spacing_min"`
	BranchSpacingMax float64       `json:"branch_spacing_max" yaml:"branch_spacing_max" mapstructure:"branch_spacing_max"`
}

// PreviewConfig tunes the preview line manager.
type PreviewConfig struct {
	HitTolerance    float64       `json:"hit_tolerance" yaml:"hit_tolerance" mapstructure:"hit_tolerance"`
	RefreshDebounce time.Duration `json:"refresh_debounce" yaml:"refresh_debounce" mapstructure:"refresh_debounce"`
	HoverThrottle   time.Duration `json:"hover_throttle" yaml:"hover_throttle" mapstructure:"hover_throttle"`
	BranchCacheTTL  time.Duration `json:"branch_cache_ttl" yaml:"branch_cache_ttl" mapstructure:"branch_cache_ttl"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"` // console or json.
	Output string `json:"output" yaml:"output" mapstructure:"output"` // stderr, stdout, or file.
	File   string `json:"file" yaml:"file" mapstructure:"file"`
}

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// DefaultConfig returns the settings used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		Cache:   DefaultCacheConfig(),
		Monitor: DefaultMonitorConfig(),
		Layout:  DefaultLayoutConfig(),
		Preview: DefaultPreviewConfig(),
		Log:     LogConfig{Level: "info", Format: LogFormatConsole, Output: "stderr"},
	}
}

// DefaultCacheConfig returns the cache defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:          1000,
		MaxMemorySize:    50 << 20,
		DefaultTTL:       5 * time.Minute,
		CleanupInterval:  time.Minute,
		CleanupThreshold: 0.8,
		EnableTiered:     true,
		L1MaxSize:        100,
		L2MaxSize:        500,
	}
}

// DefaultMonitorConfig returns the monitor defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		EnableMetrics:          true,
		EnableMemoryMonitoring: true,
		MaxHistorySize:         100,
		ExecutionTimeThreshold: 50 * time.Millisecond,
		MemoryUsageThreshold:   100 << 20,
		CacheHitRateThreshold:  0.8,
	}
}

// DefaultLayoutConfig returns the layout defaults.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		InitDelay:        50 * time.Millisecond,
		RetryInterval:    100 * time.Millisecond,
		MaxRetries:       20,
		VerticalOffset:   100,
		BranchSpacingMin: 60,
		BranchSpacingMax: 120,
	}
}

// DefaultPreviewConfig returns the preview manager defaults.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		HitTolerance:    50,
		RefreshDebounce: 100 * time.Millisecond,
		HoverThrottle:   16 * time.Millisecond,
		BranchCacheTTL:  30 * time.Second,
	}
}

// Config validation errors.
var (
	ErrCacheSizeInvalid      = errors.New("cache max size must be positive")
	ErrCacheMemoryInvalid    = errors.New("cache max memory size must be positive")
	ErrCacheThresholdInvalid = errors.New("cache cleanup threshold must be in (0, 1]")
	ErrCacheTierInvalid      = errors.New("cache tier sizes must be positive when tiering is enabled")
	ErrDurationInvalid       = errors.New("duration must be positive")
	ErrHistorySizeInvalid    = errors.New("monitor history size must be positive")
	ErrHitRateInvalid        = errors.New("cache hit rate threshold must be in [0, 1]")
	ErrSpacingInvalid        = errors.New("branch spacing bounds are invalid")
	ErrLogFormatUnknown      = errors.New("unknown log format")
)

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if c.Preview.RefreshDebounce < 0 || c.Preview.HoverThrottle < 0 {
		return ErrDurationInvalid
	}
	switch c.Log.Format {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		return ErrLogFormatUnknown
	}
	return nil
}

// Validate checks the cache settings.
func (c CacheConfig) Validate() error {
	if c.MaxSize <= 0 {
		return ErrCacheSizeInvalid
	}
	if c.MaxMemorySize <= 0 {
		return ErrCacheMemoryInvalid
	}
	if c.CleanupThreshold <= 0 || c.CleanupThreshold > 1 {
		return ErrCacheThresholdInvalid
	}
	if c.EnableTiered && (c.L1MaxSize <= 0 || c.L2MaxSize <= 0) {
		return ErrCacheTierInvalid
	}
	if c.DefaultTTL <= 0 || c.CleanupInterval <= 0 {
		return ErrDurationInvalid
	}
	return nil
}

// Validate checks the monitor settings.
func (c MonitorConfig) Validate() error {
	if c.MaxHistorySize <= 0 {
		return ErrHistorySizeInvalid
	}
	if c.ExecutionTimeThreshold <= 0 {
		return ErrDurationInvalid
	}
	if c.CacheHitRateThreshold < 0 || c.CacheHitRateThreshold > 1 {
		return ErrHitRateInvalid
	}
	return nil
}

// Validate checks the layout settings.
func (c LayoutConfig) Validate() error {
	if c.RetryInterval <= 0 || c.InitDelay < 0 {
		return ErrDurationInvalid
	}
	if c.BranchSpacingMin <= 0 || c.BranchSpacingMax < c.BranchSpacingMin {
		return ErrSpacingInvalid
	}
	return nil
}
