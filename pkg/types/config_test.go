package types

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero cache size returns ErrCacheSizeInvalid",
			mutate:  func(c *Config) { c.Cache.MaxSize = 0 },
			wantErr: ErrCacheSizeInvalid,
		},
		{
			name:    "zero memory cap returns ErrCacheMemoryInvalid",
			mutate:  func(c *Config) { c.Cache.MaxMemorySize = 0 },
			wantErr: ErrCacheMemoryInvalid,
		},
		{
			name:    "threshold above one returns ErrCacheThresholdInvalid",
			mutate:  func(c *Config) { c.Cache.CleanupThreshold = 1.5 },
			wantErr: ErrCacheThresholdInvalid,
		},
		{
			name:    "tiering with empty L1 returns ErrCacheTierInvalid",
			mutate:  func(c *Config) { c.Cache.L1MaxSize = 0 },
			wantErr: ErrCacheTierInvalid,
		},
		{
			name: "tiering disabled ignores tier sizes",
			mutate: func(c *Config) {
				c.Cache.EnableTiered = false
				c.Cache.L1MaxSize = 0
			},
		},
		{
			name:    "zero ttl returns ErrDurationInvalid",
			mutate:  func(c *Config) { c.Cache.DefaultTTL = 0 },
			wantErr: ErrDurationInvalid,
		},
		{
			name:    "zero history returns ErrHistorySizeInvalid",
			mutate:  func(c *Config) { c.Monitor.MaxHistorySize = 0 },
			wantErr: ErrHistorySizeInvalid,
		},
		{
			name:    "hit rate above one returns ErrHitRateInvalid",
			mutate:  func(c *Config) { c.Monitor.CacheHitRateThreshold = 2 },
			wantErr: ErrHitRateInvalid,
		},
		{
			name:    "inverted spacing returns ErrSpacingInvalid",
			mutate:  func(c *Config) { c.Layout.BranchSpacingMax = 10 },
			wantErr: ErrSpacingInvalid,
		},
		{
			name:    "negative debounce returns ErrDurationInvalid",
			mutate:  func(c *Config) { c.Preview.RefreshDebounce = -time.Second },
			wantErr: ErrDurationInvalid,
		},
		{
			name:    "unknown log format returns ErrLogFormatUnknown",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: ErrLogFormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
