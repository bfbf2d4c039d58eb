package cache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/schedule"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock that drives TTLs and the cleanup sweep.
func WithClock(c schedule.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "cache").Logger() }
}

type setOptions struct {
	ttl      time.Duration
	priority Priority
	compress bool
	metadata map[string]any
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

// WithTTL overrides the default TTL. Zero keeps the default; NoExpiry
// disables expiry.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = d }
}

// WithPriority sets the entry priority.
func WithPriority(p Priority) SetOption {
	return func(o *setOptions) { o.priority = p }
}

// WithCompression requests compression of large string or byte values.
// It has no effect unless compression is enabled in the cache config.
func WithCompression() SetOption {
	return func(o *setOptions) { o.compress = true }
}

// WithMetadata attaches caller metadata to the entry.
func WithMetadata(md map[string]any) SetOption {
	return func(o *setOptions) { o.metadata = md }
}

type getOptions struct {
	updateAccess bool
	decompress   bool
}

// GetOption adjusts a single Get call.
type GetOption func(*getOptions)

// WithoutAccessUpdate reads the entry without touching its access count,
// recency, or tier.
func WithoutAccessUpdate() GetOption {
	return func(o *getOptions) { o.updateAccess = false }
}

// WithoutDecompress returns compressed payloads as stored.
func WithoutDecompress() GetOption {
	return func(o *getOptions) { o.decompress = false }
}
