// Package cache implements the tiered TTL cache that memoizes per-node
// lookups (branches, bounds, positions) for the preview manager.
//
// Every entry lives in the main store. With tiering enabled, frequently
// read entries are also indexed in a warm tier (L2) and a hot tier (L1);
// reads check L1, then L2, then the main store. Expiry is enforced lazily
// on reads and by a periodic sweep. Size and memory pressure evict the
// coldest entries first.
//
// The cache never fails its callers: oversized values are rejected with a
// false return and a log line, and reads of missing or expired keys report
// a miss.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// Promotion heuristics.
const (
	promoteL1Accesses = 3
	promoteL2Accesses = 2
	recentWindow      = 60 * time.Second
)

// Cleanup targets as fractions of the configured maxima.
const (
	sizeCleanupTrigger   = 0.7
	evictFraction        = 0.2
	memoryCleanupTrigger = 0.7
	memoryCleanupTarget  = 0.6
)

// Manager is a tiered, size- and memory-bounded TTL cache. It is safe for
// use from the sweep goroutine and callers at once.
type Manager struct {
	cfg   types.CacheConfig
	clock schedule.Clock
	log   zerolog.Logger

	mu       sync.Mutex
	entries  map[string]*Entry
	l1       map[string]*Entry
	l2       map[string]*Entry
	memUsage int64
	stats    counters
	sweep    schedule.Handle
	closed   bool
}

// New creates a cache with cfg and starts its cleanup sweep. Zero-valued
// fields in cfg take the defaults from types.DefaultCacheConfig.
func New(cfg types.CacheConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:     withDefaults(cfg),
		clock:   schedule.Real(),
		log:     zerolog.Nop(),
		entries: make(map[string]*Entry),
		l1:      make(map[string]*Entry),
		l2:      make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sweep = m.clock.Every(m.cfg.CleanupInterval, m.runSweep)
	return m
}

func withDefaults(cfg types.CacheConfig) types.CacheConfig {
	def := types.DefaultCacheConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.MaxMemorySize <= 0 {
		cfg.MaxMemorySize = def.MaxMemorySize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.CleanupThreshold <= 0 || cfg.CleanupThreshold > 1 {
		cfg.CleanupThreshold = def.CleanupThreshold
	}
	if cfg.L1MaxSize <= 0 {
		cfg.L1MaxSize = def.L1MaxSize
	}
	if cfg.L2MaxSize <= 0 {
		cfg.L2MaxSize = def.L2MaxSize
	}
	return cfg
}

// Config returns the effective configuration.
func (m *Manager) Config() types.CacheConfig {
	return m.cfg
}

// Set stores value under key and reports whether it was stored. Values
// larger than the memory cap are rejected.
func (m *Manager) Set(key string, value any, opts ...SetOption) bool {
	o := setOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl == 0 {
		o.ttl = m.cfg.DefaultTTL
	}
	if o.priority == "" {
		o.priority = PriorityNormal
	}

	stored := value
	compressed, wasString := false, false
	if o.compress && m.cfg.EnableCompression {
		if out, ws, ok := compress(value); ok {
			stored, compressed, wasString = out, true, ws
		}
	}
	size := sizeOf(stored)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if size > m.cfg.MaxMemorySize {
		m.log.Warn().Str("key", key).Int64("size", size).Int64("max", m.cfg.MaxMemorySize).
			Msg("cache value exceeds memory cap")
		return false
	}

	if old, ok := m.entries[key]; ok {
		m.removeLocked(old)
	}
	if m.needsCleanupLocked(size) {
		m.performCleanupLocked()
	}

	now := m.clock.Now()
	e := &Entry{
		Key:        key,
		Value:      stored,
		Timestamp:  now,
		TTL:        o.ttl,
		Priority:   o.priority,
		Size:       size,
		Compressed: compressed,
		Metadata:   o.metadata,
		LastAccess: now,
		wasString:  wasString,
	}
	m.entries[key] = e
	m.memUsage += size
	m.stats.sets++

	if m.cfg.EnableTiered && e.Priority == PriorityHigh {
		m.putL1Locked(e)
	}
	m.enforceBoundsLocked(key)
	return true
}

// Get returns the value stored under key. Expired entries are removed and
// reported as a miss.
func (m *Manager) Get(key string, opts ...GetOption) (any, bool) {
	o := getOptions{updateAccess: true, decompress: true}
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.clock.Now()
	e, tier := m.lookupLocked(key)
	if e == nil {
		m.stats.misses++
		m.recordAccessLocked(start)
		return nil, false
	}
	if e.expired(start) {
		m.removeLocked(e)
		m.stats.expirations++
		m.stats.misses++
		m.recordAccessLocked(start)
		return nil, false
	}

	m.stats.hits++
	switch tier {
	case 1:
		m.stats.l1Hits++
	case 2:
		m.stats.l2Hits++
	default:
		m.stats.l3Hits++
	}

	if o.updateAccess {
		e.AccessCount++
		e.LastAccess = start
		if m.cfg.EnableTiered {
			if tier == 2 {
				delete(m.l2, key)
				m.putL1Locked(e)
			} else if tier == 3 {
				m.promoteLocked(e, start)
			}
		}
	}
	m.recordAccessLocked(start)

	if e.Compressed && o.decompress {
		v, err := decompress(e)
		if err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("cache decompress failed")
			return nil, false
		}
		return v, true
	}
	return e.Value, true
}

// Has reports whether a live entry exists for key.
func (m *Manager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if e.expired(m.clock.Now()) {
		m.removeLocked(e)
		m.stats.expirations++
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.removeLocked(e)
	m.stats.deletes++
	return true
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (m *Manager) DeletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) {
			m.removeLocked(e)
			m.stats.deletes++
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	m.l1 = make(map[string]*Entry)
	m.l2 = make(map[string]*Entry)
	m.memUsage = 0
}

// Size returns the number of stored entries, expired ones included until
// they are touched or swept.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Keys returns the live keys in sorted order.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Cleanup runs a cleanup pass immediately.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.performCleanupLocked()
}

// Close stops the sweep and drops all entries. The cache rejects writes
// afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.sweep.Stop()
	m.entries = make(map[string]*Entry)
	m.l1 = make(map[string]*Entry)
	m.l2 = make(map[string]*Entry)
	m.memUsage = 0
}

func (m *Manager) lookupLocked(key string) (*Entry, int) {
	if m.cfg.EnableTiered {
		if e, ok := m.l1[key]; ok {
			return e, 1
		}
		if e, ok := m.l2[key]; ok {
			return e, 2
		}
	}
	if e, ok := m.entries[key]; ok {
		return e, 3
	}
	return nil, 0
}

// promoteLocked moves a main-store entry into a hotter tier when its access
// pattern qualifies.
func (m *Manager) promoteLocked(e *Entry, now time.Time) {
	recent := now.Sub(e.Timestamp) < recentWindow
	switch {
	case e.AccessCount >= promoteL1Accesses || (e.AccessCount >= promoteL2Accesses && recent):
		m.putL1Locked(e)
	case e.AccessCount >= promoteL2Accesses:
		m.putL2Locked(e)
	}
}

// putL1Locked indexes e in L1, demoting the least recently used L1 entry to
// L2 when full.
func (m *Manager) putL1Locked(e *Entry) {
	delete(m.l2, e.Key)
	if _, ok := m.l1[e.Key]; !ok && len(m.l1) >= m.cfg.L1MaxSize {
		if victim := oldest(m.l1); victim != nil {
			delete(m.l1, victim.Key)
			m.putL2Locked(victim)
		}
	}
	m.l1[e.Key] = e
}

// putL2Locked indexes e in L2, dropping the least recently used L2 entry
// from the tier when full. Dropped entries stay in the main store.
func (m *Manager) putL2Locked(e *Entry) {
	if _, ok := m.l2[e.Key]; !ok && len(m.l2) >= m.cfg.L2MaxSize {
		if victim := oldest(m.l2); victim != nil {
			delete(m.l2, victim.Key)
		}
	}
	m.l2[e.Key] = e
}

func oldest(tier map[string]*Entry) *Entry {
	var victim *Entry
	for _, e := range tier {
		if victim == nil || e.LastAccess.Before(victim.LastAccess) {
			victim = e
		}
	}
	return victim
}

func (m *Manager) removeLocked(e *Entry) {
	if cur, ok := m.entries[e.Key]; !ok || cur != e {
		return
	}
	delete(m.entries, e.Key)
	delete(m.l1, e.Key)
	delete(m.l2, e.Key)
	m.memUsage -= e.Size
	if m.memUsage < 0 {
		m.memUsage = 0
	}
}

func (m *Manager) runSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.purgeExpiredLocked(m.clock.Now())
	if m.needsCleanupLocked(0) {
		m.performCleanupLocked()
	}
}
