package cache

import (
	"math"
	"sort"
	"time"
)

// needsCleanupLocked reports whether inserting incoming bytes as a new
// entry would cross the cleanup threshold on count or memory.
func (m *Manager) needsCleanupLocked(incoming int64) bool {
	t := m.cfg.CleanupThreshold
	projected := len(m.entries)
	if incoming > 0 {
		projected++
	}
	if float64(projected) >= float64(m.cfg.MaxSize)*t {
		return true
	}
	return float64(m.memUsage+incoming) >= float64(m.cfg.MaxMemorySize)*t
}

// performCleanupLocked purges expired entries, then evicts by score under
// size pressure and by size under memory pressure.
func (m *Manager) performCleanupLocked() {
	m.stats.cleanups++
	now := m.clock.Now()
	m.purgeExpiredLocked(now)

	if float64(len(m.entries)) > float64(m.cfg.MaxSize)*sizeCleanupTrigger {
		n := int(math.Floor(float64(m.cfg.MaxSize) * evictFraction))
		m.evictLocked(max(1, n), now)
	}
	if float64(m.memUsage) > float64(m.cfg.MaxMemorySize)*memoryCleanupTrigger {
		m.memoryCleanupLocked()
	}
}

func (m *Manager) purgeExpiredLocked(now time.Time) int {
	n := 0
	for _, e := range m.entries {
		if e.expired(now) {
			m.removeLocked(e)
			m.stats.expirations++
			n++
		}
	}
	return n
}

// evictLocked removes the n lowest-scoring entries.
func (m *Manager) evictLocked(n int, now time.Time) {
	if n <= 0 || len(m.entries) == 0 {
		return
	}
	ranked := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].score(now), ranked[j].score(now)
		if si == sj {
			return ranked[i].LastAccess.Before(ranked[j].LastAccess)
		}
		return si < sj
	})
	for _, e := range ranked[:min(n, len(ranked))] {
		m.removeLocked(e)
		m.stats.evictions++
	}
}

// memoryCleanupLocked evicts low-priority, then largest, entries until
// memory use falls to the cleanup target.
func (m *Manager) memoryCleanupLocked() {
	target := int64(float64(m.cfg.MaxMemorySize) * memoryCleanupTarget)
	ranked := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := ranked[i].Priority.weight(), ranked[j].Priority.weight()
		if wi != wj {
			return wi < wj
		}
		return ranked[i].Size > ranked[j].Size
	})
	for _, e := range ranked {
		if m.memUsage <= target {
			return
		}
		m.removeLocked(e)
		m.stats.evictions++
	}
}

// enforceBoundsLocked keeps the entry count within MaxSize after an
// insert, never evicting the key just written.
func (m *Manager) enforceBoundsLocked(keep string) {
	now := m.clock.Now()
	for len(m.entries) > m.cfg.MaxSize {
		var victim *Entry
		var best float64
		for k, e := range m.entries {
			if k == keep {
				continue
			}
			if s := e.score(now); victim == nil || s < best {
				victim, best = e, s
			}
		}
		if victim == nil {
			return
		}
		m.removeLocked(victim)
		m.stats.evictions++
	}
}
