package cache

import "time"

type counters struct {
	hits, misses          uint64
	sets, deletes         uint64
	evictions             uint64
	expirations, cleanups uint64
	l1Hits, l2Hits        uint64
	l3Hits                uint64
	accesses              uint64
	totalAccess           time.Duration
}

// Stats is a snapshot of cache counters and occupancy.
type Stats struct {
	Hits              uint64        `json:"hits"`
	Misses            uint64        `json:"misses"`
	Sets              uint64        `json:"sets"`
	Deletes           uint64        `json:"deletes"`
	Evictions         uint64        `json:"evictions"`
	Expirations       uint64        `json:"expirations"`
	Cleanups          uint64        `json:"cleanups"`
	L1Hits            uint64        `json:"l1Hits"`
	L2Hits            uint64        `json:"l2Hits"`
	L3Hits            uint64        `json:"l3Hits"`
	HitRate           float64       `json:"hitRate"`
	AverageAccessTime time.Duration `json:"averageAccessTime"`
	MemoryUsage       int64         `json:"memoryUsage"`
	MemoryUtilization float64       `json:"memoryUtilization"`
	Size              int           `json:"size"`
	MaxSize           int           `json:"maxSize"`
	L1Size            int           `json:"l1Size"`
	L2Size            int           `json:"l2Size"`
	L3Size            int           `json:"l3Size"`
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.stats
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Sets:        c.sets,
		Deletes:     c.deletes,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Cleanups:    c.cleanups,
		L1Hits:      c.l1Hits,
		L2Hits:      c.l2Hits,
		L3Hits:      c.l3Hits,
		MemoryUsage: m.memUsage,
		Size:        len(m.entries),
		MaxSize:     m.cfg.MaxSize,
		L1Size:      len(m.l1),
		L2Size:      len(m.l2),
		L3Size:      len(m.entries) - len(m.l1) - len(m.l2),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.accesses > 0 {
		s.AverageAccessTime = c.totalAccess / time.Duration(c.accesses)
	}
	s.MemoryUtilization = float64(m.memUsage) / float64(m.cfg.MaxMemorySize)
	return s
}

// ResetStats zeroes the counters. Stored entries and memory accounting are
// untouched.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = counters{}
}

func (m *Manager) recordAccessLocked(start time.Time) {
	m.stats.accesses++
	m.stats.totalAccess += m.clock.Now().Sub(start)
}
