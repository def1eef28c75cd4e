package depcache

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of collected cache statistics.
type Stats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Deletes       int64
	Invalidations int64
	Clears        int64
	HitRatio      float64
	Uptime        time.Duration
}

// StatsCollector tallies cache events. Attach it to an Emitter with
// OnAll(collector.Listen).
type StatsCollector struct {
	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
	invals  int64
	clears  int64
	start   time.Time
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{start: time.Now()}
}

func (c *StatsCollector) Listen(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case EventHit:
		c.hits++
	case EventMiss:
		c.misses++
	case EventSet:
		c.sets++
	case EventDelete:
		c.deletes += int64(max(ev.Count, 1))
	case EventInvalidate:
		c.invals += int64(max(ev.Count, 1))
	case EventClear:
		c.clears += int64(max(ev.Count, 1))
	}
}

func (c *StatsCollector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Sets:          c.sets,
		Deletes:       c.deletes,
		Invalidations: c.invals,
		Clears:        c.clears,
		Uptime:        time.Since(c.start),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *StatsCollector) Reset() {
	c.mu.Lock()
	c.hits, c.misses, c.sets, c.deletes, c.invals, c.clears = 0, 0, 0, 0, 0, 0
	c.start = time.Now()
	c.mu.Unlock()
}
