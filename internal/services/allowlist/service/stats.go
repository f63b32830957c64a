package service

import (
	"sync"
	"sync/atomic"
	"time"

	"rolesync/internal/services/allowlist/domain"
)

type counters struct {
	started  time.Time
	outcomes map[domain.Outcome]*atomic.Int64

	feedReceived atomic.Int64
	feedDropped  atomic.Int64
	sweeps       atomic.Int64

	mu   sync.Mutex
	last *domain.SweepReport
}

func newCounters(now time.Time) *counters {
	c := &counters{started: now, outcomes: make(map[domain.Outcome]*atomic.Int64, len(domain.Outcomes))}
	for _, o := range domain.Outcomes {
		c.outcomes[o] = new(atomic.Int64)
	}
	return c
}

func (c *counters) record(o domain.Outcome) {
	if n, ok := c.outcomes[o]; ok {
		n.Add(1)
	}
}

func (c *counters) sweepDone(r domain.SweepReport) {
	c.sweeps.Add(1)
	c.mu.Lock()
	c.last = &r
	c.mu.Unlock()
}

func (c *counters) snapshot(queued int) domain.Stats {
	s := domain.Stats{
		StartedAt:    c.started,
		Outcomes:     make(map[domain.Outcome]int64, len(c.outcomes)),
		FeedReceived: c.feedReceived.Load(),
		FeedDropped:  c.feedDropped.Load(),
		Queued:       queued,
		Sweeps:       c.sweeps.Load(),
	}
	for o, n := range c.outcomes {
		s.Outcomes[o] = n.Load()
	}
	c.mu.Lock()
	if c.last != nil {
		last := *c.last
		s.LastSweep = &last
	}
	c.mu.Unlock()
	return s
}
