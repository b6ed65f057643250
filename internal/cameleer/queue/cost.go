package queue

import (
	"context"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
)

// Cost is a single active worker with a capabilities budget: it admits a job
// iff job.cost <= capabilities, or unconditionally if AllowExclusiveJobs is
// set and no job is currently running (§4.4).
type Cost struct {
	*base
	capabilities       float64
	allowExclusiveJobs bool
}

func NewCost(ctx context.Context, name string, capabilities float64, allowExclusiveJobs bool, runner *attempt.Runner, logger logging.Logger) *Cost {
	c := &Cost{
		base:               newBase(name, runner, logger),
		capabilities:       capabilities,
		allowExclusiveJobs: allowExclusiveJobs,
	}
	go c.dispatch(ctx)
	return c
}

func (c *Cost) Kind() Kind              { return KindCost }
func (c *Cost) Capabilities() float64   { return c.capabilities }
func (c *Cost) AllowExclusive() bool    { return c.allowExclusiveJobs }

// Load sums the cost of the single outstanding job (0 or 1 jobs run at a
// time on a cost queue); used by the admission algorithm's
// capabilities/max(load,1) ordering (§4.6).
func (c *Cost) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	load := 0.0
	for _, sub := range c.currentSubs {
		if sub.Cost != nil {
			load += *sub.Cost
		}
	}
	return load
}

// Admits reports whether a job of the given cost can run right now, per the
// cost-queue admission rule in §4.4. The engine's queue selection does not
// call it (it applies the rule from Capabilities and AllowExclusive), and
// the dispatcher applies the rule itself at drain time.
func (c *Cost) Admits(cost *float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allowExclusiveJobs && len(c.current) == 0 {
		return true
	}
	if cost == nil {
		return false
	}
	return *cost <= c.capabilities
}

func (c *Cost) AddJob(ctx context.Context, sub Submission) error {
	c.enqueue(sub)
	return nil
}

func (c *Cost) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.resumeCh:
		}
		c.drain(ctx)
	}
}

func (c *Cost) drain(ctx context.Context) {
	for {
		if c.isPaused() {
			return
		}
		c.mu.Lock()
		if len(c.backlog) == 0 {
			c.mu.Unlock()
			return
		}
		if len(c.currentSubs) >= 1 {
			c.mu.Unlock()
			return
		}
		sub := c.backlog[0]
		allowed := (c.allowExclusiveJobs && len(c.current) == 0) ||
			(sub.Cost != nil && *sub.Cost <= c.capabilities)
		if !allowed {
			c.mu.Unlock()
			return
		}
		c.backlog = c.backlog[1:]
		c.currentSubs[sub.Job.ID()] = sub
		c.mu.Unlock()

		go func() {
			c.execute(ctx, sub)
			c.mu.Lock()
			delete(c.currentSubs, sub.Job.ID())
			c.mu.Unlock()
			c.wake()
		}()
	}
}
