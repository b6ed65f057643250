package queue

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
)

// Parallel admits up to Parallelism concurrent jobs regardless of cost
// (§4.4). Backed by a bounded conc worker pool so the dispatcher never
// spawns more goroutines than the configured parallelism allows.
type Parallel struct {
	*base
	parallelism int
	pool        *pool.ContextPool
}

func NewParallel(ctx context.Context, name string, parallelism int, runner *attempt.Runner, logger logging.Logger) *Parallel {
	if parallelism <= 0 {
		parallelism = 1
	}
	p := &Parallel{
		base:        newBase(name, runner, logger),
		parallelism: parallelism,
		pool:        pool.New().WithMaxGoroutines(parallelism).WithContext(ctx),
	}
	go p.dispatch(ctx)
	return p
}

func (p *Parallel) Kind() Kind             { return KindParallel }
func (p *Parallel) Capabilities() float64  { return 0 }
func (p *Parallel) AllowExclusive() bool   { return false }

// Load is the fraction of parallelism currently occupied, used by the
// queue-selection algorithm's ascending-load ordering for parallel queues
// (§4.6).
func (p *Parallel) Load() float64 {
	return float64(len(p.CurrentJobs())) / float64(p.parallelism)
}

func (p *Parallel) AddJob(ctx context.Context, sub Submission) error {
	p.enqueue(sub)
	return nil
}

func (p *Parallel) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.resumeCh:
		}
		p.drain(ctx)
	}
}

func (p *Parallel) drain(ctx context.Context) {
	for {
		if p.isPaused() {
			return
		}
		p.mu.Lock()
		if len(p.backlog) == 0 {
			p.mu.Unlock()
			return
		}
		if len(p.currentSubs) >= p.parallelism {
			p.mu.Unlock()
			return
		}
		sub := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.currentSubs[sub.Job.ID()] = sub
		p.mu.Unlock()

		p.pool.Go(func(ctx context.Context) error {
			p.execute(ctx, sub)
			p.mu.Lock()
			delete(p.currentSubs, sub.Job.ID())
			p.mu.Unlock()
			p.wake()
			return nil
		})
	}
}
