package engine

import (
	"sort"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// selectQueue implements §4.6's queue-selection algorithm. It is a pure
// function of the engine's queue set and each queue's current load, so
// identical engine state and resolved config always produce the same
// selection (I8, P7).
func (e *Engine) selectQueue(cfg *taskconfig.ResolvedConfig) (queue.Queue, error) {
	e.mu.Lock()
	queues := append([]queue.Queue{}, e.queues...)
	order := e.queueOrder
	defaultSet := e.defaultQueue
	e.mu.Unlock()

	isCost := cfg.Cost != nil

	appropriate := make([]queue.Queue, 0, len(queues))
	for _, q := range queues {
		if isCost {
			if q.Kind() == queue.KindCost && (*cfg.Cost <= q.Capabilities() || q.AllowExclusive()) {
				appropriate = append(appropriate, q)
			}
		} else if q.Kind() == queue.KindParallel {
			appropriate = append(appropriate, q)
		}
	}
	if len(appropriate) == 0 {
		return nil, cerrors.New(cerrors.KindQueueSelection, "", nil, "no appropriate queue for this task")
	}

	candidates := appropriate
	if len(cfg.Queues) == 0 {
		for _, q := range appropriate {
			if defaultSet[q.Name()] {
				return q, nil
			}
		}
	} else {
		allowed := make(map[string]bool, len(cfg.Queues))
		for _, n := range cfg.Queues {
			allowed[n] = true
		}
		filtered := make([]queue.Queue, 0, len(appropriate))
		for _, q := range appropriate {
			if allowed[q.Name()] {
				filtered = append(filtered, q)
			}
		}
		if len(filtered) == 0 {
			return nil, cerrors.New(cerrors.KindQueueSelection, "", nil, "none of the demanded queues is available")
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		qi, qj := candidates[i], candidates[j]
		if isCost {
			si := qi.Capabilities() / maxFloat(qi.Load(), 1)
			sj := qj.Capabilities() / maxFloat(qj.Load(), 1)
			if si != sj {
				return si > sj // favor capability, penalize load
			}
		} else {
			if qi.Load() != qj.Load() {
				return qi.Load() < qj.Load()
			}
		}
		return order[qi.Name()] < order[qj.Name()] // tie-break: configuration order
	})

	return candidates[0], nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
