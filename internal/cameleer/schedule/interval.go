package schedule

import (
	"context"
	"sync"
	"time"
)

// Interval is a bounded recurring schedule: it fires every Period for at
// most MaxTriggers activations (a negative MaxTriggers means unbounded),
// then completes. It is also the default recovery schedule used by Run
// Attempt when a step's canFail config does not name one explicitly (§4.2).
type Interval struct {
	Period             time.Duration
	MaxTriggers        int
	TriggerImmediately bool

	mu      sync.Mutex
	ch      chan Event
	armed   bool
	cancel  context.CancelFunc
	closeOnce sync.Once
}

// NewInterval constructs an unarmed Interval schedule.
func NewInterval(period time.Duration, maxTriggers int, triggerImmediately bool) *Interval {
	return &Interval{
		Period:             period,
		MaxTriggers:        maxTriggers,
		TriggerImmediately: triggerImmediately,
		ch:                 make(chan Event, 1),
	}
}

// NewRetryInterval builds the default recovery schedule used by Run Attempt
// when a step's canFail config does not name a recovery schedule: fire
// every period up to maxNumFails times.
func NewRetryInterval(period time.Duration, maxNumFails int) *Interval {
	return NewInterval(period, maxNumFails, false)
}

func (iv *Interval) ScheduleKind() Kind { return KindInterval }

func (iv *Interval) Subscribe(ctx context.Context) <-chan Event {
	iv.mu.Lock()
	if iv.armed {
		iv.mu.Unlock()
		return iv.ch
	}
	iv.armed = true
	runCtx, cancel := context.WithCancel(ctx)
	iv.cancel = cancel
	iv.mu.Unlock()

	go iv.run(runCtx)
	return iv.ch
}

// run owns the send side of ch exclusively; it is the only place that ever
// calls close(ch), guarded by closeOnce so Stop racing with natural
// exhaustion can never double-close or send-after-close.
func (iv *Interval) run(ctx context.Context) {
	fired := 0
	defer iv.closeOnce.Do(func() { close(iv.ch) })

	send := func(ev Event) bool {
		select {
		case iv.ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if iv.TriggerImmediately {
		if !send(Event{Kind: EventNext, At: time.Now()}) {
			return
		}
		fired++
		if iv.MaxTriggers >= 0 && fired >= iv.MaxTriggers {
			send(Event{Kind: EventComplete, At: time.Now()})
			return
		}
	}

	ticker := time.NewTicker(iv.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send(Event{Kind: EventNext, At: time.Now()}) {
				return
			}
			fired++
			if iv.MaxTriggers >= 0 && fired >= iv.MaxTriggers {
				send(Event{Kind: EventComplete, At: time.Now()})
				return
			}
		}
	}
}

// Stop disarms the schedule. The underlying run goroutine (if any) observes
// context cancellation and closes the event channel itself.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	cancel := iv.cancel
	iv.mu.Unlock()
	if cancel != nil {
		cancel()
		return
	}
	// Never armed: close proactively so callers waiting on Subscribe's
	// channel don't block forever.
	iv.closeOnce.Do(func() { close(iv.ch) })
}
