package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// calendarParser accepts the standard five-field cron expression plus the
// optional seconds-field extension, matching the syntax most calendar-driven
// task configs in the wild are already written against.
var calendarParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Calendar fires on a cron expression. When Duration is positive, each
// occurrence also synthesizes a matching "end" firing Duration later, tagged
// Event.IsEnd so the engine can treat a calendar task as a bounded window
// rather than an instantaneous tick (§4.5 bounded calendar events).
type Calendar struct {
	Expr       string
	Duration   time.Duration
	LookAhead  time.Duration // how far ahead a firing is armed; 0 means no limit

	mu     sync.Mutex
	sched  cron.Schedule
	ch     chan Event
	armed  bool
	cancel context.CancelFunc
	closeOnce sync.Once
}

// NewCalendar parses expr eagerly so a malformed cron expression fails at
// task-load time rather than silently never firing.
func NewCalendar(expr string, duration, lookAhead time.Duration) (*Calendar, error) {
	sched, err := calendarParser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &Calendar{
		Expr:      expr,
		Duration:  duration,
		LookAhead: lookAhead,
		sched:     sched,
		ch:        make(chan Event, 4),
	}, nil
}

func (c *Calendar) ScheduleKind() Kind { return KindCalendar }

func (c *Calendar) Subscribe(ctx context.Context) <-chan Event {
	c.mu.Lock()
	if c.armed {
		c.mu.Unlock()
		return c.ch
	}
	c.armed = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return c.ch
}

func (c *Calendar) run(ctx context.Context) {
	defer c.closeOnce.Do(func() { close(c.ch) })

	send := func(ev Event) bool {
		select {
		case c.ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	now := time.Now()
	for {
		next := c.sched.Next(now)
		if next.IsZero() {
			return
		}
		if c.LookAhead > 0 {
			for time.Until(next) > c.LookAhead {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.LookAhead):
				}
				next = c.sched.Next(time.Now())
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fireAt := <-timer.C:
			if !send(Event{Kind: EventNext, At: fireAt}) {
				return
			}
			if c.Duration > 0 {
				if !c.sendEnd(ctx, fireAt.Add(c.Duration)) {
					return
				}
			}
		}
		now = next
	}
}

func (c *Calendar) sendEnd(ctx context.Context, at time.Time) bool {
	timer := time.NewTimer(time.Until(at))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case endAt := <-timer.C:
		select {
		case c.ch <- Event{Kind: EventNext, At: endAt, IsEnd: true}:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// Stop disarms the schedule; the run goroutine (if any) closes the event
// channel itself once it observes cancellation.
func (c *Calendar) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		return
	}
	c.closeOnce.Do(func() { close(c.ch) })
}
