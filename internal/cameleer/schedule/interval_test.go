package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed before an event arrived")
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestInterval_FiresImmediatelyWhenConfigured(t *testing.T) {
	iv := NewInterval(time.Hour, -1, true)
	ch := iv.Subscribe(context.Background())
	defer iv.Stop()

	ev := drainEvent(t, ch, time.Second)
	assert.Equal(t, EventNext, ev.Kind)
}

// A bounded interval completes after MaxTriggers firings and closes its
// channel.
func TestInterval_CompletesAfterMaxTriggers(t *testing.T) {
	iv := NewInterval(5*time.Millisecond, 2, true)
	ch := iv.Subscribe(context.Background())
	defer iv.Stop()

	ev1 := drainEvent(t, ch, time.Second)
	assert.Equal(t, EventNext, ev1.Kind)

	ev2 := drainEvent(t, ch, time.Second)
	assert.Equal(t, EventNext, ev2.Kind, "the second and final trigger is a regular firing")

	ev3 := drainEvent(t, ch, time.Second)
	assert.Equal(t, EventComplete, ev3.Kind, "the schedule completes after its last trigger")

	_, ok := <-ch
	assert.False(t, ok, "channel must be closed once the schedule completes")
}

func TestInterval_StopClosesChannel(t *testing.T) {
	iv := NewInterval(time.Hour, -1, false)
	ch := iv.Subscribe(context.Background())
	iv.Stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stop must close the channel promptly")
	}
}

func TestInterval_SubscribeIsIdempotentWhileArmed(t *testing.T) {
	iv := NewInterval(time.Hour, -1, false)
	ch1 := iv.Subscribe(context.Background())
	ch2 := iv.Subscribe(context.Background())
	defer iv.Stop()
	assert.Equal(t, ch1, ch2, "subscribing twice while armed must return the same channel")
}

func TestNewRetryInterval_NeverTriggersImmediately(t *testing.T) {
	iv := NewRetryInterval(time.Hour, 3)
	assert.False(t, iv.TriggerImmediately)
	assert.Equal(t, 3, iv.MaxTriggers)
}
