package app

import (
	"context"
	"testing"
	"time"

	"sms-campaign-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAtRejectsFarFutureStart(t *testing.T) {
	sched := NewScheduler(newContinuous(&scriptedGateway{}), testLogger(), time.Second)

	_, err := sched.RunAt(context.Background(), time.Now().Add(8*24*time.Hour), Job{})
	require.ErrorIs(t, err, domain.ErrScheduleTooFar)
}

func TestRunAtPastInstantStartsImmediately(t *testing.T) {
	gw := &scriptedGateway{}
	sched := NewScheduler(newContinuous(gw), testLogger(), time.Second)

	ch, err := sched.RunAt(context.Background(), time.Now().Add(-time.Hour), Job{
		Rows:     []RecipientRow{row("5551234567", "A")},
		Template: "hi",
	})
	require.NoError(t, err)

	evs := collect(ch)
	assert.Equal(t, 1, gw.callCount())
	for _, ev := range evs {
		assert.NotEqual(t, EventWaiting, ev.Kind)
	}
	assert.Equal(t, EventDone, evs[len(evs)-1].Kind)
}

func TestRunAtEmitsCountdownTicks(t *testing.T) {
	gw := &scriptedGateway{}
	sched := NewScheduler(newContinuous(gw), testLogger(), 20*time.Millisecond)

	ch, err := sched.RunAt(context.Background(), time.Now().Add(100*time.Millisecond), Job{
		Rows:     []RecipientRow{row("5551234567", "A")},
		Template: "hi",
	})
	require.NoError(t, err)

	evs := collect(ch)

	var waiting int
	for _, ev := range evs {
		if ev.Kind == EventWaiting {
			waiting++
			assert.Contains(t, ev.Detail, "starting in")
		}
	}
	assert.GreaterOrEqual(t, waiting, 1)
	assert.Equal(t, 1, gw.callCount())
	assert.Equal(t, EventDone, evs[len(evs)-1].Kind)
}

func TestRunAtCancelDuringWaitFiresNoSends(t *testing.T) {
	gw := &scriptedGateway{}
	sched := NewScheduler(newContinuous(gw), testLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := sched.RunAt(ctx, time.Now().Add(time.Hour), Job{
		Rows:     []RecipientRow{row("5551234567", "A")},
		Template: "hi",
	})
	require.NoError(t, err)

	var evs []ProgressEvent
	for ev := range ch {
		evs = append(evs, ev)
		if ev.Kind == EventWaiting {
			cancel()
		}
	}

	assert.Zero(t, gw.callCount())
	last := evs[len(evs)-1]
	assert.Equal(t, EventWaitCancelled, last.Kind)
	assert.Equal(t, "scheduled start cancelled", last.Detail)
}
