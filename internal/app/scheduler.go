package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sms-campaign-engine/internal/domain"
)

// MaxScheduleAhead bounds how far in the future a foreground run may be
// scheduled.
const MaxScheduleAhead = 7 * 24 * time.Hour

// Scheduler delays a ContinuousDriver run until a target instant. While
// waiting it emits a countdown tick every interval; cancelling during
// the wait discards the run entirely, fires zero sends, and is reported
// with its own event kind so observers can tell it apart from a mid-run
// stop.
type Scheduler struct {
	driver *ContinuousDriver
	log    *slog.Logger
	tick   time.Duration
}

// NewScheduler wraps the driver. tick <= 0 defaults to one second.
func NewScheduler(driver *ContinuousDriver, log *slog.Logger, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{driver: driver, log: log, tick: tick}
}

// RunAt starts the job at startAt, or immediately when the instant is
// already past. Starts more than 7 days ahead are rejected. The caller
// MUST consume the returned channel until it is closed.
func (s *Scheduler) RunAt(ctx context.Context, startAt time.Time, job Job) (<-chan ProgressEvent, error) {
	if time.Until(startAt) > MaxScheduleAhead {
		return nil, domain.ErrScheduleTooFar
	}

	events := make(chan ProgressEvent)
	go func() {
		defer close(events)

		if wait := time.Until(startAt); wait > 0 {
			if !s.countdown(ctx, startAt, wait, events) {
				return
			}
		}

		for ev := range s.driver.Run(ctx, job) {
			events <- ev
		}
	}()
	return events, nil
}

// countdown blocks until the target instant, emitting a tick per
// interval. It returns false when the wait was cancelled; the timer is
// cleared and no partial execution occurs.
func (s *Scheduler) countdown(ctx context.Context, startAt time.Time, wait time.Duration, events chan<- ProgressEvent) bool {
	s.log.Info("run scheduled", "start_at", startAt, "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			events <- ProgressEvent{
				Kind:   EventWaitCancelled,
				Index:  -1,
				Detail: "scheduled start cancelled",
				At:     time.Now(),
			}
			s.log.Info("scheduled run cancelled before start", "start_at", startAt)
			return false
		case <-ticker.C:
			remaining := time.Until(startAt)
			if remaining < 0 {
				remaining = 0
			}
			events <- ProgressEvent{
				Kind:   EventWaiting,
				Index:  -1,
				Detail: fmt.Sprintf("starting in %s", remaining.Round(time.Second)),
				At:     time.Now(),
			}
		case <-timer.C:
			return true
		}
	}
}
