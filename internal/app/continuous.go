package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/phone"
	"sms-campaign-engine/internal/ports"
	"sms-campaign-engine/internal/template"
)

// EventKind classifies a progress event.
type EventKind string

const (
	EventSent          EventKind = "sent"
	EventFailed        EventKind = "failed"
	EventSkipped       EventKind = "skipped" // no phone column; gateway never called
	EventInfo          EventKind = "info"    // status text for the live log
	EventWaiting       EventKind = "waiting" // scheduler countdown tick
	EventWaitCancelled EventKind = "wait_cancelled"
	EventStopped       EventKind = "stopped" // cancelled during active sending
	EventDone          EventKind = "done"
)

// ProgressEvent is one entry in the live progress stream. Sent and
// Failed carry the cumulative counters as of this event.
type ProgressEvent struct {
	Kind   EventKind
	Index  int // recipient index; -1 for events not tied to a recipient
	To     string
	Detail string
	Sent   int
	Failed int
	At     time.Time
}

// Progress is the resume cursor: a run starts at index Sent+Failed, so a
// caller that preserves the counters between runs gets continuation
// instead of a restart.
type Progress struct {
	Sent   int
	Failed int
}

// RecipientRow is one ingested row: column names in declaration order
// plus their values. It lives only in the caller's working set and is
// never persisted.
type RecipientRow struct {
	Columns []string
	Values  map[string]string
}

// PhoneValue locates the recipient's phone by case-insensitive substring
// match on column names containing "phone" or "mobile", first declared
// column wins. The reported value may still be empty.
func (r RecipientRow) PhoneValue() (string, bool) {
	for _, col := range r.Columns {
		name := strings.ToLower(col)
		if strings.Contains(name, "phone") || strings.Contains(name, "mobile") {
			return r.Values[col], true
		}
	}
	return "", false
}

// Job describes one continuous run.
type Job struct {
	Rows         []RecipientRow
	Template     string
	ProviderType string
	Config       domain.ProviderConfig
	Resume       Progress
}

// ContinuousDriver sends a campaign recipient-by-recipient inside a
// single caller-owned goroutine, with randomized anti-throttling pacing
// between sends. Cancellation is cooperative through the run context and
// takes effect at the defined suspension points; an in-flight provider
// call always runs to completion.
type ContinuousDriver struct {
	gateway  ports.ProviderGateway
	renderer *template.Renderer
	log      *slog.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

// NewContinuousDriver builds a driver. Non-positive delays default to
// the 45–90s anti-throttling window.
func NewContinuousDriver(gateway ports.ProviderGateway, renderer *template.Renderer, log *slog.Logger, minDelay, maxDelay time.Duration) *ContinuousDriver {
	if minDelay <= 0 {
		minDelay = 45 * time.Second
	}
	if maxDelay < minDelay {
		maxDelay = 90 * time.Second
	}
	return &ContinuousDriver{
		gateway:  gateway,
		renderer: renderer,
		log:      log,
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Run starts the send loop and returns its progress stream. Events are
// emitted one per recipient outcome, in order and unbuffered, so an
// observer sees them in near real time. The caller MUST consume the
// channel until it is closed. A cancelled run is not restartable: start
// a fresh run from the preserved counters instead.
func (d *ContinuousDriver) Run(ctx context.Context, job Job) <-chan ProgressEvent {
	events := make(chan ProgressEvent)
	go func() {
		defer close(events)
		d.run(ctx, job, events)
	}()
	return events
}

func (d *ContinuousDriver) run(ctx context.Context, job Job, events chan<- ProgressEvent) {
	sent, failed := job.Resume.Sent, job.Resume.Failed
	start := sent + failed

	emit := func(ev ProgressEvent) {
		ev.Sent, ev.Failed = sent, failed
		ev.At = time.Now()
		events <- ev
	}

	emit(ProgressEvent{Kind: EventInfo, Index: -1,
		Detail: fmt.Sprintf("starting bulk send using %s", strings.ToUpper(job.ProviderType))})

	for i := start; i < len(job.Rows); i++ {
		if ctx.Err() != nil {
			emit(ProgressEvent{Kind: EventStopped, Index: -1, Detail: "sending stopped"})
			return
		}

		row := job.Rows[i]
		body := d.renderer.Render(job.Template, row.Values)

		raw, found := row.PhoneValue()
		if !found || raw == "" {
			// Synthetic failure: the gateway is never called and the
			// pacing delay is not incurred.
			failed++
			emit(ProgressEvent{Kind: EventSkipped, Index: i, Detail: "no phone number found"})
			d.log.Warn("row skipped", "row", i+1, "reason", "no phone number found")
			continue
		}

		if i > start {
			delay := d.nextDelay()
			emit(ProgressEvent{Kind: EventInfo, Index: i,
				Detail: fmt.Sprintf("waiting %ds to look human", int(delay/time.Second))})
			if err := sleepCtx(ctx, delay); err != nil {
				// Cancelled mid-delay: no further send may happen.
				emit(ProgressEvent{Kind: EventStopped, Index: -1, Detail: "sending stopped"})
				return
			}
			if ctx.Err() != nil {
				emit(ProgressEvent{Kind: EventStopped, Index: -1, Detail: "sending stopped"})
				return
			}
		}

		to := phone.Normalize(raw)

		// Once started, the network call runs to completion even if the
		// run is cancelled meanwhile.
		out, err := d.gateway.Send(context.WithoutCancel(ctx), to, body, job.Config)
		switch {
		case err != nil:
			failed++
			emit(ProgressEvent{Kind: EventFailed, Index: i, To: to, Detail: err.Error()})
			d.log.Warn("send failed", "to", to, "err", err)
		case out.Success:
			pid := out.ProviderMessageID
			if pid == "" {
				pid = placeholderProviderID
			}
			sent++
			emit(ProgressEvent{Kind: EventSent, Index: i, To: to, Detail: pid})
			d.log.Info("message sent", "to", to, "provider_id", pid)
		default:
			failed++
			emit(ProgressEvent{Kind: EventFailed, Index: i, To: to, Detail: out.Error})
			d.log.Warn("send failed", "to", to, "err", out.Error)
		}
	}

	emit(ProgressEvent{Kind: EventDone, Index: -1, Detail: "batch processing finished"})
}

func (d *ContinuousDriver) nextDelay() time.Duration {
	if d.maxDelay == d.minDelay {
		return d.minDelay
	}
	return d.minDelay + time.Duration(rand.Int63n(int64(d.maxDelay-d.minDelay)+1))
}
