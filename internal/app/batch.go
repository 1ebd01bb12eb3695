package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/phone"
	"sms-campaign-engine/internal/ports"

	"github.com/google/uuid"
)

// placeholderProviderID is stored when a provider reports success but
// returns no message identifier.
const placeholderProviderID = "sent"

// GatewayResolver maps a campaign's provider type to a gateway.
type GatewayResolver func(providerType string) ports.ProviderGateway

// StepResult reports the work done by one batch step invocation.
type StepResult struct {
	CampaignID uuid.UUID
	Processed  int
	Completed  bool
	NoWork     bool
}

// BatchStepDriver advances one campaign by a bounded slice of recipients
// per call. It is stateless between invocations: all progress lives in
// the repository, so a scheduler can trigger it repeatedly and each call
// picks up where the last one stopped. The caller must serialize
// invocations; the driver takes no lock of its own.
type BatchStepDriver struct {
	repo     ports.CampaignRepository
	gateways GatewayResolver
	events   ports.EventPublisher
	log      *slog.Logger

	batchSize int
	pacing    time.Duration
	now       func() time.Time
}

// NewBatchStepDriver builds a driver. batchSize <= 0 defaults to 5 and
// pacing < 0 to 2s; a zero pacing is honoured (useful in tests).
func NewBatchStepDriver(
	repo ports.CampaignRepository,
	gateways GatewayResolver,
	events ports.EventPublisher,
	log *slog.Logger,
	batchSize int,
	pacing time.Duration,
) *BatchStepDriver {
	if batchSize <= 0 {
		batchSize = 5
	}
	if pacing < 0 {
		pacing = 2 * time.Second
	}
	return &BatchStepDriver{
		repo:      repo,
		gateways:  gateways,
		events:    events,
		log:       log,
		batchSize: batchSize,
		pacing:    pacing,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Step performs one bounded unit of work:
//
//  1. Pick the eligible campaign (earliest-scheduled pending/sending).
//  2. Persist pending→sending before any send attempt.
//  3. Fetch up to batchSize pending messages in submission order.
//  4. Zero rows: the campaign is done; transition to completed.
//  5. Send each message, recording the per-message outcome and bumping
//     the campaign counters, with pacing between messages.
//
// A provider failure is recorded on that message and never aborts the
// batch. A persistence failure aborts the step and is surfaced; the
// affected message stays pending for the next invocation, so the step is
// at-least-once with respect to provider sends.
func (d *BatchStepDriver) Step(ctx context.Context) (StepResult, error) {
	c, err := d.repo.NextEligible(ctx, d.now())
	if err != nil {
		return StepResult{}, fmt.Errorf("select campaign: %w", err)
	}
	if c == nil {
		return StepResult{NoWork: true}, nil
	}

	res := StepResult{CampaignID: c.ID}

	if c.Status == domain.CampaignPending {
		if err := d.repo.UpdateCampaignStatus(ctx, c.ID, domain.CampaignSending); err != nil {
			return res, fmt.Errorf("mark sending: %w", err)
		}
		d.publish(ctx, ports.EngineEvent{Kind: ports.EventCampaignStarted, CampaignID: c.ID})
	}

	msgs, err := d.repo.PendingMessages(ctx, c.ID, d.batchSize)
	if err != nil {
		return res, fmt.Errorf("fetch pending: %w", err)
	}

	if len(msgs) == 0 {
		if err := d.repo.UpdateCampaignStatus(ctx, c.ID, domain.CampaignCompleted); err != nil {
			return res, fmt.Errorf("mark completed: %w", err)
		}
		d.publish(ctx, ports.EngineEvent{Kind: ports.EventCampaignCompleted, CampaignID: c.ID})
		d.log.Info("campaign completed", "campaign_id", c.ID)
		res.Completed = true
		return res, nil
	}

	gw := d.gateways(c.ProviderType)

	for i, m := range msgs {
		// Pacing before every message except the first keeps call
		// latency bounded by the batch size.
		if i > 0 && d.pacing > 0 {
			if err := sleepCtx(ctx, d.pacing); err != nil {
				return res, err
			}
		}

		out := d.send(ctx, gw, c, m)
		if out.Success {
			pid := out.ProviderMessageID
			if pid == "" {
				pid = placeholderProviderID
			}
			if err := d.repo.MarkSent(ctx, m.ID, pid, d.now()); err != nil {
				return res, fmt.Errorf("mark sent %s: %w", m.ID, err)
			}
			if err := d.repo.IncrementSent(ctx, c.ID); err != nil {
				return res, fmt.Errorf("increment sent: %w", err)
			}
			d.publish(ctx, ports.EngineEvent{
				Kind: ports.EventMessageSent, CampaignID: c.ID, MessageID: m.ID,
				To: m.PhoneNumber, Detail: pid,
			})
			d.log.Info("message sent", "campaign_id", c.ID, "msg_id", m.ID, "provider_id", pid)
		} else {
			if err := d.repo.MarkFailed(ctx, m.ID, out.Error); err != nil {
				return res, fmt.Errorf("mark failed %s: %w", m.ID, err)
			}
			if err := d.repo.IncrementFailed(ctx, c.ID); err != nil {
				return res, fmt.Errorf("increment failed: %w", err)
			}
			d.publish(ctx, ports.EngineEvent{
				Kind: ports.EventMessageFailed, CampaignID: c.ID, MessageID: m.ID,
				To: m.PhoneNumber, Detail: out.Error,
			})
			d.log.Warn("message failed", "campaign_id", c.ID, "msg_id", m.ID, "err", out.Error)
		}

		res.Processed++
	}

	return res, nil
}

// send normalizes the stored raw number and calls the gateway. Transport
// faults are folded into an unsuccessful outcome so the loop treats them
// like reported failures.
func (d *BatchStepDriver) send(ctx context.Context, gw ports.ProviderGateway, c *domain.Campaign, m domain.Message) ports.Outcome {
	to := phone.Normalize(m.PhoneNumber)
	out, err := gw.Send(ctx, to, m.Content, c.ProviderConfig)
	if err != nil {
		return ports.Outcome{Success: false, Error: err.Error()}
	}
	if !out.Success && out.Error == "" {
		out.Error = "provider rejected message"
	}
	return out
}

func (d *BatchStepDriver) publish(ctx context.Context, ev ports.EngineEvent) {
	ev.At = d.now()
	if err := d.events.Publish(ctx, ev); err != nil {
		d.log.Warn("publish event", "kind", ev.Kind, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
