package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds published by the engine for external observers (dashboards,
// audit trails). Publishing is best-effort and never gates a send.
const (
	EventCampaignStarted   = "campaign.started"
	EventCampaignCompleted = "campaign.completed"
	EventMessageSent       = "message.sent"
	EventMessageFailed     = "message.failed"
)

// EngineEvent is a campaign lifecycle or per-message outcome notification.
type EngineEvent struct {
	Kind       string    `json:"kind"`
	CampaignID uuid.UUID `json:"campaign_id"`
	MessageID  uuid.UUID `json:"message_id,omitempty"`
	To         string    `json:"to,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher emits engine events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev EngineEvent) error
}

// NopPublisher discards events. Used when no broker is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EngineEvent) error { return nil }
