package ports

import (
	"context"
	"time"

	"sms-campaign-engine/internal/domain"

	"github.com/google/uuid"
)

// CampaignRepository defines persistence operations for campaigns and
// their messages.
type CampaignRepository interface {
	// CreateCampaign persists a new Campaign with its Messages in a
	// single transaction, preserving message order.
	CreateCampaign(ctx context.Context, c domain.Campaign, msgs []domain.Message) error

	// GetCampaign retrieves a campaign by ID.
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// ListCampaigns returns all campaigns, newest first.
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)

	// NextEligible returns the single campaign a step may advance:
	// status pending or sending, scheduled at or before now, earliest
	// schedule first. It returns (nil, nil) when no campaign is eligible.
	NextEligible(ctx context.Context, now time.Time) (*domain.Campaign, error)

	// UpdateCampaignStatus transitions a campaign, rejecting transitions
	// the state machine does not allow.
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error

	// PendingMessages returns up to limit pending messages for a
	// campaign, in submission order.
	PendingMessages(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.Message, error)

	// MarkSent transitions a pending message to sent with the provider's
	// message ID. Terminal messages are never rewritten.
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, at time.Time) error

	// MarkFailed transitions a pending message to failed with the error
	// text. Terminal messages are never rewritten.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// IncrementSent / IncrementFailed bump the campaign counters by one.
	IncrementSent(ctx context.Context, campaignID uuid.UUID) error
	IncrementFailed(ctx context.Context, campaignID uuid.UUID) error

	// MessageStats returns per-status message counts for a campaign,
	// plus a "total" entry.
	MessageStats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)

	// DeleteCampaign removes a campaign and cascades to its messages.
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
}
