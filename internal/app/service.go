package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"

	"github.com/google/uuid"
)

// CampaignService handles campaign submission and operator actions:
// cancel, resume, delete, inspection. Advancing a campaign is the
// drivers' job, never the service's.
type CampaignService struct {
	repo   ports.CampaignRepository
	events ports.EventPublisher
	log    *slog.Logger
}

// NewCampaignService wires the service with its dependencies.
func NewCampaignService(repo ports.CampaignRepository, events ports.EventPublisher, log *slog.Logger) *CampaignService {
	return &CampaignService{repo: repo, events: events, log: log}
}

// SubmitEntry is one recipient slot: raw phone plus content already
// rendered from the template at submission time.
type SubmitEntry struct {
	To      string
	Content string
}

// SubmitRequest is the batch-mode entry point payload.
type SubmitRequest struct {
	Name           string
	Template       string
	ProviderType   string
	ProviderConfig domain.ProviderConfig
	ScheduledAt    *time.Time
	Messages       []SubmitEntry
}

// Submit validates the request and creates a pending campaign with one
// message per entry, preserving submission order. An empty message list
// is rejected before any state mutation.
func (s *CampaignService) Submit(ctx context.Context, req SubmitRequest) (domain.Campaign, error) {
	if len(req.Messages) == 0 {
		return domain.Campaign{}, domain.ErrNoRecipients
	}

	providerType := req.ProviderType
	if providerType == "" {
		providerType = domain.ProviderMock
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	c := domain.NewCampaign(req.Name, req.Template, providerType, req.ProviderConfig, scheduledAt, len(req.Messages))
	msgs := make([]domain.Message, 0, len(req.Messages))
	for i, entry := range req.Messages {
		msgs = append(msgs, domain.NewMessage(c.ID, entry.To, entry.Content, i))
	}

	if err := s.repo.CreateCampaign(ctx, c, msgs); err != nil {
		return domain.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}

	s.log.Info("campaign created", "campaign_id", c.ID, "messages", len(msgs), "scheduled_at", scheduledAt)
	return c, nil
}

// Cancel pauses a pending or sending campaign. A paused campaign stays
// paused until an explicit Resume; the engine never restarts it on its
// own.
func (s *CampaignService) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateCampaignStatus(ctx, id, domain.CampaignPaused); err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}
	s.log.Info("campaign paused", "campaign_id", id)
	return nil
}

// Resume is the explicit re-trigger for a paused campaign: it goes back
// to pending and becomes eligible for the next driver invocation.
func (s *CampaignService) Resume(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateCampaignStatus(ctx, id, domain.CampaignPending); err != nil {
		return fmt.Errorf("resume campaign: %w", err)
	}
	s.log.Info("campaign resumed", "campaign_id", id)
	return nil
}

// Delete removes a campaign and cascades to its messages. Operator
// action only.
func (s *CampaignService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCampaign(ctx, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	s.log.Info("campaign deleted", "campaign_id", id)
	return nil
}

// List returns all campaigns, newest first.
func (s *CampaignService) List(ctx context.Context) ([]domain.Campaign, error) {
	return s.repo.ListCampaigns(ctx)
}

// CampaignDetails is a campaign with its per-status message counts.
type CampaignDetails struct {
	Campaign domain.Campaign
	Stats    map[string]int
}

// Details fetches a campaign together with its message stats.
func (s *CampaignService) Details(ctx context.Context, id uuid.UUID) (CampaignDetails, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return CampaignDetails{}, err
	}
	stats, err := s.repo.MessageStats(ctx, id)
	if err != nil {
		return CampaignDetails{}, fmt.Errorf("campaign stats: %w", err)
	}
	return CampaignDetails{Campaign: *c, Stats: stats}, nil
}
