// Package memory implements ports.CampaignRepository in process memory.
// It exists for tests and for single-process setups that do not need
// durability; it enforces the same ordering, eligibility and write-once
// rules as the PostgreSQL adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sms-campaign-engine/internal/domain"

	"github.com/google/uuid"
)

// Repository is a mutex-guarded in-memory campaign store.
type Repository struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*domain.Campaign
	messages  map[uuid.UUID][]*domain.Message // keyed by campaign ID, submission order
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{
		campaigns: make(map[uuid.UUID]*domain.Campaign),
		messages:  make(map[uuid.UUID][]*domain.Message),
	}
}

// CreateCampaign stores the campaign and its messages.
func (r *Repository) CreateCampaign(_ context.Context, c domain.Campaign, msgs []domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := c
	r.campaigns[c.ID] = &stored
	list := make([]*domain.Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		list[i] = &m
	}
	r.messages[c.ID] = list
	return nil
}

// GetCampaign returns a copy of the campaign.
func (r *Repository) GetCampaign(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCampaigns returns all campaigns, newest first.
func (r *Repository) ListCampaigns(_ context.Context) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// NextEligible picks the earliest-scheduled pending or sending campaign
// whose schedule has arrived, or (nil, nil).
func (r *Repository) NextEligible(_ context.Context, now time.Time) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *domain.Campaign
	for _, c := range r.campaigns {
		if c.Status != domain.CampaignPending && c.Status != domain.CampaignSending {
			continue
		}
		if c.ScheduledAt.After(now) {
			continue
		}
		if best == nil || c.ScheduledAt.Before(best.ScheduledAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// UpdateCampaignStatus applies a state-machine-checked transition.
func (r *Repository) UpdateCampaignStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	if !c.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatus, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// PendingMessages returns up to limit pending messages in submission order.
func (r *Repository) PendingMessages(_ context.Context, campaignID uuid.UUID, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Message
	for _, m := range r.messages[campaignID] {
		if m.Status != domain.MessagePending {
			continue
		}
		out = append(out, *m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkSent transitions a pending message to sent; terminal statuses are
// write-once.
func (r *Repository) MarkSent(_ context.Context, id uuid.UUID, providerMessageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.findPending(id)
	if m == nil {
		return domain.ErrMessageNotFound
	}
	m.Status = domain.MessageSent
	m.ProviderMessageID = providerMessageID
	sentAt := at
	m.SentAt = &sentAt
	return nil
}

// MarkFailed transitions a pending message to failed.
func (r *Repository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.findPending(id)
	if m == nil {
		return domain.ErrMessageNotFound
	}
	m.Status = domain.MessageFailed
	m.ErrorMessage = errMsg
	return nil
}

// IncrementSent bumps the campaign's sent counter.
func (r *Repository) IncrementSent(_ context.Context, campaignID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.SentCount++
	return nil
}

// IncrementFailed bumps the campaign's failed counter.
func (r *Repository) IncrementFailed(_ context.Context, campaignID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.FailedCount++
	return nil
}

// MessageStats returns per-status counts plus a total.
func (r *Repository) MessageStats(_ context.Context, campaignID uuid.UUID) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := map[string]int{"total": 0, "pending": 0, "sent": 0, "failed": 0}
	for _, m := range r.messages[campaignID] {
		stats[string(m.Status)]++
		stats["total"]++
	}
	return stats, nil
}

// DeleteCampaign removes the campaign and its messages.
func (r *Repository) DeleteCampaign(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(r.campaigns, id)
	delete(r.messages, id)
	return nil
}

// Message returns a copy of one message, for assertions in tests.
func (r *Repository) Message(id uuid.UUID) (domain.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, list := range r.messages {
		for _, m := range list {
			if m.ID == id {
				return *m, true
			}
		}
	}
	return domain.Message{}, false
}

func (r *Repository) findPending(id uuid.UUID) *domain.Message {
	for _, list := range r.messages {
		for _, m := range list {
			if m.ID == id && m.Status == domain.MessagePending {
				return m
			}
		}
	}
	return nil
}
