package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"   // Created, no recipient attempted yet
	CampaignSending   CampaignStatus = "sending"   // At least one recipient attempted
	CampaignCompleted CampaignStatus = "completed" // Every message reached a terminal status
	CampaignPaused    CampaignStatus = "paused"    // Stopped by explicit operator cancellation
)

// CanTransition reports whether moving from s to next is a legal campaign
// transition. pending→sending→completed is monotonic; paused is reachable
// from pending or sending by cancellation only, and a paused campaign goes
// back to pending only through an explicit resume.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	switch s {
	case CampaignPending:
		return next == CampaignSending || next == CampaignPaused
	case CampaignSending:
		return next == CampaignCompleted || next == CampaignPaused
	case CampaignPaused:
		return next == CampaignPending
	}
	return false
}

// MessageStatus is the delivery state of a single message. It is write-once
// from pending to a terminal state.
type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// Known provider types. Unknown types fall back to the mock gateway.
const (
	ProviderMock    = "mock"
	ProviderTwilio  = "twilio"
	ProviderTextBee = "textbee"
)

// ProviderConfig is the opaque credential blob attached to a campaign.
// Drivers treat it as read-only and pass it through to the gateway.
type ProviderConfig map[string]string

// Value serialises the config as JSON for storage.
func (c ProviderConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal provider config: %w", err)
	}
	return string(b), nil
}

// Scan restores the config from its stored JSON form.
func (c *ProviderConfig) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("unsupported provider config type %T", src)
	}
	return json.Unmarshal(data, c)
}

// Campaign is the unit of bulk-send work: an ordered recipient set, a
// message template, a provider selection, a schedule and counters.
type Campaign struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name           string         `gorm:"not null"`
	Template       string         `gorm:"not null"`
	ProviderType   string         `gorm:"not null"`
	ProviderConfig ProviderConfig `gorm:"type:jsonb;not null"`
	Status         CampaignStatus `gorm:"type:varchar(16);not null;index:idx_campaigns_eligible"`
	TotalMessages  int            `gorm:"not null"`
	SentCount      int            `gorm:"not null"`
	FailedCount    int            `gorm:"not null"`
	ScheduledAt    time.Time      `gorm:"index:idx_campaigns_eligible"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Message is one recipient's slot in a campaign. Content is rendered at
// submission time; PhoneNumber is stored raw, as ingested.
type Message struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey"`
	CampaignID        uuid.UUID     `gorm:"type:uuid;not null;index:idx_messages_campaign_status"`
	PhoneNumber       string        `gorm:"not null"`
	Content           string        `gorm:"not null"`
	Status            MessageStatus `gorm:"type:varchar(16);not null;index:idx_messages_campaign_status"`
	ErrorMessage      string
	ProviderMessageID string
	// Position preserves submission order; pending messages are always
	// fetched in ascending Position.
	Position  int `gorm:"not null"`
	SentAt    *time.Time
	CreatedAt time.Time
}

// NewCampaign creates a pending Campaign scheduled at the given instant.
func NewCampaign(name, template, providerType string, cfg ProviderConfig, scheduledAt time.Time, total int) Campaign {
	now := time.Now().UTC()
	return Campaign{
		ID:             uuid.New(),
		Name:           name,
		Template:       template,
		ProviderType:   providerType,
		ProviderConfig: cfg,
		Status:         CampaignPending,
		TotalMessages:  total,
		ScheduledAt:    scheduledAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewMessage creates a pending Message at the given submission position.
func NewMessage(campaignID uuid.UUID, to, content string, position int) Message {
	return Message{
		ID:          uuid.New(),
		CampaignID:  campaignID,
		PhoneNumber: to,
		Content:     content,
		Status:      MessagePending,
		Position:    position,
		CreatedAt:   time.Now().UTC(),
	}
}

// Domain errors
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNoRecipients     = errors.New("campaign has no messages")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrScheduleTooFar   = errors.New("scheduled start is more than 7 days ahead")
)
