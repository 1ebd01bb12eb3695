// Package postgres implements ports.CampaignRepository on PostgreSQL
// through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sms-campaign-engine/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository is the PostgreSQL-backed campaign store.
type Repository struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection pool and returns a Repository.
func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the campaign and message tables,
// including the eligibility and pending-lookup indexes declared on the
// domain structs.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Campaign{}, &domain.Message{})
}

// CreateCampaign inserts the campaign and its messages transactionally,
// preserving submission order via Message.Position.
func (r *Repository) CreateCampaign(ctx context.Context, c domain.Campaign, msgs []domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		if err := tx.CreateInBatches(msgs, 500).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		return nil
	})
}

// GetCampaign retrieves a campaign by ID.
func (r *Repository) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	var c domain.Campaign
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}

// ListCampaigns returns all campaigns, newest first.
func (r *Repository) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	var cs []domain.Campaign
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return cs, nil
}

// NextEligible picks the one campaign a step may advance: pending or
// sending, scheduled at or before now, earliest schedule first. The
// caller is assumed to serialize invocations (see the batch runner); no
// row lock is taken here.
func (r *Repository) NextEligible(ctx context.Context, now time.Time) (*domain.Campaign, error) {
	var c domain.Campaign
	err := r.db.WithContext(ctx).
		Where("status IN ? AND scheduled_at <= ?",
			[]domain.CampaignStatus{domain.CampaignPending, domain.CampaignSending}, now).
		Order("scheduled_at ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible campaign: %w", err)
	}
	return &c, nil
}

// UpdateCampaignStatus applies a state-machine-checked transition.
func (r *Repository) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Campaign
		err := tx.First(&c, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrCampaignNotFound
		}
		if err != nil {
			return fmt.Errorf("load campaign: %w", err)
		}
		if !c.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatus, c.Status, status)
		}
		if err := tx.Model(&domain.Campaign{}).Where("id = ?", id).
			Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
}

// PendingMessages returns up to limit pending messages for the campaign
// in submission order.
func (r *Repository) PendingMessages(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.MessagePending).
		Order("position ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("pending messages: %w", err)
	}
	return msgs, nil
}

// MarkSent transitions a pending message to sent. The status=pending
// guard makes terminal statuses write-once.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, domain.MessagePending).
		Updates(map[string]any{
			"status":              domain.MessageSent,
			"provider_message_id": providerMessageID,
			"sent_at":             at,
		})
	if res.Error != nil {
		return fmt.Errorf("mark sent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// MarkFailed transitions a pending message to failed with the error text.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	res := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, domain.MessagePending).
		Updates(map[string]any{
			"status":        domain.MessageFailed,
			"error_message": errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("mark failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// IncrementSent bumps the campaign's sent counter atomically.
func (r *Repository) IncrementSent(ctx context.Context, campaignID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.Campaign{}).
		Where("id = ?", campaignID).
		UpdateColumn("sent_count", gorm.Expr("sent_count + 1")).Error
	if err != nil {
		return fmt.Errorf("increment sent: %w", err)
	}
	return nil
}

// IncrementFailed bumps the campaign's failed counter atomically.
func (r *Repository) IncrementFailed(ctx context.Context, campaignID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.Campaign{}).
		Where("id = ?", campaignID).
		UpdateColumn("failed_count", gorm.Expr("failed_count + 1")).Error
	if err != nil {
		return fmt.Errorf("increment failed: %w", err)
	}
	return nil
}

// MessageStats returns per-status message counts plus a total.
func (r *Repository) MessageStats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("message stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{
		"total":   0,
		"pending": 0,
		"sent":    0,
		"failed":  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

// DeleteCampaign removes the campaign and all of its messages.
func (r *Repository) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&domain.Campaign{})
		if res.Error != nil {
			return fmt.Errorf("delete campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrCampaignNotFound
		}
		return nil
	})
}
