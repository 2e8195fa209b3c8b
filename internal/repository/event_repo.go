package repository

import (
	"context"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"gorm.io/gorm"
)

// EventRepository appends to the email_events log. Events are immutable;
// there is no update or delete path.
type EventRepository interface {
	Create(ctx context.Context, event *domain.EmailEvent) error
	ListByCampaign(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

var _ EventRepository = (*GormEventRepo)(nil)

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) Create(ctx context.Context, event *domain.EmailEvent) error {
	model := eventModelFromDomain(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if event != nil {
		*event = *eventModelToDomain(model)
	}
	return nil
}

func (r *GormEventRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error) {
	if limit < 1 || limit > 1000 {
		limit = 200
	}

	var models []EmailEventModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND organization_id = ?", campaignID, organizationID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.EmailEvent, 0, len(models))
	for i := range models {
		events = append(events, *eventModelToDomain(&models[i]))
	}

	return events, nil
}
