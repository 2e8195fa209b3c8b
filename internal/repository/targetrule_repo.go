package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mailpilot/campaign-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TargetRuleRepository interface {
	// GetOrCreateDefault returns the campaign's rule row, creating it with
	// defaults on first read.
	GetOrCreateDefault(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error)
	// Upsert writes the rule for a campaign, replacing any existing row.
	Upsert(ctx context.Context, rule *domain.TargetRule) error
}

type GormTargetRuleRepo struct {
	db *gorm.DB
}

var _ TargetRuleRepository = (*GormTargetRuleRepo)(nil)

func NewGormTargetRuleRepo(db *gorm.DB) *GormTargetRuleRepo {
	return &GormTargetRuleRepo{db: db}
}

func (r *GormTargetRuleRepo) GetOrCreateDefault(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error) {
	var model TargetRuleModel
	err := r.db.WithContext(ctx).
		First(&model, "campaign_id = ? AND organization_id = ?", campaignID, organizationID).Error
	if err == nil {
		return targetRuleModelToDomain(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rule := domain.DefaultTargetRule(campaignID, organizationID)
	rule.ID = uuid.NewString()
	created := targetRuleModelFromDomain(rule)

	// A concurrent first read may have inserted the row already; the unique
	// campaign_id index resolves the race and we re-read the winner.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}},
			DoNothing: true,
		}).
		Create(created)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		err = r.db.WithContext(ctx).
			First(&model, "campaign_id = ? AND organization_id = ?", campaignID, organizationID).Error
		if err != nil {
			return nil, err
		}
		return targetRuleModelToDomain(&model), nil
	}

	return targetRuleModelToDomain(created), nil
}

func (r *GormTargetRuleRepo) Upsert(ctx context.Context, rule *domain.TargetRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	model := targetRuleModelFromDomain(rule)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"include_tags",
				"exclude_tags",
				"exclude_countries",
				"exclude_unsubscribed",
				"exclude_inactive",
				"exclude_bounced",
				"updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	*rule = *targetRuleModelToDomain(model)
	return nil
}
