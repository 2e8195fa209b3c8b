package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"gorm.io/gorm"
)

// CampaignListParams filters and pages the campaign listing.
type CampaignListParams struct {
	Status   *domain.CampaignStatus
	Page     int
	PageSize int
}

type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, organizationID, id string) (*domain.Campaign, error)
	List(ctx context.Context, organizationID string, params CampaignListParams) ([]domain.Campaign, int64, error)
	Update(ctx context.Context, c *domain.Campaign) error
	// GetDueScheduled returns campaigns in scheduled state whose scheduled_at
	// has passed, oldest first, bounded by limit.
	GetDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)
	// ClaimScheduled atomically transitions scheduled -> sending. It reports
	// false when the row was no longer in scheduled state, which is how two
	// overlapping scheduler runs resolve to a single sender.
	ClaimScheduled(ctx context.Context, id string, at time.Time) (bool, error)
	// BeginDispatch transitions draft/scheduled -> sending for a manual send,
	// and accepts an already-sending campaign so an interrupted dispatch can
	// be resumed. sent_at is set only on the first transition into sending.
	BeginDispatch(ctx context.Context, id string, at time.Time) (bool, error)
	// FinishDispatch transitions sending -> sent|failed.
	FinishDispatch(ctx context.Context, id string, to domain.CampaignStatus) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

var _ CampaignRepository = (*GormCampaignRepo)(nil)

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *campaignModelToDomain(model)
	}
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).
		First(&model, "id = ? AND organization_id = ?", id, organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) List(ctx context.Context, organizationID string, params CampaignListParams) ([]domain.Campaign, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("organization_id = ?", organizationID)

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []CampaignModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, total, nil
}

func (r *GormCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND organization_id = ?", c.ID, c.OrganizationID).
		Updates(map[string]any{
			"name":         c.Name,
			"status":       c.Status,
			"template_id":  c.TemplateID,
			"subject_line": c.SubjectLine,
			"scheduled_at": c.ScheduledAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormCampaignRepo) GetDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.CampaignStatusScheduled, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}

func (r *GormCampaignRepo) ClaimScheduled(ctx context.Context, id string, at time.Time) (bool, error) {
	// Single conditional update: the claim succeeds only if the row is still
	// scheduled at the moment of the write. No read-then-write.
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignStatusScheduled).
		Updates(map[string]any{
			"status":  domain.CampaignStatusSending,
			"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormCampaignRepo) BeginDispatch(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status IN ?", id, []domain.CampaignStatus{
			domain.CampaignStatusDraft,
			domain.CampaignStatusScheduled,
			domain.CampaignStatusSending,
		}).
		Updates(map[string]any{
			"status":  domain.CampaignStatusSending,
			"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormCampaignRepo) FinishDispatch(ctx context.Context, id string, to domain.CampaignStatus) error {
	if !domain.CampaignStatusSending.CanTransition(to) {
		return domain.ErrConflict
	}

	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignStatusSending).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
