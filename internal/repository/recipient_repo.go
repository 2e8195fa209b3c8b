package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipientListParams filters and pages the recipient listing.
type RecipientListParams struct {
	Status   *domain.RecipientStatus
	Page     int
	PageSize int
}

// AnalyticsCounts are the per-campaign aggregates read from recipient rows.
// Opened and Clicked are distinct-recipient counts, not raw event counts.
type AnalyticsCounts struct {
	Sent    int64
	Opened  int64
	Clicked int64
}

type RecipientRepository interface {
	// InsertPending inserts the given rows, silently skipping any
	// (campaign, contact) pair that already exists. Existing rows keep their
	// status and timestamps, which is what makes prepare idempotent.
	InsertPending(ctx context.Context, recipients []*domain.Recipient) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Recipient, error)
	// ListPending returns pending recipients in creation order, the stable
	// dispatch order.
	ListPending(ctx context.Context, campaignID string) ([]domain.Recipient, error)
	CountPending(ctx context.Context, campaignID string) (int64, error)
	List(ctx context.Context, organizationID, campaignID string, params RecipientListParams) ([]domain.Recipient, int64, error)
	// MarkSent moves a pending recipient to sent. A row no longer pending is
	// left untouched.
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkOpened sets opened_at if unset, reporting whether this was the
	// first open. Later opens never move the timestamp.
	MarkOpened(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkClicked sets clicked_at if unset, reporting whether this was the
	// first click.
	MarkClicked(ctx context.Context, id string, at time.Time) (bool, error)
	CountAnalytics(ctx context.Context, organizationID, campaignID string) (*AnalyticsCounts, error)
}

type GormRecipientRepo struct {
	db *gorm.DB
}

var _ RecipientRepository = (*GormRecipientRepo)(nil)

func NewGormRecipientRepo(db *gorm.DB) *GormRecipientRepo {
	return &GormRecipientRepo{db: db}
}

func (r *GormRecipientRepo) InsertPending(ctx context.Context, recipients []*domain.Recipient) (int64, error) {
	models := make([]RecipientModel, 0, len(recipients))
	for _, rec := range recipients {
		if model := recipientModelFromDomain(rec); model != nil {
			models = append(models, *model)
		}
	}

	if len(models) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "contact_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&models, 100)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *GormRecipientRepo) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	var model RecipientModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipientModelToDomain(&model), nil
}

func (r *GormRecipientRepo) ListPending(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	var models []RecipientModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.RecipientStatusPending).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}

	return recipients, nil
}

func (r *GormRecipientRepo) CountPending(ctx context.Context, campaignID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("campaign_id = ? AND status = ?", campaignID, domain.RecipientStatusPending).
		Count(&count).Error
	return count, err
}

func (r *GormRecipientRepo) List(ctx context.Context, organizationID, campaignID string, params RecipientListParams) ([]domain.Recipient, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("campaign_id = ? AND organization_id = ?", campaignID, organizationID)

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
		pageSize = 100
	}
	pageSize = min(pageSize, 500)

	var models []RecipientModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}

	return recipients, total, nil
}

func (r *GormRecipientRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("id = ? AND status = ?", id, domain.RecipientStatusPending).
		Updates(map[string]any{
			"status":  domain.RecipientStatusSent,
			"sent_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormRecipientRepo) MarkOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("id = ? AND opened_at IS NULL", id).
		Updates(map[string]any{
			"opened_at": at,
			"status": gorm.Expr(
				"CASE WHEN status IN ? THEN ? ELSE status END",
				[]domain.RecipientStatus{domain.RecipientStatusSent, domain.RecipientStatusDelivered},
				domain.RecipientStatusOpened,
			),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormRecipientRepo) MarkClicked(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("id = ? AND clicked_at IS NULL", id).
		Updates(map[string]any{
			"clicked_at": at,
			"status": gorm.Expr(
				"CASE WHEN status IN ? THEN ? ELSE status END",
				[]domain.RecipientStatus{
					domain.RecipientStatusSent,
					domain.RecipientStatusDelivered,
					domain.RecipientStatusOpened,
				},
				domain.RecipientStatusClicked,
			),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormRecipientRepo) CountAnalytics(ctx context.Context, organizationID, campaignID string) (*AnalyticsCounts, error) {
	var counts AnalyticsCounts
	err := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Select(
			"COUNT(*) FILTER (WHERE status <> ?) AS sent, "+
				"COUNT(*) FILTER (WHERE opened_at IS NOT NULL) AS opened, "+
				"COUNT(*) FILTER (WHERE clicked_at IS NOT NULL) AS clicked",
			domain.RecipientStatusPending,
		).
		Where("campaign_id = ? AND organization_id = ?", campaignID, organizationID).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
