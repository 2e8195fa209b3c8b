package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"go.uber.org/zap"
)

// CampaignService covers campaign lifecycle management outside of dispatch:
// creation, listing, edits with status transition checks, and targeting
// rules.
type CampaignService struct {
	campaigns  repository.CampaignRepository
	rules      repository.TargetRuleRepository
	recipients repository.RecipientRepository
	events     repository.EventRepository
	logger     *zap.Logger
}

// CampaignUpdate carries the mutable campaign fields; nil means unchanged.
type CampaignUpdate struct {
	Name        *string
	SubjectLine *string
	TemplateID  *string
	ScheduledAt *time.Time
	Status      *domain.CampaignStatus
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	rules repository.TargetRuleRepository,
	recipients repository.RecipientRepository,
	events repository.EventRepository,
	logger *zap.Logger,
) (*CampaignService, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("target rule repository is required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignService{
		campaigns:  campaigns,
		rules:      rules,
		recipients: recipients,
		events:     events,
		logger:     logger,
	}, nil
}

func (s *CampaignService) Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}

	campaign.ID = strings.TrimSpace(campaign.ID)
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	campaign.Name = strings.TrimSpace(campaign.Name)
	campaign.SubjectLine = strings.TrimSpace(campaign.SubjectLine)
	campaign.TemplateID = normalizeOptionalString(campaign.TemplateID)
	if campaign.Status == "" {
		campaign.Status = domain.CampaignStatusDraft
	}
	campaign.SentAt = nil

	// New campaigns start in draft or scheduled; mid-lifecycle states cannot
	// be created directly.
	if campaign.Status != domain.CampaignStatusDraft && campaign.Status != domain.CampaignStatusScheduled {
		return nil, fmt.Errorf("%w: campaign cannot be created in status %s", domain.ErrValidation, campaign.Status)
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created",
		zap.String("campaignId", campaign.ID),
		zap.String("status", campaign.Status.String()),
	)

	return campaign, nil
}

func (s *CampaignService) GetByID(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}
	return s.campaigns.GetByID(ctx, organizationID, strings.TrimSpace(id))
}

func (s *CampaignService) List(ctx context.Context, organizationID string, params repository.CampaignListParams) ([]domain.Campaign, int64, error) {
	return s.campaigns.List(ctx, organizationID, params)
}

// Update applies the given field changes. A status change must be a legal
// transition from the campaign's current state; for everything else the
// campaign must not already be mid-send or finished.
func (s *CampaignService) Update(ctx context.Context, organizationID, id string, update CampaignUpdate) (*domain.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if campaign.Status.IsTerminal() || campaign.Status == domain.CampaignStatusSending {
		return nil, fmt.Errorf("%w: campaign %s is %s and cannot be edited", domain.ErrConflict, campaign.ID, campaign.Status)
	}

	if update.Name != nil {
		campaign.Name = strings.TrimSpace(*update.Name)
	}
	if update.SubjectLine != nil {
		campaign.SubjectLine = strings.TrimSpace(*update.SubjectLine)
	}
	if update.TemplateID != nil {
		campaign.TemplateID = normalizeOptionalString(update.TemplateID)
	}
	if update.ScheduledAt != nil {
		scheduledAt := update.ScheduledAt.UTC()
		campaign.ScheduledAt = &scheduledAt
	}
	if update.Status != nil && *update.Status != campaign.Status {
		if err := campaign.Transition(*update.Status); err != nil {
			return nil, err
		}
	}

	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

func (s *CampaignService) GetTargetRule(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error) {
	if _, err := s.campaigns.GetByID(ctx, organizationID, campaignID); err != nil {
		return nil, err
	}
	return s.rules.GetOrCreateDefault(ctx, organizationID, campaignID)
}

func (s *CampaignService) PutTargetRule(ctx context.Context, organizationID, campaignID string, rule *domain.TargetRule) (*domain.TargetRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: target rule is required", domain.ErrValidation)
	}
	if _, err := s.campaigns.GetByID(ctx, organizationID, campaignID); err != nil {
		return nil, err
	}

	rule.CampaignID = campaignID
	rule.OrganizationID = organizationID
	rule.IncludeTags = domain.CleanTags(rule.IncludeTags)
	rule.ExcludeTags = domain.CleanTags(rule.ExcludeTags)
	rule.ExcludeCountries = domain.CleanTags(rule.ExcludeCountries)

	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *CampaignService) ListRecipients(ctx context.Context, organizationID, campaignID string, params repository.RecipientListParams) ([]domain.Recipient, int64, error) {
	if _, err := s.campaigns.GetByID(ctx, organizationID, campaignID); err != nil {
		return nil, 0, err
	}
	return s.recipients.List(ctx, organizationID, campaignID, params)
}

func (s *CampaignService) ListEvents(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error) {
	if _, err := s.campaigns.GetByID(ctx, organizationID, campaignID); err != nil {
		return nil, err
	}
	return s.events.ListByCampaign(ctx, organizationID, campaignID, limit)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
