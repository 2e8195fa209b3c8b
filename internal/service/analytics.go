package service

import (
	"context"
	"fmt"

	"github.com/mailpilot/campaign-engine/internal/repository"
)

// CampaignAnalytics are the delivery and engagement aggregates for one
// campaign. Open and click counts are distinct recipients, so two opens by
// the same person count once; rates are against the sent count and zero when
// nothing was sent.
type CampaignAnalytics struct {
	CampaignID string  `json:"campaign_id"`
	SentCount  int64   `json:"sent_count"`
	OpenCount  int64   `json:"open_count"`
	ClickCount int64   `json:"click_count"`
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
}

// AnalyticsService derives campaign aggregates from recipient rows. The
// append-only event log is the audit trail; the recipient timestamps are the
// source of truth for counts.
type AnalyticsService struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
}

func NewAnalyticsService(
	campaigns repository.CampaignRepository,
	recipients repository.RecipientRepository,
) (*AnalyticsService, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}

	return &AnalyticsService{
		campaigns:  campaigns,
		recipients: recipients,
	}, nil
}

func (s *AnalyticsService) Get(ctx context.Context, organizationID, campaignID string) (*CampaignAnalytics, error) {
	campaign, err := s.campaigns.GetByID(ctx, organizationID, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.recipients.CountAnalytics(ctx, organizationID, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count analytics: %w", err)
	}

	analytics := &CampaignAnalytics{
		CampaignID: campaign.ID,
		SentCount:  counts.Sent,
		OpenCount:  counts.Opened,
		ClickCount: counts.Clicked,
	}
	if counts.Sent > 0 {
		analytics.OpenRate = float64(counts.Opened) / float64(counts.Sent)
		analytics.ClickRate = float64(counts.Clicked) / float64(counts.Sent)
	}

	return analytics, nil
}
