package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/observability"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSchedulerInterval = time.Minute
	defaultSchedulerMax      = 10
)

// campaignSender is the slice of the dispatcher the scheduler drives.
type campaignSender interface {
	Send(ctx context.Context, organizationID, campaignID string, ratePerSec float64, dryRun bool) (*SendReport, error)
}

// ScheduledOutcome classifies what happened to one due campaign in a
// scheduler pass.
type ScheduledOutcome string

const (
	OutcomeSent    ScheduledOutcome = "sent"
	OutcomeFailed  ScheduledOutcome = "failed"
	OutcomeSkipped ScheduledOutcome = "skipped"
)

// ScheduledResult is the per-campaign record of one scheduler pass.
type ScheduledResult struct {
	CampaignID string           `json:"campaign_id"`
	Outcome    ScheduledOutcome `json:"outcome"`
	Report     *SendReport      `json:"report,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Scheduler picks up campaigns whose scheduled time has passed and dispatches
// them. Each due campaign is claimed with a conditional update before any
// work happens, so overlapping passes (two cron firings, two replicas) each
// end up dispatching a disjoint set.
type Scheduler struct {
	campaigns  repository.CampaignRepository
	sender     campaignSender
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	maxPerPass int
	ratePerSec float64
	now        func() time.Time
}

func NewScheduler(
	campaigns repository.CampaignRepository,
	sender campaignSender,
	interval time.Duration,
	maxPerPass int,
	ratePerSec float64,
	logger *zap.Logger,
) (*Scheduler, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("campaign sender is required")
	}
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	if maxPerPass <= 0 {
		maxPerPass = defaultSchedulerMax
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		campaigns:  campaigns,
		sender:     sender,
		logger:     logger,
		interval:   interval,
		maxPerPass: maxPerPass,
		ratePerSec: ratePerSec,
		now:        time.Now,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs scheduler passes until context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial pass so campaigns already due do not wait for the first
	// ticker edge.
	if _, err := s.ProcessDue(ctx, s.maxPerPass, s.ratePerSec); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ProcessDue(ctx, s.maxPerPass, s.ratePerSec); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("scheduler pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessDue claims and dispatches due scheduled campaigns, at most
// maxCampaigns of them, concurrently. It returns one result per due campaign;
// campaigns another pass claimed first are reported as skipped.
func (s *Scheduler) ProcessDue(ctx context.Context, maxCampaigns int, ratePerSec float64) ([]ScheduledResult, error) {
	if maxCampaigns <= 0 {
		maxCampaigns = s.maxPerPass
	}
	if ratePerSec <= 0 {
		ratePerSec = s.ratePerSec
	}

	due, err := s.campaigns.GetDueScheduled(ctx, s.now().UTC(), maxCampaigns)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due campaigns: %w", err)
	}
	if len(due) == 0 {
		return []ScheduledResult{}, nil
	}

	results := make([]ScheduledResult, len(due))
	g, groupCtx := errgroup.WithContext(ctx)
	for i := range due {
		campaign := due[i]
		slot := &results[i]

		g.Go(func() error {
			*slot = s.processOne(groupCtx, campaign, ratePerSec)
			if s.metrics != nil {
				s.metrics.IncCampaignProcessed(string(slot.Outcome))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *Scheduler) processOne(ctx context.Context, campaign domain.Campaign, ratePerSec float64) ScheduledResult {
	result := ScheduledResult{CampaignID: campaign.ID}
	logger := observability.CampaignLogger(s.logger, campaign.ID)

	claimed, err := s.campaigns.ClaimScheduled(ctx, campaign.ID, s.now().UTC())
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("claim failed: %v", err)
		logger.Error("failed to claim scheduled campaign", zap.Error(err))
		return result
	}
	if !claimed {
		result.Outcome = OutcomeSkipped
		logger.Info("scheduled campaign already claimed, skipping")
		return result
	}

	report, err := s.dispatchWithRetry(ctx, campaign, ratePerSec)
	result.Report = report
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()

		if finishErr := s.campaigns.FinishDispatch(ctx, campaign.ID, domain.CampaignStatusFailed); finishErr != nil && !errors.Is(finishErr, domain.ErrConflict) {
			logger.Error("failed to mark campaign failed", zap.Error(finishErr))
		}
		logger.Error("scheduled campaign dispatch failed", zap.Error(err))
		return result
	}

	result.Outcome = OutcomeSent
	logger.Info("scheduled campaign dispatched",
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)
	return result
}

// dispatchWithRetry retries a failed dispatch exactly once. The campaign is
// already in sending state from the claim, so the retry resumes where the
// first attempt stopped: recipients it marked sent stay sent.
func (s *Scheduler) dispatchWithRetry(ctx context.Context, campaign domain.Campaign, ratePerSec float64) (*SendReport, error) {
	report, err := s.sender.Send(ctx, campaign.OrganizationID, campaign.ID, ratePerSec, false)
	if err == nil {
		return report, nil
	}
	if ctx.Err() != nil || errors.Is(err, domain.ErrNoRecipients) {
		return report, err
	}

	s.logger.Warn("dispatch attempt failed, retrying once",
		zap.String("campaignId", campaign.ID),
		zap.Error(err),
	)

	return s.sender.Send(ctx, campaign.OrganizationID, campaign.ID, ratePerSec, false)
}
