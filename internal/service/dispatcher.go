package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/observability"
	"github.com/mailpilot/campaign-engine/internal/provider"
	"github.com/mailpilot/campaign-engine/internal/ratelimit"
	"github.com/mailpilot/campaign-engine/internal/render"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"github.com/mailpilot/campaign-engine/internal/tracking"
	"go.uber.org/zap"
)

const (
	defaultRatePerSec      = 1.0
	minRatePerSec          = 0.1
	defaultMaxRatePerSec   = 14.0
	maxReportedSendErrors  = 100
	defaultProviderTimeout = 30 * time.Second
	fallbackBodyHTML       = "<p>No content</p>"
)

// SendErrorDetail is one per-recipient failure surfaced in a send report.
type SendErrorDetail struct {
	RecipientID string `json:"recipient_id"`
	ContactID   string `json:"contact_id"`
	Reason      string `json:"reason"`
}

// SendReport summarizes one dispatch pass over a campaign's pending
// recipients. Errors holds at most the first hundred failures; Failed keeps
// the true total.
type SendReport struct {
	CampaignID     string            `json:"campaign_id"`
	DryRun         bool              `json:"dry_run"`
	RecipientCount int               `json:"recipient_count"`
	Sent           int               `json:"sent"`
	Failed         int               `json:"failed"`
	Remaining      int64             `json:"remaining"`
	Errors         []SendErrorDetail `json:"errors,omitempty"`
}

// Dispatcher prepares recipient lists and drives rate-limited delivery
// through the configured email provider.
type Dispatcher struct {
	campaigns       repository.CampaignRepository
	recipients      repository.RecipientRepository
	contacts        repository.ContactStore
	templates       repository.TemplateStore
	resolver        *AudienceResolver
	provider        provider.EmailProvider
	instrumenter    *tracking.Instrumenter
	limiterFor      ratelimit.Factory
	logger          *zap.Logger
	metrics         *observability.Metrics
	fromEmail       string
	fromName        string
	maxRatePerSec   float64
	providerTimeout time.Duration
	now             func() time.Time
}

// DispatcherDeps collects the dispatcher's collaborators. Provider may be nil
// when no delivery backend is configured; sends then fail with
// ErrProviderNotConfigured while prepare and dry runs keep working.
type DispatcherDeps struct {
	Campaigns    repository.CampaignRepository
	Recipients   repository.RecipientRepository
	Contacts     repository.ContactStore
	Templates    repository.TemplateStore
	Resolver     *AudienceResolver
	Provider     provider.EmailProvider
	Instrumenter *tracking.Instrumenter
	LimiterFor   ratelimit.Factory
	Logger       *zap.Logger
	Metrics      *observability.Metrics

	FromEmail       string
	FromName        string
	MaxRatePerSec   float64
	ProviderTimeout time.Duration
}

func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if deps.Recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}
	if deps.Contacts == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	if deps.Templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("audience resolver is required")
	}
	if deps.LimiterFor == nil {
		return nil, fmt.Errorf("rate limiter factory is required")
	}
	if strings.TrimSpace(deps.FromEmail) == "" {
		return nil, fmt.Errorf("sender email is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxRatePerSec <= 0 {
		deps.MaxRatePerSec = defaultMaxRatePerSec
	}
	if deps.ProviderTimeout <= 0 {
		deps.ProviderTimeout = defaultProviderTimeout
	}

	return &Dispatcher{
		campaigns:       deps.Campaigns,
		recipients:      deps.Recipients,
		contacts:        deps.Contacts,
		templates:       deps.Templates,
		resolver:        deps.Resolver,
		provider:        deps.Provider,
		instrumenter:    deps.Instrumenter,
		limiterFor:      deps.LimiterFor,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		fromEmail:       strings.TrimSpace(deps.FromEmail),
		fromName:        strings.TrimSpace(deps.FromName),
		maxRatePerSec:   deps.MaxRatePerSec,
		providerTimeout: deps.ProviderTimeout,
		now:             time.Now,
	}, nil
}

// Prepare resolves the campaign's audience and materializes one pending
// recipient row per contact. Pairs that already exist are skipped, so calling
// prepare repeatedly never duplicates a recipient or resets its state. It
// returns the resolved audience size.
func (d *Dispatcher) Prepare(ctx context.Context, organizationID, campaignID string) (int, error) {
	campaign, err := d.campaigns.GetByID(ctx, organizationID, campaignID)
	if err != nil {
		return 0, err
	}

	audience, err := d.resolver.Resolve(ctx, campaign)
	if err != nil {
		return 0, err
	}

	now := d.now().UTC()
	rows := make([]*domain.Recipient, 0, len(audience))
	for _, contact := range audience {
		rows = append(rows, &domain.Recipient{
			ID:             uuid.NewString(),
			CampaignID:     campaign.ID,
			ContactID:      contact.ID,
			OrganizationID: campaign.OrganizationID,
			Status:         domain.RecipientStatusPending,
			CreatedAt:      now,
		})
	}

	inserted, err := d.recipients.InsertPending(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recipients: %w", err)
	}

	d.logger.Info("campaign prepared",
		zap.String("campaignId", campaign.ID),
		zap.Int("audience", len(audience)),
		zap.Int64("inserted", inserted),
	)

	return len(audience), nil
}

// Send dispatches the campaign's pending recipients at the given rate.
// A zero rate falls back to the configured default; anything above the
// provider ceiling is clamped down to it. When dryRun is set the audience is
// prepared and counted but no provider call is made and no state changes.
func (d *Dispatcher) Send(ctx context.Context, organizationID, campaignID string, ratePerSec float64, dryRun bool) (*SendReport, error) {
	campaign, err := d.campaigns.GetByID(ctx, organizationID, campaignID)
	if err != nil {
		return nil, err
	}

	if dryRun {
		return d.dryRunReport(ctx, campaign)
	}

	if campaign.Status.IsTerminal() || campaign.Status == domain.CampaignStatusPaused {
		return nil, fmt.Errorf("%w: campaign %s is %s", domain.ErrConflict, campaign.ID, campaign.Status)
	}
	if d.provider == nil {
		return nil, domain.ErrProviderNotConfigured
	}

	subject, bodyHTML, err := d.loadContent(ctx, campaign)
	if err != nil {
		return nil, err
	}

	pending, err := d.recipients.ListPending(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending recipients: %w", err)
	}
	if len(pending) == 0 {
		// A campaign sent without an explicit prepare materializes its
		// audience on the fly.
		if _, err := d.Prepare(ctx, organizationID, campaignID); err != nil {
			return nil, err
		}
		pending, err = d.recipients.ListPending(ctx, campaign.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending recipients: %w", err)
		}
	}
	if len(pending) == 0 {
		return nil, domain.ErrNoRecipients
	}

	claimed, err := d.campaigns.BeginDispatch(ctx, campaign.ID, d.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to begin dispatch: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: campaign %s is not sendable", domain.ErrConflict, campaign.ID)
	}

	report, err := d.deliver(ctx, campaign, pending, subject, bodyHTML, d.clampRate(ratePerSec))
	if err != nil {
		// Interrupted mid-batch: the campaign stays in sending state and the
		// untouched recipients stay pending, so a later send resumes it.
		return report, err
	}

	if err := d.campaigns.FinishDispatch(ctx, campaign.ID, domain.CampaignStatusSent); err != nil {
		return report, fmt.Errorf("failed to finish dispatch: %w", err)
	}

	d.logger.Info("campaign dispatched",
		zap.String("campaignId", campaign.ID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (d *Dispatcher) dryRunReport(ctx context.Context, campaign *domain.Campaign) (*SendReport, error) {
	audience, err := d.resolver.Resolve(ctx, campaign)
	if err != nil {
		return nil, err
	}

	pending, err := d.recipients.CountPending(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending recipients: %w", err)
	}

	return &SendReport{
		CampaignID:     campaign.ID,
		DryRun:         true,
		RecipientCount: len(audience),
		Remaining:      pending,
	}, nil
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	campaign *domain.Campaign,
	pending []domain.Recipient,
	subject, bodyHTML string,
	ratePerSec float64,
) (*SendReport, error) {
	if d.metrics != nil {
		d.metrics.IncDispatchInFlight()
		defer d.metrics.DecDispatchInFlight()
	}

	contactIDs := make([]string, 0, len(pending))
	for i := range pending {
		contactIDs = append(contactIDs, pending[i].ContactID)
	}
	contacts, err := d.contacts.GetByIDs(ctx, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient contacts: %w", err)
	}

	limiter := d.limiterFor(ratePerSec)
	logger := observability.CampaignLogger(d.logger, campaign.ID)
	report := &SendReport{
		CampaignID:     campaign.ID,
		RecipientCount: len(pending),
	}

	for i := range pending {
		recipient := &pending[i]

		contact, ok := contacts[recipient.ContactID]
		if !ok || !contact.HasEmail() {
			d.recordFailure(report, recipient, "contact missing or has no email address")
			continue
		}

		vars := render.VarsFromContact(contact)
		msg := provider.Message{
			To:       contact.Email,
			From:     d.fromEmail,
			FromName: d.fromName,
			Subject:  render.Render(subject, vars),
			BodyHTML: render.Render(bodyHTML, vars),
		}

		if d.instrumenter != nil {
			instrumented, err := d.instrumenter.Instrument(msg.BodyHTML, recipient.ID, campaign.ID)
			if err != nil {
				d.recordFailure(report, recipient, fmt.Sprintf("tracking instrumentation failed: %v", err))
				continue
			}
			msg.BodyHTML = instrumented
		}

		if err := limiter.Wait(ctx, campaign.ID); err != nil {
			report.Remaining = int64(len(pending) - i)
			return report, fmt.Errorf("dispatch interrupted: %w", err)
		}

		sendStart := d.now()
		resp, sendErr := d.sendOne(ctx, msg)
		if d.metrics != nil {
			d.metrics.ObserveProviderSendDuration(d.now().Sub(sendStart))
		}

		if sendErr != nil {
			if ctx.Err() != nil {
				report.Remaining = int64(len(pending) - i)
				return report, fmt.Errorf("dispatch interrupted: %w", ctx.Err())
			}
			d.recordFailure(report, recipient, sendErr.Error())
			logger.Warn("recipient send failed",
				zap.String("recipientId", recipient.ID),
				zap.Bool("transient", provider.IsTransient(sendErr)),
				zap.Error(sendErr),
			)
			continue
		}

		if err := d.recipients.MarkSent(ctx, recipient.ID, d.now().UTC()); err != nil {
			// A concurrent dispatcher already moved this row; the provider
			// accepted our copy, count it and move on.
			if !errors.Is(err, domain.ErrConflict) {
				report.Remaining = int64(len(pending) - i - 1)
				return report, fmt.Errorf("failed to mark recipient sent: %w", err)
			}
		}

		report.Sent++
		if d.metrics != nil {
			d.metrics.IncEmailSent()
		}
		if resp != nil && resp.MessageID != "" {
			logger.Debug("recipient sent",
				zap.String("recipientId", recipient.ID),
				zap.String("providerMessageId", resp.MessageID),
			)
		}
	}

	return report, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, msg provider.Message) (*provider.Response, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	defer cancel()
	return d.provider.Send(sendCtx, msg)
}

func (d *Dispatcher) recordFailure(report *SendReport, recipient *domain.Recipient, reason string) {
	report.Failed++
	if len(report.Errors) < maxReportedSendErrors {
		report.Errors = append(report.Errors, SendErrorDetail{
			RecipientID: recipient.ID,
			ContactID:   recipient.ContactID,
			Reason:      reason,
		})
	}
	if d.metrics != nil {
		d.metrics.IncEmailFailed("send_error")
	}
}

func (d *Dispatcher) loadContent(ctx context.Context, campaign *domain.Campaign) (subject, bodyHTML string, err error) {
	if campaign.TemplateID == nil || strings.TrimSpace(*campaign.TemplateID) == "" {
		return "", "", fmt.Errorf("%w: campaign %s has no template", domain.ErrValidation, campaign.ID)
	}

	tpl, err := d.templates.GetByID(ctx, campaign.OrganizationID, strings.TrimSpace(*campaign.TemplateID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("%w: template %s not found", domain.ErrValidation, *campaign.TemplateID)
		}
		return "", "", err
	}

	subject = strings.TrimSpace(campaign.SubjectLine)
	if subject == "" {
		subject = strings.TrimSpace(tpl.SubjectLine)
	}
	if subject == "" {
		subject = campaign.Name
	}

	bodyHTML = tpl.ContentHTML
	if strings.TrimSpace(bodyHTML) == "" {
		bodyHTML = fallbackBodyHTML
	}

	return subject, bodyHTML, nil
}

func (d *Dispatcher) clampRate(ratePerSec float64) float64 {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if ratePerSec < minRatePerSec {
		ratePerSec = minRatePerSec
	}
	if ratePerSec > d.maxRatePerSec {
		ratePerSec = d.maxRatePerSec
	}
	return ratePerSec
}
