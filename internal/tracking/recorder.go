package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/observability"
	"go.uber.org/zap"
)

// RecipientStore is the recipient state the recorder needs: lookup plus the
// first-occurrence-wins timestamp updates.
type RecipientStore interface {
	GetByID(ctx context.Context, id string) (*domain.Recipient, error)
	MarkOpened(ctx context.Context, id string, at time.Time) (bool, error)
	MarkClicked(ctx context.Context, id string, at time.Time) (bool, error)
}

// EventStore appends email events.
type EventStore interface {
	Create(ctx context.Context, event *domain.EmailEvent) error
}

// Recorder verifies tracking tokens and writes open/click events. Invalid
// tokens are swallowed: the public endpoints return the same generic response
// whether or not anything was recorded.
type Recorder struct {
	codec      *Codec
	recipients RecipientStore
	events     EventStore
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewRecorder(codec *Codec, recipients RecipientStore, events EventStore, logger *zap.Logger) (*Recorder, error) {
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient store is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recorder{
		codec:      codec,
		recipients: recipients,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetMetrics attaches the tracking event counters. Safe to skip, for tests.
func (r *Recorder) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// RecordOpen records an open event for a valid token. The returned error is
// for the caller's log only; tracking responses never expose it.
func (r *Recorder) RecordOpen(ctx context.Context, token string) error {
	return r.record(ctx, token, domain.EventKindOpen, "")
}

// RecordClick records a click event with the target link for a valid token.
func (r *Recorder) RecordClick(ctx context.Context, token, linkURL string) error {
	return r.record(ctx, token, domain.EventKindClick, linkURL)
}

func (r *Recorder) record(ctx context.Context, token string, kind domain.EventKind, linkURL string) error {
	recipientID, campaignID, ok := r.codec.Verify(token)
	if !ok {
		return nil
	}

	recipient, err := r.recipients.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to load recipient for %s event: %w", kind, err)
	}

	// The token also binds the campaign; a mismatch means a token replayed
	// against the wrong row and is treated like an invalid token.
	if recipient.CampaignID != campaignID {
		r.logger.Warn("tracking token campaign mismatch",
			zap.String("recipientId", recipientID),
		)
		return nil
	}

	at := r.now().UTC()
	event := &domain.EmailEvent{
		ID:             uuid.NewString(),
		CampaignID:     recipient.CampaignID,
		RecipientID:    recipient.ID,
		OrganizationID: recipient.OrganizationID,
		Kind:           kind,
		OccurredAt:     at,
	}
	if kind == domain.EventKindClick {
		if link := strings.TrimSpace(linkURL); link != "" {
			event.LinkURL = &link
		}
	}

	if err := r.events.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	r.metrics.IncTrackingEvent(kind.String())

	var first bool
	switch kind {
	case domain.EventKindOpen:
		first, err = r.recipients.MarkOpened(ctx, recipient.ID, at)
	case domain.EventKindClick:
		first, err = r.recipients.MarkClicked(ctx, recipient.ID, at)
	}
	if err != nil {
		return fmt.Errorf("failed to mark recipient %s: %w", kind, err)
	}

	if first {
		r.logger.Debug("first tracking event for recipient",
			zap.String("recipientId", recipient.ID),
			zap.String("campaignId", recipient.CampaignID),
			zap.String("kind", kind.String()),
		)
	}
	return nil
}
