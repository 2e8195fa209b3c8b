package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusPaused    CampaignStatus = "paused"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusFailed, CampaignStatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from this state.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusSent || s == CampaignStatusFailed
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// campaignTransitions is the closed transition table for campaign statuses.
// The scheduled->sending edge additionally requires an exclusive claim, which
// the repository enforces with a conditional update.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusSending, CampaignStatusPaused},
	CampaignStatusScheduled: {CampaignStatusSending, CampaignStatusDraft, CampaignStatusPaused},
	CampaignStatusSending:   {CampaignStatusSent, CampaignStatusFailed, CampaignStatusPaused},
	CampaignStatusPaused:    {CampaignStatusDraft, CampaignStatusScheduled},
	CampaignStatusSent:      nil,
	CampaignStatusFailed:    nil,
}

// CanTransition reports whether the status change is allowed by the state machine.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Campaign is one configured email send with a lifecycle.
type Campaign struct {
	ID             string
	OrganizationID string
	Name           string
	Status         CampaignStatus
	TemplateID     *string
	SubjectLine    string
	ScheduledAt    *time.Time
	SentAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if strings.TrimSpace(c.OrganizationID) == "" {
		return fmt.Errorf("%w: organization id is required", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid campaign status %q", ErrValidation, c.Status)
	}
	if c.Status == CampaignStatusScheduled && c.ScheduledAt == nil {
		return fmt.Errorf("%w: scheduled campaign requires scheduled_at", ErrValidation)
	}
	return nil
}

// Transition applies a status change, rejecting edges outside the table.
func (c *Campaign) Transition(to CampaignStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: invalid campaign status %q", ErrValidation, to)
	}
	if !c.Status.CanTransition(to) {
		return fmt.Errorf("%w: cannot transition campaign from %s to %s", ErrConflict, c.Status, to)
	}
	c.Status = to
	return nil
}
