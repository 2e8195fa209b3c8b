package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecipientStatus represents the delivery state of one (campaign, contact) pair.
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusBounced   RecipientStatus = "bounced"
	RecipientStatusOpened    RecipientStatus = "opened"
	RecipientStatusClicked   RecipientStatus = "clicked"
)

func (s RecipientStatus) String() string { return string(s) }

func (s RecipientStatus) IsValid() bool {
	switch s {
	case RecipientStatusPending, RecipientStatusSent, RecipientStatusDelivered,
		RecipientStatusBounced, RecipientStatusOpened, RecipientStatusClicked:
		return true
	}
	return false
}

// Delivered reports whether the provider accepted the message, i.e. the
// recipient has moved past pending. Analytics counts these as sent.
func (s RecipientStatus) Delivered() bool {
	return s.IsValid() && s != RecipientStatusPending
}

func ParseRecipientStatusFromString(s string) (RecipientStatus, error) {
	st := RecipientStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid recipient status %q", ErrValidation, s)
	}
	return st, nil
}

// Recipient is the per-contact record of a campaign's intended and actual
// delivery outcome. The (campaign, contact) pair is unique; the optional
// timestamps are each set at most once, first occurrence wins.
type Recipient struct {
	ID             string
	CampaignID     string
	ContactID      string
	OrganizationID string
	Status         RecipientStatus
	SentAt         *time.Time
	BouncedAt      *time.Time
	OpenedAt       *time.Time
	ClickedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
