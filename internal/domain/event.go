package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventKind is the type of a tracking event.
type EventKind string

const (
	EventKindOpen  EventKind = "open"
	EventKindClick EventKind = "click"
)

func (k EventKind) String() string { return string(k) }

func (k EventKind) IsValid() bool {
	return k == EventKindOpen || k == EventKindClick
}

func ParseEventKindFromString(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid event kind %q", ErrValidation, s)
	}
	return k, nil
}

// EmailEvent is one append-only open/click log entry. Repeated events for the
// same recipient are kept; only the first updates the recipient timestamps.
type EmailEvent struct {
	ID             string
	CampaignID     string
	RecipientID    string
	OrganizationID string
	Kind           EventKind
	LinkURL        *string
	OccurredAt     time.Time
}
