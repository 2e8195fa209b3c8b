package domain

import (
	"strings"
	"time"
)

// TargetRule is the declarative audience filter for a campaign. Exactly one
// exists per campaign; it is created lazily with defaults on first read.
// Include tags use AND semantics (contact must hold all), exclude tags use OR
// semantics (holding any removes the contact).
type TargetRule struct {
	ID                  string
	CampaignID          string
	OrganizationID      string
	IncludeTags         []string
	ExcludeTags         []string
	ExcludeCountries    []string
	ExcludeUnsubscribed bool
	ExcludeInactive     bool
	ExcludeBounced      bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultTargetRule returns the rule row created on first read of a campaign's
// targeting: unsubscribed and inactive contacts excluded, bounced kept.
func DefaultTargetRule(campaignID, organizationID string) *TargetRule {
	return &TargetRule{
		CampaignID:          campaignID,
		OrganizationID:      organizationID,
		ExcludeUnsubscribed: true,
		ExcludeInactive:     true,
		ExcludeBounced:      false,
	}
}

// NormalizedExcludeCountries returns the country exclusions lower-cased and
// trimmed, dropping empties.
func (r *TargetRule) NormalizedExcludeCountries() map[string]struct{} {
	out := make(map[string]struct{}, len(r.ExcludeCountries))
	for _, c := range r.ExcludeCountries {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

// CleanTags trims tag names and drops empties, preserving order.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
