package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"go.uber.org/zap"
)

// AudienceResolver materializes a campaign's target rule into the concrete
// list of contacts to deliver to. Resolution is pure set algebra over the
// contact store: an eligible base narrowed by tag membership, then country
// and bounce exclusions.
type AudienceResolver struct {
	rules    repository.TargetRuleRepository
	contacts repository.ContactStore
	logger   *zap.Logger
}

func NewAudienceResolver(
	rules repository.TargetRuleRepository,
	contacts repository.ContactStore,
	logger *zap.Logger,
) (*AudienceResolver, error) {
	if rules == nil {
		return nil, fmt.Errorf("target rule repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AudienceResolver{
		rules:    rules,
		contacts: contacts,
		logger:   logger,
	}, nil
}

// Resolve returns the deliverable audience for the campaign under its current
// target rule. The rule row is created with defaults on first resolution.
func (r *AudienceResolver) Resolve(ctx context.Context, campaign *domain.Campaign) ([]domain.Contact, error) {
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}

	rule, err := r.rules.GetOrCreateDefault(ctx, campaign.OrganizationID, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target rule: %w", err)
	}

	audience, err := r.contacts.ListEligible(ctx, campaign.OrganizationID, rule.ExcludeInactive, rule.ExcludeUnsubscribed)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible contacts: %w", err)
	}
	baseSize := len(audience)

	// Tag filters run before the per-contact exclusions: they cut the
	// candidate set down with indexed membership queries.
	includeTags := domain.CleanTags(rule.IncludeTags)
	if len(includeTags) > 0 {
		allowed, err := r.contacts.ContactIDsWithAllTags(ctx, campaign.OrganizationID, includeTags)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve include tags: %w", err)
		}
		audience = filterContacts(audience, func(c domain.Contact) bool {
			_, ok := allowed[c.ID]
			return ok
		})
	}

	excludeTags := domain.CleanTags(rule.ExcludeTags)
	if len(excludeTags) > 0 {
		blocked, err := r.contacts.ContactIDsWithAnyTag(ctx, campaign.OrganizationID, excludeTags)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve exclude tags: %w", err)
		}
		audience = filterContacts(audience, func(c domain.Contact) bool {
			_, ok := blocked[c.ID]
			return !ok
		})
	}

	if countries := rule.NormalizedExcludeCountries(); len(countries) > 0 {
		audience = filterContacts(audience, func(c domain.Contact) bool {
			_, ok := countries[strings.ToLower(strings.TrimSpace(c.Country))]
			return !ok
		})
	}

	if rule.ExcludeBounced {
		bounced, err := r.contacts.BouncedContactIDs(ctx, campaign.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bounced contacts: %w", err)
		}
		audience = filterContacts(audience, func(c domain.Contact) bool {
			_, ok := bounced[c.ID]
			return !ok
		})
	}

	r.logger.Debug("audience resolved",
		zap.String("campaignId", campaign.ID),
		zap.Int("eligible", baseSize),
		zap.Int("resolved", len(audience)),
	)

	return audience, nil
}

func filterContacts(contacts []domain.Contact, keep func(domain.Contact) bool) []domain.Contact {
	out := contacts[:0]
	for _, c := range contacts {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
