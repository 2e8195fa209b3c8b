package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"go.uber.org/zap"
)

func newTestCampaignService(t *testing.T, campaigns *fakeCampaignRepo, rules *fakeTargetRuleRepo) *CampaignService {
	t.Helper()

	svc, err := NewCampaignService(campaigns, rules, &fakeRecipientRepo{}, &fakeEventRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCampaignService() error = %v", err)
	}
	return svc
}

func TestCampaignServiceCreateDefaults(t *testing.T) {
	t.Parallel()

	var created *domain.Campaign
	campaigns := &fakeCampaignRepo{
		createFn: func(ctx context.Context, c *domain.Campaign) error {
			created = c
			return nil
		},
	}

	svc := newTestCampaignService(t, campaigns, &fakeTargetRuleRepo{})
	got, err := svc.Create(context.Background(), &domain.Campaign{
		OrganizationID: "org-1",
		Name:           "  Launch  ",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created == nil {
		t.Fatal("campaign should be persisted")
	}
	if got.ID == "" {
		t.Fatal("campaign id should be assigned")
	}
	if got.Status != domain.CampaignStatusDraft {
		t.Fatalf("status = %s, want draft", got.Status)
	}
	if got.Name != "Launch" {
		t.Fatalf("name = %q, want trimmed", got.Name)
	}
}

func TestCampaignServiceCreateScheduledRequiresTime(t *testing.T) {
	t.Parallel()

	svc := newTestCampaignService(t, &fakeCampaignRepo{}, &fakeTargetRuleRepo{})
	_, err := svc.Create(context.Background(), &domain.Campaign{
		OrganizationID: "org-1",
		Name:           "Launch",
		Status:         domain.CampaignStatusScheduled,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestCampaignServiceCreateRejectsMidLifecycleStatus(t *testing.T) {
	t.Parallel()

	svc := newTestCampaignService(t, &fakeCampaignRepo{}, &fakeTargetRuleRepo{})
	_, err := svc.Create(context.Background(), &domain.Campaign{
		OrganizationID: "org-1",
		Name:           "Launch",
		Status:         domain.CampaignStatusSending,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestCampaignServiceUpdateSchedules(t *testing.T) {
	t.Parallel()

	var updated *domain.Campaign
	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
			return testCampaign(domain.CampaignStatusDraft), nil
		},
		updateFn: func(ctx context.Context, c *domain.Campaign) error {
			updated = c
			return nil
		},
	}

	svc := newTestCampaignService(t, campaigns, &fakeTargetRuleRepo{})
	scheduledAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	scheduled := domain.CampaignStatusScheduled

	got, err := svc.Update(context.Background(), "org-1", "camp-1", CampaignUpdate{
		ScheduledAt: &scheduledAt,
		Status:      &scheduled,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated == nil {
		t.Fatal("campaign should be persisted")
	}
	if got.Status != domain.CampaignStatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(scheduledAt) {
		t.Fatalf("scheduled at = %v, want %v", got.ScheduledAt, scheduledAt)
	}
}

func TestCampaignServiceUpdateRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
			return testCampaign(domain.CampaignStatusDraft), nil
		},
	}

	svc := newTestCampaignService(t, campaigns, &fakeTargetRuleRepo{})
	sent := domain.CampaignStatusSent

	_, err := svc.Update(context.Background(), "org-1", "camp-1", CampaignUpdate{Status: &sent})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Update() error = %v, want ErrConflict", err)
	}
}

func TestCampaignServiceUpdateRejectsSendingCampaign(t *testing.T) {
	t.Parallel()

	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
			return testCampaign(domain.CampaignStatusSending), nil
		},
	}

	svc := newTestCampaignService(t, campaigns, &fakeTargetRuleRepo{})
	name := "Renamed"

	_, err := svc.Update(context.Background(), "org-1", "camp-1", CampaignUpdate{Name: &name})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Update() error = %v, want ErrConflict", err)
	}
}

func TestCampaignServicePutTargetRuleNormalizesTags(t *testing.T) {
	t.Parallel()

	var upserted *domain.TargetRule
	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
			return testCampaign(domain.CampaignStatusDraft), nil
		},
	}
	rules := &fakeTargetRuleRepo{
		upsertFn: func(ctx context.Context, rule *domain.TargetRule) error {
			upserted = rule
			return nil
		},
	}

	svc := newTestCampaignService(t, campaigns, rules)
	got, err := svc.PutTargetRule(context.Background(), "org-1", "camp-1", &domain.TargetRule{
		IncludeTags: []string{" vip ", "", "newsletter"},
	})
	if err != nil {
		t.Fatalf("PutTargetRule() error = %v", err)
	}

	if upserted == nil {
		t.Fatal("rule should be persisted")
	}
	if got.CampaignID != "camp-1" || got.OrganizationID != "org-1" {
		t.Fatalf("rule scoping = %s/%s, want camp-1/org-1", got.CampaignID, got.OrganizationID)
	}
	if len(got.IncludeTags) != 2 || got.IncludeTags[0] != "vip" {
		t.Fatalf("include tags = %v, want [vip newsletter]", got.IncludeTags)
	}
}

func TestCampaignServiceTargetRuleForUnknownCampaign(t *testing.T) {
	t.Parallel()

	svc := newTestCampaignService(t, &fakeCampaignRepo{}, &fakeTargetRuleRepo{})
	if _, err := svc.GetTargetRule(context.Background(), "org-1", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetTargetRule() error = %v, want ErrNotFound", err)
	}
}
