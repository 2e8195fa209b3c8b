package service

import (
	"context"
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/provider"
	"github.com/mailpilot/campaign-engine/internal/ratelimit"
	"github.com/mailpilot/campaign-engine/internal/repository"
)

type fakeCampaignRepo struct {
	createFn          func(ctx context.Context, c *domain.Campaign) error
	getByIDFn         func(ctx context.Context, organizationID, id string) (*domain.Campaign, error)
	listFn            func(ctx context.Context, organizationID string, params repository.CampaignListParams) ([]domain.Campaign, int64, error)
	updateFn          func(ctx context.Context, c *domain.Campaign) error
	getDueScheduledFn func(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)
	claimScheduledFn  func(ctx context.Context, id string, at time.Time) (bool, error)
	beginDispatchFn   func(ctx context.Context, id string, at time.Time) (bool, error)
	finishDispatchFn  func(ctx context.Context, id string, to domain.CampaignStatus) error
}

var _ repository.CampaignRepository = (*fakeCampaignRepo)(nil)

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, organizationID, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) List(ctx context.Context, organizationID string, params repository.CampaignListParams) ([]domain.Campaign, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, organizationID, params)
	}
	return nil, 0, nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) GetDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	if f.getDueScheduledFn != nil {
		return f.getDueScheduledFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) ClaimScheduled(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.claimScheduledFn != nil {
		return f.claimScheduledFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeCampaignRepo) BeginDispatch(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.beginDispatchFn != nil {
		return f.beginDispatchFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeCampaignRepo) FinishDispatch(ctx context.Context, id string, to domain.CampaignStatus) error {
	if f.finishDispatchFn != nil {
		return f.finishDispatchFn(ctx, id, to)
	}
	return nil
}

type fakeRecipientRepo struct {
	insertPendingFn  func(ctx context.Context, recipients []*domain.Recipient) (int64, error)
	getByIDFn        func(ctx context.Context, id string) (*domain.Recipient, error)
	listPendingFn    func(ctx context.Context, campaignID string) ([]domain.Recipient, error)
	countPendingFn   func(ctx context.Context, campaignID string) (int64, error)
	listFn           func(ctx context.Context, organizationID, campaignID string, params repository.RecipientListParams) ([]domain.Recipient, int64, error)
	markSentFn       func(ctx context.Context, id string, at time.Time) error
	markOpenedFn     func(ctx context.Context, id string, at time.Time) (bool, error)
	markClickedFn    func(ctx context.Context, id string, at time.Time) (bool, error)
	countAnalyticsFn func(ctx context.Context, organizationID, campaignID string) (*repository.AnalyticsCounts, error)
}

var _ repository.RecipientRepository = (*fakeRecipientRepo)(nil)

func (f *fakeRecipientRepo) InsertPending(ctx context.Context, recipients []*domain.Recipient) (int64, error) {
	if f.insertPendingFn != nil {
		return f.insertPendingFn(ctx, recipients)
	}
	return int64(len(recipients)), nil
}

func (f *fakeRecipientRepo) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRecipientRepo) ListPending(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, campaignID)
	}
	return nil, nil
}

func (f *fakeRecipientRepo) CountPending(ctx context.Context, campaignID string) (int64, error) {
	if f.countPendingFn != nil {
		return f.countPendingFn(ctx, campaignID)
	}
	return 0, nil
}

func (f *fakeRecipientRepo) List(ctx context.Context, organizationID, campaignID string, params repository.RecipientListParams) ([]domain.Recipient, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, organizationID, campaignID, params)
	}
	return nil, 0, nil
}

func (f *fakeRecipientRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, at)
	}
	return nil
}

func (f *fakeRecipientRepo) MarkOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.markOpenedFn != nil {
		return f.markOpenedFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeRecipientRepo) MarkClicked(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.markClickedFn != nil {
		return f.markClickedFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeRecipientRepo) CountAnalytics(ctx context.Context, organizationID, campaignID string) (*repository.AnalyticsCounts, error) {
	if f.countAnalyticsFn != nil {
		return f.countAnalyticsFn(ctx, organizationID, campaignID)
	}
	return &repository.AnalyticsCounts{}, nil
}

type fakeContactStore struct {
	listEligibleFn   func(ctx context.Context, organizationID string, excludeInactive, excludeUnsubscribed bool) ([]domain.Contact, error)
	withAllTagsFn    func(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error)
	withAnyTagFn     func(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error)
	bouncedFn        func(ctx context.Context, organizationID string) (map[string]struct{}, error)
	getByIDsFn       func(ctx context.Context, ids []string) (map[string]domain.Contact, error)
}

var _ repository.ContactStore = (*fakeContactStore)(nil)

func (f *fakeContactStore) ListEligible(ctx context.Context, organizationID string, excludeInactive, excludeUnsubscribed bool) ([]domain.Contact, error) {
	if f.listEligibleFn != nil {
		return f.listEligibleFn(ctx, organizationID, excludeInactive, excludeUnsubscribed)
	}
	return nil, nil
}

func (f *fakeContactStore) ContactIDsWithAllTags(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error) {
	if f.withAllTagsFn != nil {
		return f.withAllTagsFn(ctx, organizationID, tags)
	}
	return map[string]struct{}{}, nil
}

func (f *fakeContactStore) ContactIDsWithAnyTag(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error) {
	if f.withAnyTagFn != nil {
		return f.withAnyTagFn(ctx, organizationID, tags)
	}
	return map[string]struct{}{}, nil
}

func (f *fakeContactStore) BouncedContactIDs(ctx context.Context, organizationID string) (map[string]struct{}, error) {
	if f.bouncedFn != nil {
		return f.bouncedFn(ctx, organizationID)
	}
	return map[string]struct{}{}, nil
}

func (f *fakeContactStore) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Contact, error) {
	if f.getByIDsFn != nil {
		return f.getByIDsFn(ctx, ids)
	}
	return map[string]domain.Contact{}, nil
}

type fakeTemplateStore struct {
	getByIDFn func(ctx context.Context, organizationID, id string) (*domain.Template, error)
}

var _ repository.TemplateStore = (*fakeTemplateStore)(nil)

func (f *fakeTemplateStore) GetByID(ctx context.Context, organizationID, id string) (*domain.Template, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, organizationID, id)
	}
	return nil, domain.ErrNotFound
}

type fakeTargetRuleRepo struct {
	getOrCreateFn func(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error)
	upsertFn      func(ctx context.Context, rule *domain.TargetRule) error
}

var _ repository.TargetRuleRepository = (*fakeTargetRuleRepo)(nil)

func (f *fakeTargetRuleRepo) GetOrCreateDefault(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error) {
	if f.getOrCreateFn != nil {
		return f.getOrCreateFn(ctx, organizationID, campaignID)
	}
	return domain.DefaultTargetRule(campaignID, organizationID), nil
}

func (f *fakeTargetRuleRepo) Upsert(ctx context.Context, rule *domain.TargetRule) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, rule)
	}
	return nil
}

type fakeEventRepo struct {
	createFn         func(ctx context.Context, event *domain.EmailEvent) error
	listByCampaignFn func(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error)
}

var _ repository.EventRepository = (*fakeEventRepo)(nil)

func (f *fakeEventRepo) Create(ctx context.Context, event *domain.EmailEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeEventRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error) {
	if f.listByCampaignFn != nil {
		return f.listByCampaignFn(ctx, organizationID, campaignID, limit)
	}
	return nil, nil
}

type fakeProvider struct {
	sendFn func(ctx context.Context, msg provider.Message) (*provider.Response, error)
}

var _ provider.EmailProvider = (*fakeProvider)(nil)

func (f *fakeProvider) Send(ctx context.Context, msg provider.Message) (*provider.Response, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.Response{StatusCode: 200, MessageID: "msg-1"}, nil
}

type fakeLimiter struct {
	waitFn func(ctx context.Context, key string) error
}

var _ ratelimit.Limiter = (*fakeLimiter)(nil)

func (f *fakeLimiter) Wait(ctx context.Context, key string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, key)
	}
	return nil
}

func noopLimiterFactory(float64) ratelimit.Limiter {
	return &fakeLimiter{}
}

type fakeSender struct {
	sendFn func(ctx context.Context, organizationID, campaignID string, ratePerSec float64, dryRun bool) (*SendReport, error)
}

var _ campaignSender = (*fakeSender)(nil)

func (f *fakeSender) Send(ctx context.Context, organizationID, campaignID string, ratePerSec float64, dryRun bool) (*SendReport, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, organizationID, campaignID, ratePerSec, dryRun)
	}
	return &SendReport{CampaignID: campaignID}, nil
}
