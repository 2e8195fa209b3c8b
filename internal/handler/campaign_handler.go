package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailpilot/campaign-engine/internal/domain"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"github.com/mailpilot/campaign-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	organizationHeader = "X-Organization-ID"
)

type CampaignManager interface {
	Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	GetByID(ctx context.Context, organizationID, id string) (*domain.Campaign, error)
	List(ctx context.Context, organizationID string, params repository.CampaignListParams) ([]domain.Campaign, int64, error)
	Update(ctx context.Context, organizationID, id string, update service.CampaignUpdate) (*domain.Campaign, error)
	GetTargetRule(ctx context.Context, organizationID, campaignID string) (*domain.TargetRule, error)
	PutTargetRule(ctx context.Context, organizationID, campaignID string, rule *domain.TargetRule) (*domain.TargetRule, error)
	ListRecipients(ctx context.Context, organizationID, campaignID string, params repository.RecipientListParams) ([]domain.Recipient, int64, error)
	ListEvents(ctx context.Context, organizationID, campaignID string, limit int) ([]domain.EmailEvent, error)
}

type CampaignDispatcher interface {
	Prepare(ctx context.Context, organizationID, campaignID string) (int, error)
	Send(ctx context.Context, organizationID, campaignID string, ratePerSec float64, dryRun bool) (*service.SendReport, error)
}

type AnalyticsReader interface {
	Get(ctx context.Context, organizationID, campaignID string) (*service.CampaignAnalytics, error)
}

type CampaignHandler struct {
	manager    CampaignManager
	dispatcher CampaignDispatcher
	analytics  AnalyticsReader
}

func NewCampaignHandler(manager CampaignManager, dispatcher CampaignDispatcher, analytics AnalyticsReader) (*CampaignHandler, error) {
	if manager == nil {
		return nil, fmt.Errorf("campaign manager is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("campaign dispatcher is required")
	}
	if analytics == nil {
		return nil, fmt.Errorf("analytics reader is required")
	}
	return &CampaignHandler{manager: manager, dispatcher: dispatcher, analytics: analytics}, nil
}

func RegisterCampaignRoutes(router fiber.Router, manager CampaignManager, dispatcher CampaignDispatcher, analytics AnalyticsReader) error {
	h, err := NewCampaignHandler(manager, dispatcher, analytics)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Get("/campaigns", h.ListCampaigns)
	v1.Get("/campaigns/:id", h.GetCampaign)
	v1.Patch("/campaigns/:id", h.UpdateCampaign)
	v1.Get("/campaigns/:id/target-rules", h.GetTargetRule)
	v1.Put("/campaigns/:id/target-rules", h.PutTargetRule)
	v1.Post("/campaigns/:id/prepare", h.PrepareCampaign)
	v1.Post("/campaigns/:id/send", h.SendCampaign)
	v1.Get("/campaigns/:id/recipients", h.ListRecipients)
	v1.Get("/campaigns/:id/events", h.ListEvents)
	v1.Get("/campaigns/:id/analytics", h.GetAnalytics)

	return nil
}

type createCampaignRequest struct {
	Name        string     `json:"name"`
	SubjectLine string     `json:"subjectLine"`
	TemplateID  *string    `json:"templateId"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type updateCampaignRequest struct {
	Name        *string    `json:"name"`
	SubjectLine *string    `json:"subjectLine"`
	TemplateID  *string    `json:"templateId"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type campaignResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	SubjectLine string     `json:"subjectLine,omitempty"`
	TemplateID  *string    `json:"templateId,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type targetRuleRequest struct {
	IncludeTags         []string `json:"includeTags"`
	ExcludeTags         []string `json:"excludeTags"`
	ExcludeCountries    []string `json:"excludeCountries"`
	ExcludeUnsubscribed bool     `json:"excludeUnsubscribed"`
	ExcludeInactive     bool     `json:"excludeInactive"`
	ExcludeBounced      bool     `json:"excludeBounced"`
}

type targetRuleResponse struct {
	CampaignID          string   `json:"campaignId"`
	IncludeTags         []string `json:"includeTags"`
	ExcludeTags         []string `json:"excludeTags"`
	ExcludeCountries    []string `json:"excludeCountries"`
	ExcludeUnsubscribed bool     `json:"excludeUnsubscribed"`
	ExcludeInactive     bool     `json:"excludeInactive"`
	ExcludeBounced      bool     `json:"excludeBounced"`
}

type recipientResponse struct {
	ID        string     `json:"id"`
	ContactID string     `json:"contactId"`
	Status    string     `json:"status"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	OpenedAt  *time.Time `json:"openedAt,omitempty"`
	ClickedAt *time.Time `json:"clickedAt,omitempty"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Kind        string    `json:"kind"`
	LinkURL     *string   `json:"linkUrl,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	campaign := domain.Campaign{
		OrganizationID: organizationID,
		Name:           strings.TrimSpace(req.Name),
		SubjectLine:    strings.TrimSpace(req.SubjectLine),
		TemplateID:     req.TemplateID,
		ScheduledAt:    req.ScheduledAt,
	}
	if rawStatus := strings.TrimSpace(req.Status); rawStatus != "" {
		status, err := domain.ParseCampaignStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		campaign.Status = status
	}

	created, err := h.manager.Create(c.Context(), &campaign)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toCampaignResponse(created))
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	campaign, err := h.manager.GetByID(c.Context(), organizationID, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	params := repository.CampaignListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if params.Page < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "page must be >= 1")
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("pageSize must be between 1 and %d", maxPageSize))
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseCampaignStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	campaigns, total, err := h.manager.List(c.Context(), organizationID, params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		responses = append(responses, toCampaignResponse(&campaigns[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
		"meta": listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	var req updateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	update := service.CampaignUpdate{
		Name:        req.Name,
		SubjectLine: req.SubjectLine,
		TemplateID:  req.TemplateID,
		ScheduledAt: req.ScheduledAt,
	}
	if req.Status != nil {
		status, err := domain.ParseCampaignStatusFromString(*req.Status)
		if err != nil {
			return toHTTPError(err)
		}
		update.Status = &status
	}

	campaign, err := h.manager.Update(c.Context(), organizationID, strings.TrimSpace(c.Params("id")), update)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) GetTargetRule(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	rule, err := h.manager.GetTargetRule(c.Context(), organizationID, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTargetRuleResponse(rule))
}

func (h *CampaignHandler) PutTargetRule(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	var req targetRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule, err := h.manager.PutTargetRule(c.Context(), organizationID, strings.TrimSpace(c.Params("id")), &domain.TargetRule{
		IncludeTags:         req.IncludeTags,
		ExcludeTags:         req.ExcludeTags,
		ExcludeCountries:    req.ExcludeCountries,
		ExcludeUnsubscribed: req.ExcludeUnsubscribed,
		ExcludeInactive:     req.ExcludeInactive,
		ExcludeBounced:      req.ExcludeBounced,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTargetRuleResponse(rule))
}

func (h *CampaignHandler) PrepareCampaign(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	count, err := h.dispatcher.Prepare(c.Context(), organizationID, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"campaignId":     strings.TrimSpace(c.Params("id")),
		"recipientCount": count,
	})
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	dryRun := c.QueryBool("dryRun", false)
	ratePerSec := 0.0
	if raw := strings.TrimSpace(c.Query("ratePerSec")); raw != "" {
		ratePerSec, err = strconv.ParseFloat(raw, 64)
		if err != nil || ratePerSec <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "ratePerSec must be a positive number")
		}
	}

	report, err := h.dispatcher.Send(c.Context(), organizationID, strings.TrimSpace(c.Params("id")), ratePerSec, dryRun)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *CampaignHandler) ListRecipients(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	params := repository.RecipientListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseRecipientStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	recipients, total, err := h.manager.ListRecipients(c.Context(), organizationID, strings.TrimSpace(c.Params("id")), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]recipientResponse, 0, len(recipients))
	for i := range recipients {
		r := &recipients[i]
		responses = append(responses, recipientResponse{
			ID:        r.ID,
			ContactID: r.ContactID,
			Status:    r.Status.String(),
			SentAt:    r.SentAt,
			OpenedAt:  r.OpenedAt,
			ClickedAt: r.ClickedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
		"meta": listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *CampaignHandler) ListEvents(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	events, err := h.manager.ListEvents(c.Context(), organizationID, strings.TrimSpace(c.Params("id")), c.QueryInt("limit", 200))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]eventResponse, 0, len(events))
	for i := range events {
		e := &events[i]
		responses = append(responses, eventResponse{
			ID:          e.ID,
			RecipientID: e.RecipientID,
			Kind:        e.Kind.String(),
			LinkURL:     e.LinkURL,
			OccurredAt:  e.OccurredAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *CampaignHandler) GetAnalytics(c *fiber.Ctx) error {
	organizationID, err := organizationID(c)
	if err != nil {
		return err
	}

	analytics, err := h.analytics.Get(c.Context(), organizationID, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(analytics)
}

func organizationID(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Get(organizationHeader))
	if id == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, organizationHeader+" header is required")
	}
	return id, nil
}

func toCampaignResponse(campaign *domain.Campaign) campaignResponse {
	if campaign == nil {
		return campaignResponse{}
	}

	return campaignResponse{
		ID:          campaign.ID,
		Name:        campaign.Name,
		Status:      campaign.Status.String(),
		SubjectLine: campaign.SubjectLine,
		TemplateID:  campaign.TemplateID,
		ScheduledAt: campaign.ScheduledAt,
		SentAt:      campaign.SentAt,
		CreatedAt:   campaign.CreatedAt,
		UpdatedAt:   campaign.UpdatedAt,
	}
}

func toTargetRuleResponse(rule *domain.TargetRule) targetRuleResponse {
	if rule == nil {
		return targetRuleResponse{}
	}

	return targetRuleResponse{
		CampaignID:          rule.CampaignID,
		IncludeTags:         emptyIfNil(rule.IncludeTags),
		ExcludeTags:         emptyIfNil(rule.ExcludeTags),
		ExcludeCountries:    emptyIfNil(rule.ExcludeCountries),
		ExcludeUnsubscribed: rule.ExcludeUnsubscribed,
		ExcludeInactive:     rule.ExcludeInactive,
		ExcludeBounced:      rule.ExcludeBounced,
	}
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoRecipients):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrProviderNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
