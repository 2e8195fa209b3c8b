package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mailpilot/campaign-engine/internal/service"
)

const cronSecretHeader = "X-Cron-Secret"

type ScheduledProcessor interface {
	ProcessDue(ctx context.Context, maxCampaigns int, ratePerSec float64) ([]service.ScheduledResult, error)
}

// InternalHandler serves the endpoints meant for the cron runner, not for
// end users. They authenticate with a shared secret header instead of an
// organization scope.
type InternalHandler struct {
	processor  ScheduledProcessor
	cronSecret string
}

func NewInternalHandler(processor ScheduledProcessor, cronSecret string) (*InternalHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("scheduled processor is required")
	}
	return &InternalHandler{
		processor:  processor,
		cronSecret: strings.TrimSpace(cronSecret),
	}, nil
}

func RegisterInternalRoutes(router fiber.Router, processor ScheduledProcessor, cronSecret string) error {
	h, err := NewInternalHandler(processor, cronSecret)
	if err != nil {
		return err
	}

	router.Post("/internal/process-scheduled-campaigns", h.ProcessScheduledCampaigns)

	return nil
}

func (h *InternalHandler) ProcessScheduledCampaigns(c *fiber.Ctx) error {
	// An unconfigured secret disables the endpoint entirely rather than
	// leaving it open.
	if h.cronSecret == "" {
		return fiber.NewError(fiber.StatusServiceUnavailable, "cron secret is not configured")
	}

	provided := strings.TrimSpace(c.Get(cronSecretHeader))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid cron secret")
	}

	maxCampaigns := c.QueryInt("maxCampaigns", 0)
	ratePerSec := 0.0
	if raw := strings.TrimSpace(c.Query("ratePerSec")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "ratePerSec must be a positive number")
		}
		ratePerSec = parsed
	}

	results, err := h.processor.ProcessDue(c.Context(), maxCampaigns, ratePerSec)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": len(results),
		"results":   results,
	})
}
