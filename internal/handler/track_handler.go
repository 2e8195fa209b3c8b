package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// trackingPixel is a 1x1 transparent GIF. The open endpoint always serves it,
// valid token or not, so a broken image never appears in an email client.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x00, 0x00, 0x00,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingRecorder interface {
	RecordOpen(ctx context.Context, token string) error
	RecordClick(ctx context.Context, token, linkURL string) error
}

type TrackHandler struct {
	recorder TrackingRecorder
}

func NewTrackHandler(recorder TrackingRecorder) (*TrackHandler, error) {
	if recorder == nil {
		return nil, fmt.Errorf("tracking recorder is required")
	}
	return &TrackHandler{recorder: recorder}, nil
}

func RegisterTrackRoutes(router fiber.Router, recorder TrackingRecorder) error {
	h, err := NewTrackHandler(recorder)
	if err != nil {
		return err
	}

	router.Get("/track/open", h.TrackOpen)
	router.Get("/track/click", h.TrackClick)

	return nil
}

// TrackOpen records an open and serves the pixel. Recording failures are
// swallowed: the response to the email client is always the image.
func (h *TrackHandler) TrackOpen(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("r"))
	if token != "" {
		_ = h.recorder.RecordOpen(c.Context(), token)
	}

	c.Set(fiber.HeaderContentType, "image/gif")
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	return c.Status(fiber.StatusOK).Send(trackingPixel)
}

// TrackClick records a click and redirects to the wrapped destination. The
// redirect happens even when the token is invalid; losing a data point must
// not break the link for the reader.
func (h *TrackHandler) TrackClick(c *fiber.Ctx) error {
	destination := strings.TrimSpace(c.Query("url"))
	if destination == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url query parameter is required")
	}
	if !strings.HasPrefix(destination, "http://") && !strings.HasPrefix(destination, "https://") {
		return fiber.NewError(fiber.StatusBadRequest, "url must be absolute")
	}

	token := strings.TrimSpace(c.Query("r"))
	if token != "" {
		_ = h.recorder.RecordClick(c.Context(), token, destination)
	}

	return c.Redirect(destination, fiber.StatusFound)
}
