package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncEmailSent()
	metrics.IncEmailSent()
	metrics.IncEmailFailed("Provider_Error")
	metrics.ObserveProviderSendDuration(120 * time.Millisecond)
	metrics.IncCampaignProcessed("sent")
	metrics.IncTrackingEvent("open")
	metrics.IncDispatchInFlight()
	metrics.DecDispatchInFlight()

	if got := testutil.ToFloat64(metrics.emailsSentTotal); got != 2 {
		t.Fatalf("emails_sent_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("provider_error")); got != 1 {
		t.Fatalf("emails_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.campaignsProcessedTotal.WithLabelValues("sent")); got != 1 {
		t.Fatalf("campaigns_processed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.trackingEventsTotal.WithLabelValues("open")); got != 1 {
		t.Fatalf("tracking_events_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
}

func TestMetricsEmptyLabelsFallBack(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncEmailFailed("  ")
	metrics.IncCampaignProcessed("")
	metrics.IncTrackingEvent("")

	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("emails_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.campaignsProcessedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("campaigns_processed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.trackingEventsTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("tracking_events_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
