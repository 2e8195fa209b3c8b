package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mailpilot/campaign-engine/internal/transport"
	"go.uber.org/zap"
)

type stubRecorder struct {
	recordOpenFn  func(ctx context.Context, token string) error
	recordClickFn func(ctx context.Context, token, linkURL string) error
}

var _ TrackingRecorder = (*stubRecorder)(nil)

func (s *stubRecorder) RecordOpen(ctx context.Context, token string) error {
	if s.recordOpenFn != nil {
		return s.recordOpenFn(ctx, token)
	}
	return nil
}

func (s *stubRecorder) RecordClick(ctx context.Context, token, linkURL string) error {
	if s.recordClickFn != nil {
		return s.recordClickFn(ctx, token, linkURL)
	}
	return nil
}

func newTrackTestApp(t *testing.T, recorder TrackingRecorder) *fiber.App {
	t.Helper()

	if recorder == nil {
		recorder = &stubRecorder{}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterTrackRoutes(app, recorder); err != nil {
		t.Fatalf("RegisterTrackRoutes() error = %v", err)
	}

	return app
}

func TestTrackOpenServesPixelAndRecords(t *testing.T) {
	t.Parallel()

	var recorded string
	recorder := &stubRecorder{
		recordOpenFn: func(ctx context.Context, token string) error {
			recorded = token
			return nil
		},
	}

	app := newTrackTestApp(t, recorder)
	resp, body := performRequest(t, app, http.MethodGet, "/track/open?r=tok-123", "", nil)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderContentType); got != "image/gif" {
		t.Fatalf("content type = %q, want image/gif", got)
	}
	if !bytes.HasPrefix(body, []byte("GIF89a")) {
		t.Fatalf("body should be a GIF, got %q", body[:min(len(body), 6)])
	}
	if recorded != "tok-123" {
		t.Fatalf("recorded token = %q, want tok-123", recorded)
	}
}

func TestTrackOpenServesPixelWhenRecordingFails(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{
		recordOpenFn: func(ctx context.Context, token string) error {
			return context.DeadlineExceeded
		},
	}

	app := newTrackTestApp(t, recorder)
	resp, body := performRequest(t, app, http.MethodGet, "/track/open?r=tok-123", "", nil)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 even on recording failure", resp.StatusCode)
	}
	if !bytes.HasPrefix(body, []byte("GIF89a")) {
		t.Fatal("pixel should still be served")
	}
}

func TestTrackOpenWithoutToken(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{
		recordOpenFn: func(ctx context.Context, token string) error {
			t.Fatal("missing token must not be recorded")
			return nil
		},
	}

	app := newTrackTestApp(t, recorder)
	resp, _ := performRequest(t, app, http.MethodGet, "/track/open", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestTrackClickRedirects(t *testing.T) {
	t.Parallel()

	var gotToken, gotURL string
	recorder := &stubRecorder{
		recordClickFn: func(ctx context.Context, token, linkURL string) error {
			gotToken = token
			gotURL = linkURL
			return nil
		},
	}

	app := newTrackTestApp(t, recorder)
	resp, _ := performRequest(t, app, http.MethodGet, "/track/click?r=tok-9&url=https%3A%2F%2Fexample.com%2Fsale", "", nil)

	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderLocation); got != "https://example.com/sale" {
		t.Fatalf("location = %q, want https://example.com/sale", got)
	}
	if gotToken != "tok-9" || gotURL != "https://example.com/sale" {
		t.Fatalf("recorded %q/%q", gotToken, gotURL)
	}
}

func TestTrackClickInvalidTokenStillRedirects(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{
		recordClickFn: func(ctx context.Context, token, linkURL string) error {
			return nil // recorder swallows invalid tokens itself
		},
	}

	app := newTrackTestApp(t, recorder)
	resp, _ := performRequest(t, app, http.MethodGet, "/track/click?r=garbage&url=https%3A%2F%2Fexample.com", "", nil)
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
}

func TestTrackClickRejectsBadURL(t *testing.T) {
	t.Parallel()

	app := newTrackTestApp(t, nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/track/click?r=tok", "", nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing url", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/track/click?r=tok&url=javascript%3Aalert(1)", "", nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for non-http url", resp.StatusCode)
	}
}
