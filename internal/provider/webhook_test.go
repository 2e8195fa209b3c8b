package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestWebhookProviderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody webhookMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Message-ID", "msg-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	p, err := NewWebhookProvider(server.URL, "news@example.com")
	if err != nil {
		t.Fatalf("NewWebhookProvider() error = %v", err)
	}

	msg := Message{
		To:       "ada@example.com",
		Subject:  "Welcome",
		BodyHTML: "<p>Hello</p>",
	}

	resp, err := p.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if resp.MessageID != "msg-1" {
		t.Fatalf("MessageID = %q, want %q", resp.MessageID, "msg-1")
	}

	if gotBody.To != msg.To {
		t.Fatalf("request.to = %q, want %q", gotBody.To, msg.To)
	}
	if gotBody.From != "news@example.com" {
		t.Fatalf("request.from = %q, want configured default sender", gotBody.From)
	}
	if gotBody.Subject != msg.Subject {
		t.Fatalf("request.subject = %q, want %q", gotBody.Subject, msg.Subject)
	}
}

func TestWebhookProviderStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "server error is transient", statusCode: http.StatusBadGateway, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "not found is permanent", statusCode: http.StatusNotFound, wantTransient: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer server.Close()

			p, err := NewWebhookProvider(server.URL, "news@example.com")
			if err != nil {
				t.Fatalf("NewWebhookProvider() error = %v", err)
			}

			_, err = p.Send(context.Background(), Message{
				To:       "ada@example.com",
				Subject:  "Welcome",
				BodyHTML: "<p>Hello</p>",
			})
			if err == nil {
				t.Fatal("Send() should fail for non-2xx status")
			}

			var sendErr *SendError
			if !errors.As(err, &sendErr) {
				t.Fatalf("error type = %T, want *SendError", err)
			}
			if sendErr.Transient != tc.wantTransient {
				t.Fatalf("Transient = %v, want %v", sendErr.Transient, tc.wantTransient)
			}
			if IsTransient(err) != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", IsTransient(err), tc.wantTransient)
			}
		})
	}
}

func TestWebhookProviderTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(20 * time.Millisecond)

	p, err := NewWebhookProviderWithClient(server.URL, "news@example.com", client)
	if err != nil {
		t.Fatalf("NewWebhookProviderWithClient() error = %v", err)
	}

	_, err = p.Send(context.Background(), Message{
		To:       "ada@example.com",
		Subject:  "Welcome",
		BodyHTML: "<p>Hello</p>",
	})
	if err == nil {
		t.Fatal("Send() should fail on timeout")
	}
	if !IsTransient(err) {
		t.Fatalf("timeout should be transient, got %v", err)
	}
}

func TestWebhookProviderRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	p, err := NewWebhookProvider("https://hooks.example.com/mail", "")
	if err != nil {
		t.Fatalf("NewWebhookProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), Message{To: "", Subject: "x"})
	if err == nil {
		t.Fatal("Send() should reject a message without recipient")
	}
	if IsTransient(err) {
		t.Fatal("validation failures must not be transient")
	}
}

func TestNewWebhookProviderValidatesEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewWebhookProvider("", "news@example.com"); err == nil {
		t.Fatal("empty endpoint should be rejected")
	}
	if _, err := NewWebhookProvider("not a url", "news@example.com"); err == nil {
		t.Fatal("malformed endpoint should be rejected")
	}
}
