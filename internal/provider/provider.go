package provider

import (
	"context"
	"fmt"
	"strings"
)

// Message is one outgoing email, already rendered.
type Message struct {
	To       string
	From     string
	FromName string
	Subject  string
	BodyHTML string
	BodyText string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("message recipient is required")
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("message sender is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("message subject is required")
	}
	return nil
}

// Response stores provider call metadata for audit and accounting.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
}

// EmailProvider is the outbound delivery port. Implementations must honor the
// context deadline; a timed-out call counts as a per-recipient failure, not a
// batch abort.
type EmailProvider interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}
