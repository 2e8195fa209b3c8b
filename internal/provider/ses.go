package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

// SESConfig carries the credentials and verified sender for the SES provider.
type SESConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	FromEmail string
	FromName  string
}

func (c SESConfig) complete() bool {
	return strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.FromEmail) != ""
}

// SESProvider delivers mail through the AWS SES v2 API.
type SESProvider struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
}

var _ EmailProvider = (*SESProvider)(nil)

func NewSESProvider(ctx context.Context, cfg SESConfig) (*SESProvider, error) {
	if !cfg.complete() {
		return nil, fmt.Errorf("ses provider requires access key, secret key and a verified from address")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESProvider{
		client:    sesv2.NewFromConfig(awsCfg),
		fromEmail: strings.TrimSpace(cfg.FromEmail),
		fromName:  strings.TrimSpace(cfg.FromName),
	}, nil
}

func (p *SESProvider) Send(ctx context.Context, msg Message) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("ses provider is not initialized")
	}
	if msg.From == "" {
		msg.From = p.fromEmail
	}
	if msg.FromName == "" {
		msg.FromName = p.fromName
	}
	if err := msg.Validate(); err != nil {
		return nil, &SendError{Message: "invalid message", Cause: err}
	}

	source := msg.From
	if msg.FromName != "" {
		source = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	body := &types.Body{
		Html: &types.Content{Data: aws.String(msg.BodyHTML), Charset: aws.String("UTF-8")},
	}
	if strings.TrimSpace(msg.BodyText) != "" {
		body.Text = &types.Content{Data: aws.String(msg.BodyText), Charset: aws.String("UTF-8")}
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(source),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	})
	if err != nil {
		return nil, &SendError{
			Message:   "ses send failed",
			Transient: isTransientSESError(err),
			Cause:     err,
		}
	}

	resp := &Response{StatusCode: 200}
	if out.MessageId != nil {
		resp.MessageID = *out.MessageId
	}
	return resp, nil
}

func isTransientSESError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "TooManyRequestsException", "ThrottlingException", "LimitExceededException",
		"ServiceUnavailableException", "InternalFailure":
		return true
	}
	return false
}
