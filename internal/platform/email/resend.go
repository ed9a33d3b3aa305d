package email

import (
	"context"
	"fmt"
	"net/url"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers email through the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender constructs a Resend client for apiKey.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// WithBaseURL points the client at another API endpoint (tests, proxies).
func (s *ResendSender) WithBaseURL(base *url.URL) *ResendSender {
	s.client.BaseURL = base
	return s
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func (s *ResendSender) Provider() string {
	return "resend"
}
