// Package email sends transactional email through a configured provider.
// The provider is chosen once at startup and shared by all requests.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"weict/internal/platform/config"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a Message. Implementations make exactly one delivery
// attempt per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// New builds the Sender selected by cfg.Provider.
func New(cfg config.EmailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case config.EmailProviderResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend provider requires an api key")
		}
		return NewResendSender(cfg.ResendAPIKey), nil
	case config.EmailProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp provider requires a host")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword), nil
	case config.EmailProviderLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func validate(msg Message) error {
	if msg.From == "" {
		return fmt.Errorf("email sender address is empty")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	return nil
}
