package email

import (
	"context"
	"fmt"
	"net/mail"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers email through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
}

// NewSMTPSender constructs an SMTP sender. Port 465 uses implicit TLS,
// other ports upgrade with STARTTLS when the server offers it.
func NewSMTPSender(host string, port int, user, password string) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, password)}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}
	// gomail has no context support; refuse to start a send for a request
	// that is already gone.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp %s:%d: %w", s.dialer.Host, s.dialer.Port, err)
	}
	return nil
}

func (s *SMTPSender) Provider() string {
	return "smtp"
}

// buildMessage splits a "Name <addr>" sender so the display name is encoded
// correctly.
func buildMessage(msg Message) (*gomail.Message, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("parse sender address: %w", err)
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from.Address, from.Name)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m, nil
}
