package email

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. Used for
// local development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not delivered (log provider)",
		"recipients", len(msg.To),
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return nil
}

func (s *LogSender) Provider() string {
	return "log"
}
