// Package mail delivers account emails over SMTP, to the log, or through an
// asynq queue backed by redis.
package mail

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// Sender delivers one HTML message.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, htmlMessage string) error
}

// Message is the queued form of an email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct {
	Metrics *metrics.Metrics
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, html string) error {
	slogx.FromContext(ctx).Info("email not sent, no SMTP host configured",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", html),
	)
	s.Metrics.Mail("log", "sent")
	return nil
}
