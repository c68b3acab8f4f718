package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends through an SMTP relay with PLAIN auth when a username is
// set.
type SMTPSender struct {
	Config  SMTPConfig
	Metrics *metrics.Metrics

	// send is smtp.SendMail; tests replace it.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig, m *metrics.Metrics) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{Config: cfg, Metrics: m, send: smtp.SendMail}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, html string) error {
	var auth smtp.Auth
	if s.Config.Username != "" {
		auth = smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.Host)
	}

	msg, err := buildMessage(s.Config.From, s.Config.FromName, to, subject, html, time.Now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port))
	if err := s.send(addr, auth, s.Config.From, []string{to}, msg); err != nil {
		s.Metrics.Mail("smtp", "failed")
		slogx.FromContext(ctx).Error("smtp send failed", slog.String("to", to), slog.Any("error", err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.Metrics.Mail("smtp", "sent")
	return nil
}

// buildMessage renders a single part HTML message. Headers are RFC 2047
// encoded so non-ASCII subjects survive.
func buildMessage(from, fromName, to, subject, html string, now time.Time) ([]byte, error) {
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	sender := (&mail.Address{Name: fromName, Address: from}).String()

	var b strings.Builder
	b.WriteString("From: " + sender + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(html))
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	return []byte(b.String()), nil
}
