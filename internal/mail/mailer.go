// Package mail sends the password-recovery message.
//
// The interface is one method on purpose: the auth flow only ever sends
// one kind of mail. Production uses SMTP; without SMTP configuration the
// server falls back to logging the reset link, which keeps local
// development working end to end.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers a password-reset link to a recipient.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// SMTPMailer sends through a plain SMTP relay with AUTH.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

// SendPasswordReset sends the reset link. The body is intentionally
// minimal — template content is out of scope for this service.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Password Reset Request\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Click the link below to reset your password:\r\n\r\n%s\r\n\r\n", link)
	b.WriteString("This link expires in 1 hour. If you didn't request this, ignore this email.\r\n")

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: sending password reset to %s: %w", to, err)
	}
	return nil
}

// LogMailer logs the reset link instead of sending it. Used when SMTP is
// not configured (development) and in tests.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	m.logger.Info("password reset link (mail disabled)",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}
