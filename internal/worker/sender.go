package worker

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender delivers a rendered notification to one recipient.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail over a plain SMTP connection.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.from, to, subject, body)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
// Used when no SMTP host is configured (local development).
type LogSender struct{}

func (LogSender) Send(to, subject, body string) error {
	slog.Info("email (log only)", "to", to, "subject", subject, "body", body)
	return nil
}
