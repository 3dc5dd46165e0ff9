package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Delivery is best-effort from the booking flow's
// perspective; the river queue owns retries.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer sends via a plain SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func NewSMTPMailer(addr, from, username, password, host string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{Addr: addr, From: from, Auth: auth}
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	if err := smtp.SendMail(m.Addr, m.Auth, m.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer logs instead of sending. Used when email is disabled in config
// and in local development.
type LogMailer struct {
	Log *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("email suppressed", "to", msg.To, "subject", msg.Subject)
	return nil
}
