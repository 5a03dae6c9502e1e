// Package email implements interfaces.EmailSender over net/smtp. Sending
// email is a single outbound SMTP conversation with no retry semantics or
// provider-specific wire format to adapt to, so the standard library covers
// it without reaching for a third-party client (see DESIGN.md).
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender sends multipart (plaintext + HTML) mail through an SMTP relay.
type Sender struct {
	host     string
	port     string
	from     string
	auth     smtp.Auth
	sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a Sender against host:port, authenticating as username with
// PLAIN auth when username is non-empty. from is the message's From header.
func New(host, port, username, password, from string) *Sender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Sender{host: host, port: port, from: from, auth: auth, sendFunc: smtp.SendMail}
}

// Send delivers a multipart/alternative message. ctx is accepted for
// interface parity with the other collaborators; net/smtp has no native
// context support, so a cancelled ctx is only checked before dialing.
func (s *Sender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	msg := buildMIMEMessage(s.from, to, subject, textBody, htmlBody)
	if err := s.sendFunc(addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

const boundary = "coursepilot-notify-boundary"

func buildMIMEMessage(from, to, subject, textBody, htmlBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
