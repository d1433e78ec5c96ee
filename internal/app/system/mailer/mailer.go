// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is a single outbound message. TextBody is required; HTMLBody is
// optional and sent as a multipart alternative when present.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends email over SMTP. Plain (unauthenticated) SMTP is used
// when User is empty, which matches local Mailpit-style development.
type Mailer struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	Log      *zap.Logger
}

// New creates a Mailer.
func New(host string, port int, user, pass, from, fromName string, logger *zap.Logger) *Mailer {
	return &Mailer{
		Host:     host,
		Port:     port,
		User:     user,
		Pass:     pass,
		From:     from,
		FromName: fromName,
		Log:      logger,
	}
}

// Send delivers one email. The context bounds the whole SMTP exchange
// via the dialer; SMTP itself has no mid-stream cancellation.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	addr := net.JoinHostPort(m.Host, fmt.Sprintf("%d", m.Port))

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}

	msg := m.build(e)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.From, []string{e.To}, msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mailer: send canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send to %s: %w", e.To, err)
		}
	}

	m.Log.Info("email sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}

// SendBestEffort delivers an email as a fire-and-forget side effect:
// failures are logged and swallowed, never surfaced to the caller.
func (m *Mailer) SendBestEffort(ctx context.Context, e Email) {
	if err := m.Send(ctx, e); err != nil {
		m.Log.Error("best-effort email failed",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
	}
}

const boundary = "=_vettahub_alt"

func (m *Mailer) build(e Email) []byte {
	var b strings.Builder

	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.FromName), m.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if e.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(e.TextBody)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, e.TextBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, e.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
