// Package notify sends the service's outbound emails. Templates are rendered with liquid and
// delivered through one of several providers.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osteele/liquid"
	"gitlab.com/dirk.krummacker/address-book/internal/logger"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message through an email provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const verificationSubject = "Confirm your email"

const verificationHTML = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{ username }},</p>
  <p>thank you for signing up to the address book. Please confirm your email address by
  following the link below.</p>
  <p><a href="{{ host }}/api/auth/confirmed_email/{{ token }}">Confirm email</a></p>
  <p>If you did not sign up, you can ignore this message.</p>
</body>
</html>`

const verificationText = `Hi {{ username }},

please confirm your email address by opening
{{ host }}/api/auth/confirmed_email/{{ token }}
`

// Mailer renders and sends the verification email.
type Mailer struct {
	sender Sender
	html   *liquid.Template
	text   *liquid.Template
}

// NewMailer parses the email templates and returns a mailer using sender.
func NewMailer(sender Sender) (*Mailer, error) {
	engine := liquid.NewEngine()
	html, err := engine.ParseString(verificationHTML)
	if err != nil {
		return nil, fmt.Errorf("could not parse verification html template: %w", err)
	}
	text, err := engine.ParseString(verificationText)
	if err != nil {
		return nil, fmt.Errorf("could not parse verification text template: %w", err)
	}
	return &Mailer{sender: sender, html: html, text: text}, nil
}

// SendVerification sends the email with the confirmation link for token to the user. host is the
// base URL of the service as seen by the recipient.
func (m *Mailer) SendVerification(ctx context.Context, email, username, host, token string) error {
	bindings := map[string]interface{}{
		"host":     host,
		"username": username,
		"token":    token,
	}
	html, err := m.html.RenderString(bindings)
	if err != nil {
		return fmt.Errorf("could not render verification email: %w", err)
	}
	text, err := m.text.RenderString(bindings)
	if err != nil {
		return fmt.Errorf("could not render verification email: %w", err)
	}
	if err := m.sender.Send(ctx, Message{To: email, Subject: verificationSubject, HTML: html, Text: text}); err != nil {
		return fmt.Errorf("could not send verification email to %s: %w", logger.RedactEmail(email), err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. It is meant for local
// development. The body carries the verification token and is only logged at debug level.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "email not delivered, log mail provider configured",
		"to", logger.RedactEmail(msg.To),
		"subject", msg.Subject,
	)
	slog.DebugContext(ctx, "undelivered email body", "text", msg.Text)
	return nil
}
