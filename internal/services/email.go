package services

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/time2watch/internal/config"
	"github.com/HammerMeetNail/time2watch/internal/logging"
)

// Email represents an email to be sent
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailProvider is the interface for sending emails
type EmailProvider interface {
	Send(ctx context.Context, email *Email) error
}

// EmailService delivers login codes out of band.
type EmailService struct {
	provider EmailProvider
	baseURL  string
}

// NewEmailService returns nil when no delivery channel is configured; callers
// then fall back to showing the code directly.
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)

	var provider EmailProvider
	switch cfg.Provider {
	case "resend":
		provider = NewResendProvider(cfg.ResendAPIKey, from, cfg.ReplyTo)
	case "smtp":
		provider = NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.FromAddress, from)
	case "console":
		provider = NewConsoleProvider()
	default:
		return nil
	}

	return &EmailService{provider: provider, baseURL: cfg.BaseURL}
}

func (s *EmailService) SendLoginCode(ctx context.Context, to, username, code string) error {
	html, text := s.renderLoginCodeEmail(username, code)
	return s.provider.Send(ctx, &Email{
		To:      to,
		Subject: "Your new time2watch access code",
		HTML:    html,
		Text:    text,
	})
}

func (s *EmailService) renderLoginCodeEmail(username, code string) (html, text string) {
	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #333; font-size: 24px;">Your new access code</h1>

  <p>Hi %s, here is the new access code for your time2watch account:</p>

  <p style="font-family: monospace; font-size: 22px; letter-spacing: 3px; background: #f4f4f5; padding: 12px 16px; border-radius: 6px;">%s</p>

  <p style="color: #666; font-size: 14px;">
    Your previous code no longer works. Sign in at <a href="%s">%s</a>.
  </p>

  <p style="color: #666; font-size: 14px;">
    If you didn't ask for a new code, sign in and keep this one somewhere safe.
  </p>
</body>
</html>`, username, code, s.baseURL, s.baseURL)

	text = fmt.Sprintf(`Your new time2watch access code

Hi %s, here is the new access code for your account:

%s

Your previous code no longer works. Sign in at %s.

--
time2watch`, username, code, s.baseURL)

	return html, text
}

// ResendProvider sends emails using the Resend API
type ResendProvider struct {
	client  *resend.Client
	from    string
	replyTo string
}

func NewResendProvider(apiKey, from, replyTo string) *ResendProvider {
	return &ResendProvider{
		client:  resend.NewClient(apiKey),
		from:    from,
		replyTo: replyTo,
	}
}

func (p *ResendProvider) Send(ctx context.Context, email *Email) error {
	params := &resend.SendEmailRequest{
		From:    p.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: p.replyTo,
	}

	_, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("sending email via Resend: %w", err)
	}

	logging.FromContext(ctx).Info("Email sent via Resend", map[string]interface{}{"subject": email.Subject})
	return nil
}

// SMTPProvider sends emails via SMTP (for Mailpit in local dev)
type SMTPProvider struct {
	host         string
	port         int
	envelopeFrom string
	from         string
	sendMail     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPProvider(host string, port int, envelopeFrom, from string) *SMTPProvider {
	return &SMTPProvider{host: host, port: port, envelopeFrom: envelopeFrom, from: from, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, email *Email) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", p.from)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTML)

	if err := p.sendMail(addr, nil, p.envelopeFrom, []string{email.To}, buf.Bytes()); err != nil {
		return fmt.Errorf("sending email via SMTP: %w", err)
	}

	logging.FromContext(ctx).Info("Email sent via SMTP", map[string]interface{}{"subject": email.Subject})
	return nil
}

// ConsoleProvider logs emails to console (for development)
type ConsoleProvider struct{}

func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

func (p *ConsoleProvider) Send(ctx context.Context, email *Email) error {
	logging.FromContext(ctx).Info("=== EMAIL (Console Provider) ===", map[string]interface{}{"to": email.To, "subject": email.Subject})
	fmt.Printf("\n=== EMAIL ===\n")
	fmt.Printf("To: %s\n", email.To)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("---\n")
	fmt.Printf("%s\n", email.Text)
	fmt.Printf("=============\n\n")
	return nil
}
