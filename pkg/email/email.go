package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"launchpad-backend/internal/domain"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional email through Resend
type EmailService struct {
	client    *resend.Client
	fromEmail string
	toEmail   string
}

// NewEmailService creates a new email service. With an empty API key the
// service reports itself unconfigured and every send fails.
func NewEmailService(apiKey, fromEmail, contactTo string) *EmailService {
	s := &EmailService{
		fromEmail: fromEmail,
		toEmail:   contactTo,
	}
	if apiKey != "" {
		s.client = resend.NewClient(apiKey)
	}
	return s
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #1f2937; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #111827; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9fafb; }
        .label { font-weight: bold; color: #4b5563; }
        .message-box { background: white; padding: 15px; border-left: 4px solid #6366f1; margin-top: 10px; white-space: pre-wrap; }
        .button { display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600; }
        .footer { text-align: center; padding: 20px; color: #9ca3af; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">`

const layoutFoot = `
        <div class="footer"><p>Launchpad Design Studio</p></div>
    </div>
</body>
</html>`

var templates = template.Must(template.New("contact").Parse(layoutHead + `
        <div class="header"><h1>New Contact Form Submission</h1></div>
        <div class="content">
            <p><span class="label">From:</span> {{.SenderName}} ({{.SenderEmail}})</p>
            <p><span class="label">Subject:</span> {{.Subject}}</p>
            <div class="message-box">{{.Message}}</div>
        </div>` + layoutFoot))

func init() {
	template.Must(templates.New("welcome").Parse(layoutHead + `
        <div class="header"><h1>Welcome aboard{{if .Name}}, {{.Name}}{{end}}!</h1></div>
        <div class="content">
            <p>Your {{.PlanName}} subscription is active. Next step: tell us about your business so we can start designing.</p>
            <p><a class="button" href="{{.LoginURL}}">Start onboarding</a></p>
        </div>` + layoutFoot))

	template.Must(templates.New("payment_failed").Parse(layoutHead + `
        <div class="header"><h1>We couldn't process your payment</h1></div>
        <div class="content">
            <p>Your latest payment of {{.Amount}} did not go through. Please update your payment details to keep your project moving.</p>
            {{if .InvoiceURL}}<p><a class="button" href="{{.InvoiceURL}}">View invoice</a></p>{{end}}
        </div>` + layoutFoot))

	template.Must(templates.New("password_reset").Parse(layoutHead + `
        <div class="header"><h1>Set your password</h1></div>
        <div class="content">
            <p>Hi{{if .Name}} {{.Name}}{{end}}, use the button below to choose a password for your Launchpad account. The link works once and expires in {{.ExpiresIn}}.</p>
            <p><a class="button" href="{{.ResetURL}}">Set password</a></p>
            <p>If you did not ask for this, you can ignore this email.</p>
        </div>` + layoutFoot))
}

func render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return body.String(), nil
}

func (s *EmailService) send(ctx context.Context, req *resend.SendEmailRequest) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email service is not configured")
	}
	req.From = s.fromEmail
	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendContact forwards a contact form submission to the studio inbox
func (s *EmailService) SendContact(ctx context.Context, msg domain.ContactEmail) error {
	html, err := render("contact", msg)
	if err != nil {
		return err
	}
	return s.send(ctx, &resend.SendEmailRequest{
		To:      []string{s.toEmail},
		ReplyTo: msg.SenderEmail,
		Subject: fmt.Sprintf("Contact Form: %s", msg.Subject),
		Html:    html,
	})
}

func (s *EmailService) SendWelcome(ctx context.Context, msg domain.WelcomeEmail) error {
	html, err := render("welcome", msg)
	if err != nil {
		return err
	}
	return s.send(ctx, &resend.SendEmailRequest{
		To:      []string{msg.To},
		Subject: fmt.Sprintf("Welcome to Launchpad %s", msg.PlanName),
		Html:    html,
	})
}

func (s *EmailService) SendPaymentFailed(ctx context.Context, msg domain.PaymentFailedEmail) error {
	html, err := render("payment_failed", struct {
		Amount     string
		InvoiceURL string
	}{
		Amount:     FormatAmount(msg.AmountCents, msg.Currency),
		InvoiceURL: msg.InvoiceURL,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, &resend.SendEmailRequest{
		To:      []string{msg.To},
		Subject: "Action needed: payment failed",
		Html:    html,
	})
}

func (s *EmailService) SendPasswordReset(ctx context.Context, msg domain.PasswordResetEmail) error {
	html, err := render("password_reset", struct {
		Name      string
		ResetURL  string
		ExpiresIn string
	}{
		Name:      msg.Name,
		ResetURL:  msg.ResetURL,
		ExpiresIn: formatDuration(msg.ExpiresIn),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, &resend.SendEmailRequest{
		To:      []string{msg.To},
		Subject: "Set your Launchpad password",
		Html:    html,
	})
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	}
	return fmt.Sprintf("%d minutes", d/time.Minute)
}

// IsConfigured checks if the email service has an API key
func (s *EmailService) IsConfigured() bool {
	return s.client != nil
}

// FormatAmount renders minor units as "1,997.00 USD".
func FormatAmount(cents int64, currency string) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 && r != '-' && digits[i-1] != '-' {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s.%02d %s", grouped.String(), frac, strings.ToUpper(currency))
}
