package domain

import (
	"context"
	"time"
)

type WelcomeEmail struct {
	To       string
	Name     string
	PlanName string
	LoginURL string
}

type PaymentFailedEmail struct {
	To          string
	AmountCents int64
	Currency    string
	InvoiceURL  string
}

type PasswordResetEmail struct {
	To        string
	Name      string
	ResetURL  string
	ExpiresIn time.Duration
}

type ContactEmail struct {
	SenderName  string
	SenderEmail string
	Subject     string
	Message     string
}

// Mailer sends transactional email.
type Mailer interface {
	IsConfigured() bool
	SendWelcome(ctx context.Context, msg WelcomeEmail) error
	SendPaymentFailed(ctx context.Context, msg PaymentFailedEmail) error
	SendContact(ctx context.Context, msg ContactEmail) error
	SendPasswordReset(ctx context.Context, msg PasswordResetEmail) error
}
