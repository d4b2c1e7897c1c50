package domain

import (
	"context"
	"errors"
)

// Webhook event types the service reacts to.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookEvent is a verified provider event. Exactly one payload pointer is
// set for the handled types; unknown types carry none. DecodeErr is set when
// the signature was valid but the object could not be decoded.
type WebhookEvent struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *Subscription
	Invoice      *Invoice
	DecodeErr    error
}

type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	CustomerEmail  string
	CustomerName   string
	SubscriptionID string
	Metadata       map[string]string
}

type Invoice struct {
	ID             string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	AmountDue      int64
	Currency       string
	HostedURL      string
	AttemptCount   int64
}

// WebhookVerifier checks the signature header and decodes the payload.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (*WebhookEvent, error)
}

type WebhookUsecase interface {
	// Handle verifies and dispatches an event. Only signature failures are
	// returned; per-branch failures are logged.
	Handle(ctx context.Context, payload []byte, signature string) error
}
