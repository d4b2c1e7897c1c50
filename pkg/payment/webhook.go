package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// WebhookVerifier checks Stripe-Signature headers and decodes event payloads.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify returns domain.ErrInvalidSignature for a missing secret, a missing
// header, or a signature mismatch. A signed event whose object does not decode
// is returned with DecodeErr set so the caller can acknowledge it.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (*domain.WebhookEvent, error) {
	if v.secret == "" || signature == "" {
		return nil, domain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &domain.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case domain.EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			out.DecodeErr = fmt.Errorf("failed to decode checkout session: %w", err)
			return out, nil
		}
		out.Checkout = mapCheckoutSession(&session)

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			out.DecodeErr = fmt.Errorf("failed to decode subscription: %w", err)
			return out, nil
		}
		mapped := MapSubscription(&sub)
		out.Subscription = &mapped

	case domain.EventInvoicePaymentFailed, domain.EventInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			out.DecodeErr = fmt.Errorf("failed to decode invoice: %w", err)
			return out, nil
		}
		out.Invoice = mapInvoice(&inv)
	}

	return out, nil
}

func mapCheckoutSession(s *stripe.CheckoutSession) *domain.CheckoutCompleted {
	out := &domain.CheckoutCompleted{
		SessionID:     s.ID,
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil {
		if s.CustomerDetails.Email != "" {
			out.CustomerEmail = s.CustomerDetails.Email
		}
		out.CustomerName = s.CustomerDetails.Name
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

func mapInvoice(inv *stripe.Invoice) *domain.Invoice {
	out := &domain.Invoice{
		ID:            inv.ID,
		CustomerEmail: inv.CustomerEmail,
		AmountDue:     inv.AmountDue,
		Currency:      string(inv.Currency),
		HostedURL:     inv.HostedInvoiceURL,
		AttemptCount:  inv.AttemptCount,
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
		if out.CustomerEmail == "" {
			out.CustomerEmail = inv.Customer.Email
		}
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	return out
}

// MapSubscription flattens a Stripe subscription. Plan details come from the
// first item; the product name is only present when it was expanded.
func MapSubscription(s *stripe.Subscription) domain.Subscription {
	out := domain.Subscription{
		ID:        s.ID,
		Status:    string(s.Status),
		Metadata:  s.Metadata,
		CreatedAt: time.Unix(s.Created, 0).UTC(),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
		out.CustomerEmail = s.Customer.Email
	}
	if s.CurrentPeriodEnd > 0 {
		end := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		if price := s.Items.Data[0].Price; price != nil {
			out.AmountCents = price.UnitAmount
			out.Currency = string(price.Currency)
			if price.Recurring != nil {
				out.Interval = string(price.Recurring.Interval)
			}
			if price.Product != nil {
				out.ProductID = price.Product.ID
				out.PlanName = price.Product.Name
			}
		}
	}
	if out.PlanName == "" {
		out.PlanName = s.Metadata["plan"]
	}
	return out
}
