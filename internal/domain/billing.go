package domain

import (
	"context"
	"errors"
	"time"
)

// Plan is one entry of the fixed pricing table.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
	ProductID   string `json:"-"`
}

const (
	PlanRocket = "rocket"
	PlanGalaxy = "galaxy"
)

// PlanCatalog is the list of plans offered at checkout.
type PlanCatalog []Plan

// DefaultPlans builds the catalog from the configured product ids.
func DefaultPlans(rocketProductID, galaxyProductID string) PlanCatalog {
	return PlanCatalog{
		{ID: PlanRocket, Name: "Rocket", AmountCents: 99700, Currency: "usd", Interval: "month", ProductID: rocketProductID},
		{ID: PlanGalaxy, Name: "Galaxy", AmountCents: 199700, Currency: "usd", Interval: "month", ProductID: galaxyProductID},
	}
}

func (c PlanCatalog) Find(id string) (Plan, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FindByProduct maps a Stripe product id back to its plan.
func (c PlanCatalog) FindByProduct(productID string) (Plan, bool) {
	if productID == "" {
		return Plan{}, false
	}
	for _, p := range c {
		if p.ProductID == productID {
			return p, true
		}
	}
	return Plan{}, false
}

type CheckoutRequest struct {
	Plan     string            `json:"plan" binding:"required"`
	Email    string            `json:"email" binding:"omitempty,email"`
	Metadata map[string]string `json:"metadata"`
}

type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutParams is what the billing use case asks the provider to create.
type CheckoutParams struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Subscription is the provider-neutral view of a recurring subscription.
type Subscription struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customerId"`
	CustomerEmail    string            `json:"customerEmail,omitempty"`
	Status           string            `json:"status"`
	PlanName         string            `json:"planName"`
	ProductID        string            `json:"productId,omitempty"`
	AmountCents      int64             `json:"amountCents"`
	Currency         string            `json:"currency"`
	Interval         string            `json:"interval"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CurrentPeriodEnd *time.Time        `json:"currentPeriodEnd,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// MonthlyAmountCents normalizes the price to a monthly figure.
func (s Subscription) MonthlyAmountCents() int64 {
	switch s.Interval {
	case "year":
		return s.AmountCents / 12
	case "week":
		return s.AmountCents * 52 / 12
	case "day":
		return s.AmountCents * 365 / 12
	default:
		return s.AmountCents
	}
}

// IsLive reports whether the subscription currently bills.
func (s Subscription) IsLive() bool {
	return s.Status == "active" || s.Status == "trialing" || s.Status == "past_due"
}

type SubscriptionListParams struct {
	Status        string
	Limit         int
	StartingAfter string
}

type SubscriptionPage struct {
	Data       []Subscription `json:"data"`
	HasMore    bool           `json:"hasMore"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ErrProviderNotConfigured is returned when no payment provider key is set.
var ErrProviderNotConfigured = errors.New("payment provider not configured")

// PaymentProvider is the subset of the payment processor the service uses.
type PaymentProvider interface {
	// EnsurePrice returns an active monthly price for plan, creating one if needed.
	EnsurePrice(ctx context.Context, plan Plan) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// FindCustomerIDByEmail returns ErrNotFound when no customer matches.
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)
	ListCustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	ListSubscriptions(ctx context.Context, params SubscriptionListParams) (*SubscriptionPage, error)
}

type BillingUsecase interface {
	Plans() []Plan
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}
