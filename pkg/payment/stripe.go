package payment

import (
	"context"
	"fmt"
	"strings"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/logger"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// subscriptionExpand pulls the product onto each item so plan names resolve
// without a second round-trip per subscription.
const subscriptionExpand = "data.items.data.price.product"

// StripeProvider implements domain.PaymentProvider on top of stripe-go.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider returns a provider for secretKey. An empty key yields a
// provider whose calls fail with domain.ErrProviderNotConfigured.
func NewStripeProvider(secretKey string) *StripeProvider {
	return newStripeProvider(secretKey, "")
}

func newStripeProvider(secretKey, backendURL string) *StripeProvider {
	if secretKey == "" {
		return &StripeProvider{}
	}

	cfg := &stripe.BackendConfig{
		LeveledLogger:     logger.Log.Sugar(),
		MaxNetworkRetries: stripe.Int64(2),
	}
	if backendURL != "" {
		cfg.URL = stripe.String(backendURL)
		cfg.MaxNetworkRetries = stripe.Int64(0)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &StripeProvider{api: client.New(secretKey, backends)}
}

func (p *StripeProvider) IsConfigured() bool {
	return p.api != nil
}

func (p *StripeProvider) EnsurePrice(ctx context.Context, plan domain.Plan) (string, error) {
	if p.api == nil {
		return "", domain.ErrProviderNotConfigured
	}
	if plan.ProductID == "" {
		return "", fmt.Errorf("plan %q has no product configured", plan.ID)
	}

	listParams := &stripe.PriceListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Product:    stripe.String(plan.ProductID),
		Active:     stripe.Bool(true),
		Currency:   stripe.String(plan.Currency),
		Recurring: &stripe.PriceListRecurringParams{
			Interval: stripe.String(plan.Interval),
		},
	}
	iter := p.api.Prices.List(listParams)
	for iter.Next() {
		price := iter.Price()
		if price.UnitAmount != plan.AmountCents || price.Recurring == nil {
			continue
		}
		if string(price.Recurring.Interval) != plan.Interval {
			continue
		}
		return price.ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list prices: %w", err)
	}

	created, err := p.api.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(plan.ProductID),
		UnitAmount: stripe.Int64(plan.AmountCents),
		Currency:   stripe.String(plan.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(plan.Interval),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create price: %w", err)
	}
	return created.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error) {
	if p.api == nil {
		return nil, domain.ErrProviderNotConfigured
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(params.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		},
		Metadata: params.Metadata,
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	session, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &domain.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

func (p *StripeProvider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	if p.api == nil {
		return "", domain.ErrProviderNotConfigured
	}

	params := &stripe.CustomerListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(1), Single: true},
		Email:      stripe.String(strings.ToLower(strings.TrimSpace(email))),
	}
	iter := p.api.Customers.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list customers: %w", err)
	}
	return "", domain.ErrNotFound
}

func (p *StripeProvider) ListCustomerSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error) {
	if p.api == nil {
		return nil, domain.ErrProviderNotConfigured
	}

	params := &stripe.SubscriptionListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Customer:   stripe.String(customerID),
		Status:     stripe.String("all"),
	}
	params.AddExpand(subscriptionExpand)

	var out []domain.Subscription
	iter := p.api.Subscriptions.List(params)
	for iter.Next() {
		out = append(out, MapSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return out, nil
}

func (p *StripeProvider) ListSubscriptions(ctx context.Context, in domain.SubscriptionListParams) (*domain.SubscriptionPage, error) {
	if p.api == nil {
		return nil, domain.ErrProviderNotConfigured
	}

	limit := in.Limit
	if limit < 1 || limit > 100 {
		limit = 25
	}

	params := &stripe.SubscriptionListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(int64(limit)), Single: true},
	}
	if in.Status != "" {
		params.Status = stripe.String(in.Status)
	}
	if in.StartingAfter != "" {
		params.StartingAfter = stripe.String(in.StartingAfter)
	}
	params.AddExpand(subscriptionExpand)
	params.AddExpand("data.customer")

	page := &domain.SubscriptionPage{Data: []domain.Subscription{}}
	iter := p.api.Subscriptions.List(params)
	for iter.Next() {
		page.Data = append(page.Data, MapSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if meta := iter.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	if page.HasMore && len(page.Data) > 0 {
		page.NextCursor = page.Data[len(page.Data)-1].ID
	}
	return page, nil
}
