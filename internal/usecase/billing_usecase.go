package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"

	"go.uber.org/zap"
)

// Provider metadata limits
const (
	maxMetadataKeys     = 20
	maxMetadataKeyLen   = 40
	maxMetadataValueLen = 500
)

type billingUsecase struct {
	provider domain.PaymentProvider
	plans    domain.PlanCatalog
	baseURL  string
}

func NewBillingUsecase(provider domain.PaymentProvider, plans domain.PlanCatalog, appBaseURL string) domain.BillingUsecase {
	return &billingUsecase{
		provider: provider,
		plans:    plans,
		baseURL:  strings.TrimRight(appBaseURL, "/"),
	}
}

func (u *billingUsecase) Plans() []domain.Plan {
	out := make([]domain.Plan, len(u.plans))
	copy(out, u.plans)
	return out
}

func (u *billingUsecase) CreateCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	plan, ok := u.plans.Find(strings.ToLower(strings.TrimSpace(req.Plan)))
	if !ok {
		return nil, apperror.BadRequest("Invalid plan selected")
	}

	priceID, err := u.provider.EnsurePrice(ctx, plan)
	if err != nil {
		return nil, providerError("failed to resolve price", err, zap.String("plan", plan.ID))
	}

	session, err := u.provider.CreateCheckoutSession(ctx, domain.CheckoutParams{
		PriceID:       priceID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.Email)),
		// Stripe substitutes the literal placeholder on redirect
		SuccessURL: u.baseURL + "/onboarding/welcome?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  u.baseURL + "/pricing",
		Metadata:   checkoutMetadata(plan.ID, req.Metadata),
	})
	if err != nil {
		return nil, providerError("failed to create checkout session", err, zap.String("plan", plan.ID))
	}

	logger.Log.Info("checkout session created",
		zap.String("session_id", session.SessionID),
		zap.String("plan", plan.ID),
	)
	return session, nil
}

// checkoutMetadata trims attribution fields to the provider's limits and
// always records the plan.
func checkoutMetadata(planID string, in map[string]string) map[string]string {
	keys := make([]string, 0, len(in))
	for k := range in {
		if strings.TrimSpace(k) == "" || k == "plan" || len(k) > maxMetadataKeyLen {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := map[string]string{"plan": planID}
	for _, k := range keys {
		if len(out) >= maxMetadataKeys {
			break
		}
		out[k] = truncate(in[k], maxMetadataValueLen)
	}
	return out
}

// providerError logs the provider detail and returns a generic client error.
func providerError(msg string, err error, fields ...zap.Field) error {
	if errors.Is(err, domain.ErrProviderNotConfigured) {
		return apperror.Unavailable("Payments are not configured", err)
	}
	logger.Log.Error(msg, append(fields, zap.Error(err))...)
	return apperror.Internal(err)
}
