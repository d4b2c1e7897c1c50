package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookDeps groups the collaborators of the webhook use case.
type WebhookDeps struct {
	Verifier    domain.WebhookVerifier
	UserRepo    domain.UserRepository
	ProjectRepo domain.ProjectRepository
	Plans       domain.PlanCatalog
	AutoLogin   *AutoLoginIssuer
	Mailer      domain.Mailer
	AppBaseURL  string
}

type webhookUsecase struct {
	verifier    domain.WebhookVerifier
	userRepo    domain.UserRepository
	projectRepo domain.ProjectRepository
	plans       domain.PlanCatalog
	autoLogin   *AutoLoginIssuer
	mailer      domain.Mailer
	baseURL     string
	now         func() time.Time
}

func NewWebhookUsecase(deps WebhookDeps) domain.WebhookUsecase {
	return &webhookUsecase{
		verifier:    deps.Verifier,
		userRepo:    deps.UserRepo,
		projectRepo: deps.ProjectRepo,
		plans:       deps.Plans,
		autoLogin:   deps.AutoLogin,
		mailer:      deps.Mailer,
		baseURL:     strings.TrimRight(deps.AppBaseURL, "/"),
		now:         time.Now,
	}
}

// Handle verifies and dispatches one provider event. Only verification
// failures are returned; branch failures are logged and acknowledged so the
// provider does not retry.
func (u *webhookUsecase) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := u.verifier.Verify(payload, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			logger.Log.Warn("webhook rejected", zap.Error(err))
			return apperror.BadRequest("Invalid webhook signature")
		}
		logger.Log.Error("webhook verification failed", zap.Error(err))
		return nil
	}

	log := logger.Log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	if event.DecodeErr != nil {
		log.Error("webhook payload not decodable", zap.Error(event.DecodeErr))
		return nil
	}

	switch {
	case event.Type == domain.EventCheckoutCompleted && event.Checkout != nil:
		err = u.provision(ctx, event.Checkout)
	case event.Type == domain.EventSubscriptionUpdated && event.Subscription != nil:
		err = u.syncSubscription(ctx, event.Subscription)
	case event.Type == domain.EventSubscriptionDeleted && event.Subscription != nil:
		err = u.cancelSubscription(ctx, event.Subscription)
	case event.Type == domain.EventInvoicePaymentFailed && event.Invoice != nil:
		u.paymentFailed(ctx, event.Invoice)
	case event.Type == domain.EventInvoicePaymentSucceeded && event.Invoice != nil:
		log.Info("invoice paid",
			zap.String("invoice_id", event.Invoice.ID),
			zap.String("subscription_id", event.Invoice.SubscriptionID),
			zap.Int64("amount", event.Invoice.AmountDue),
		)
	default:
		log.Info("webhook event ignored")
		return nil
	}

	if err != nil {
		log.Error("webhook handler failed", zap.Error(err))
		return nil
	}
	log.Info("webhook event processed")
	return nil
}

// ============================================================================
// checkout.session.completed
// ============================================================================

func (u *webhookUsecase) provision(ctx context.Context, c *domain.CheckoutCompleted) error {
	email := strings.ToLower(strings.TrimSpace(c.CustomerEmail))
	if email == "" {
		return fmt.Errorf("checkout session %s has no customer email", c.SessionID)
	}

	user, err := u.ensureUser(ctx, email, c.CustomerName)
	if err != nil {
		return err
	}

	if c.CustomerID != "" && (user.StripeCustomerID == nil || *user.StripeCustomerID != c.CustomerID) {
		if err := u.userRepo.SetStripeCustomerID(ctx, user.ID, c.CustomerID); err != nil {
			return fmt.Errorf("failed to store customer id: %w", err)
		}
		user.StripeCustomerID = &c.CustomerID
	}

	planID, planName := u.resolvePlan(c.Metadata["plan"], "")
	if err := u.ensureProject(ctx, user.ID, planID, planName, c.SessionID, c.SubscriptionID); err != nil {
		return err
	}

	if u.autoLogin != nil {
		if _, err := u.autoLogin.Issue(ctx, c.SessionID, user.ID, user.Email); err != nil {
			return fmt.Errorf("failed to issue autologin token: %w", err)
		}
	}

	if u.mailer != nil && u.mailer.IsConfigured() {
		err := u.mailer.SendWelcome(ctx, domain.WelcomeEmail{
			To:       user.Email,
			Name:     user.Name,
			PlanName: planName,
			LoginURL: u.baseURL + "/onboarding/welcome?session_id=" + url.QueryEscape(c.SessionID),
		})
		if err != nil {
			logger.Log.Warn("failed to send welcome email", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	logger.Log.Info("customer provisioned",
		zap.String("user_id", user.ID),
		zap.String("checkout_session_id", c.SessionID),
		zap.String("plan", planID),
	)
	return nil
}

func (u *webhookUsecase) ensureUser(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := u.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	now := u.now().UTC()
	user = &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		// A concurrent delivery may have created the row first
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == http.StatusConflict {
			return u.userRepo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return user, nil
}

// ensureProject creates the plan's project unless one already exists for the
// subscription or the checkout session, so redelivered events are harmless.
func (u *webhookUsecase) ensureProject(ctx context.Context, userID, planID, planName, checkoutSessionID, subscriptionID string) error {
	existing, err := u.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	for _, p := range existing {
		if subscriptionID != "" && p.StripeSubscriptionID != nil && *p.StripeSubscriptionID == subscriptionID {
			return nil
		}
		if checkoutSessionID != "" && p.CheckoutSessionID != nil && *p.CheckoutSessionID == checkoutSessionID {
			return nil
		}
	}

	now := u.now().UTC()
	project := &domain.Project{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         planName + " website",
		Status:       domain.ProjectStatusOnboarding,
		Progress:     0,
		CurrentPhase: domain.ProjectStatusOnboarding,
		Plan:         planID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if subscriptionID != "" {
		project.StripeSubscriptionID = &subscriptionID
	}
	if checkoutSessionID != "" {
		project.CheckoutSessionID = &checkoutSessionID
	}
	if err := u.projectRepo.Create(ctx, project); err != nil {
		// A concurrent delivery inserted the same checkout first
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// resolvePlan prefers the plan recorded in metadata, then the product id.
func (u *webhookUsecase) resolvePlan(metadataPlan, productID string) (id, name string) {
	metadataPlan = strings.ToLower(strings.TrimSpace(metadataPlan))
	if p, ok := u.plans.Find(metadataPlan); ok {
		return p.ID, p.Name
	}
	if p, ok := u.plans.FindByProduct(productID); ok {
		return p.ID, p.Name
	}
	if metadataPlan != "" {
		return metadataPlan, strings.ToUpper(metadataPlan[:1]) + metadataPlan[1:]
	}
	return "", "Launchpad"
}

// ============================================================================
// customer.subscription.*
// ============================================================================

var billingStatuses = []string{domain.ProjectStatusPastDue, domain.ProjectStatusCancelled}

func (u *webhookUsecase) syncSubscription(ctx context.Context, sub *domain.Subscription) error {
	var status string
	var onlyFrom []string
	switch sub.Status {
	case "active", "trialing":
		// Restore billing states only; workflow labels stay as set by staff
		status, onlyFrom = domain.ProjectStatusActive, billingStatuses
	case "past_due", "unpaid":
		status = domain.ProjectStatusPastDue
	case "canceled", "incomplete_expired":
		status = domain.ProjectStatusCancelled
	default:
		logger.Log.Info("subscription status not mapped",
			zap.String("subscription_id", sub.ID),
			zap.String("status", sub.Status),
		)
		return nil
	}

	planID, _ := u.resolvePlan(sub.Metadata["plan"], sub.ProductID)
	n, err := u.projectRepo.UpdateStatusBySubscription(ctx, sub.ID, status, planID, onlyFrom)
	if err != nil {
		return err
	}
	logger.Log.Info("subscription synced",
		zap.String("subscription_id", sub.ID),
		zap.String("status", status),
		zap.Int64("projects", n),
	)
	return nil
}

func (u *webhookUsecase) cancelSubscription(ctx context.Context, sub *domain.Subscription) error {
	n, err := u.projectRepo.UpdateStatusBySubscription(ctx, sub.ID, domain.ProjectStatusCancelled, "", nil)
	if err != nil {
		return err
	}
	logger.Log.Info("subscription cancelled",
		zap.String("subscription_id", sub.ID),
		zap.Int64("projects", n),
	)
	return nil
}

// ============================================================================
// invoice.*
// ============================================================================

func (u *webhookUsecase) paymentFailed(ctx context.Context, inv *domain.Invoice) {
	logger.Log.Warn("invoice payment failed",
		zap.String("invoice_id", inv.ID),
		zap.String("customer_id", inv.CustomerID),
		zap.String("subscription_id", inv.SubscriptionID),
		zap.Int64("attempt", inv.AttemptCount),
	)

	if inv.CustomerEmail == "" || u.mailer == nil || !u.mailer.IsConfigured() {
		return
	}
	err := u.mailer.SendPaymentFailed(ctx, domain.PaymentFailedEmail{
		To:          inv.CustomerEmail,
		AmountCents: inv.AmountDue,
		Currency:    inv.Currency,
		InvoiceURL:  inv.HostedURL,
	})
	if err != nil {
		logger.Log.Warn("failed to send payment failed email", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
}
