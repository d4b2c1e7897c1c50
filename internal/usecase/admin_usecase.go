package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"
	"launchpad-backend/pkg/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	enrichConcurrency   = 4
	enrichTimeout       = 5 * time.Second
	enrichCacheTTL      = 5 * time.Minute
	enrichCachePrefix   = "admin:subscription:"
	subscriptionNone    = "none"
	statsPageSize       = 100
	statsMaxPages       = 10
	defaultSubsPageSize = 25
)

// AdminDeps groups the collaborators of the admin use case.
type AdminDeps struct {
	AdminRepo      domain.AdminRepository
	UserRepo       domain.UserRepository
	ProjectRepo    domain.ProjectRepository
	OnboardingRepo domain.OnboardingRepository
	Payments       domain.PaymentProvider
	Plans          domain.PlanCatalog
	// Cache holds per-user subscription summaries; nil disables caching.
	Cache domain.KVStore
}

type adminUsecase struct {
	adminRepo      domain.AdminRepository
	userRepo       domain.UserRepository
	projectRepo    domain.ProjectRepository
	onboardingRepo domain.OnboardingRepository
	payments       domain.PaymentProvider
	plans          domain.PlanCatalog
	cache          domain.KVStore
	now            func() time.Time
}

func NewAdminUsecase(deps AdminDeps) domain.AdminUsecase {
	return &adminUsecase{
		adminRepo:      deps.AdminRepo,
		userRepo:       deps.UserRepo,
		projectRepo:    deps.ProjectRepo,
		onboardingRepo: deps.OnboardingRepo,
		payments:       deps.Payments,
		plans:          deps.Plans,
		cache:          deps.Cache,
		now:            time.Now,
	}
}

// ============================================================================
// Stats
// ============================================================================

// GetStats returns dashboard statistics
func (u *adminUsecase) GetStats(ctx context.Context) (*domain.AdminStats, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var (
		byRole       map[domain.Role]int64
		byStatus     map[string]int64
		byCompletion map[domain.CompletionStatus]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byRole, err = u.adminRepo.CountUsersByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = u.projectRepo.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		byCompletion, err = u.onboardingRepo.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.Internal(err)
	}

	stats := &domain.AdminStats{
		UsersByRole: domain.UsersByRole{
			Admin: byRole[domain.RoleAdmin],
			User:  byRole[domain.RoleUser],
		},
		ProjectsByStatus:   byStatus,
		OnboardingByStatus: byCompletion,
		SystemHealth: domain.SystemHealth{
			Status:      "healthy",
			LastChecked: u.now().UTC().Format(time.RFC3339),
		},
	}
	for _, n := range byRole {
		stats.TotalUsers += n
	}
	for _, n := range byStatus {
		stats.TotalProjects += n
	}

	billing, err := u.billingStats(ctx)
	switch {
	case err == nil:
		stats.Billing = *billing
	case errors.Is(err, domain.ErrProviderNotConfigured):
		stats.Billing = domain.BillingStats{Available: false}
	default:
		logger.Log.Warn("failed to compute billing stats", zap.Error(err))
		stats.Billing = domain.BillingStats{Available: false}
		stats.SystemHealth.Status = "degraded"
	}
	return stats, nil
}

// billingStats walks the active subscriptions and sums their monthly value.
func (u *adminUsecase) billingStats(ctx context.Context) (*domain.BillingStats, error) {
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	out := &domain.BillingStats{Available: true, Currency: "usd"}
	params := domain.SubscriptionListParams{Status: "active", Limit: statsPageSize}
	for page := 0; page < statsMaxPages; page++ {
		result, err := u.payments.ListSubscriptions(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, sub := range result.Data {
			out.ActiveSubscriptions++
			out.MonthlyRecurringRevenue += sub.MonthlyAmountCents()
			if sub.Currency != "" {
				out.Currency = sub.Currency
			}
		}
		if !result.HasMore || result.NextCursor == "" {
			break
		}
		params.StartingAfter = result.NextCursor
	}
	return out, nil
}

// ============================================================================
// Users
// ============================================================================

// ListUsers returns paginated users
func (u *adminUsecase) ListUsers(ctx context.Context, role domain.Role, page, pageSize int) (*domain.PaginatedResult[domain.AdminUser], error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if role != "" && !role.IsValid() {
		return nil, apperror.BadRequest("Role must be USER or ADMIN")
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	users, total, err := u.adminRepo.ListUsers(ctx, role, page, pageSize)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if users == nil {
		users = []domain.AdminUser{}
	}
	u.enrich(ctx, users)

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	return &domain.PaginatedResult[domain.AdminUser]{
		Data:       users,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (u *adminUsecase) GetUser(ctx context.Context, userID string) (*domain.AdminUserDetail, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	user, err := u.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	projects, err := u.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	detail := &domain.AdminUserDetail{
		User:     toAdminUser(user, int64(len(projects))),
		Projects: projects,
	}

	resp, err := u.onboardingRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		detail.Onboarding = resp.Data()
	case !errors.Is(err, domain.ErrNotFound):
		return nil, apperror.Internal(err)
	}

	one := []domain.AdminUser{detail.User}
	u.enrich(ctx, one)
	detail.User = one[0]
	return detail, nil
}

// CreateUser creates an account. Without a password the user can only sign
// in through a checkout hand-off until one is set.
func (u *adminUsecase) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.AdminUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := u.now().UTC()
	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Name:      strings.TrimSpace(req.Name),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Password != "" {
		hash, err := security.HashPassword(req.Password)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		user.PasswordHash = &hash
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, asAppError(err)
	}

	logger.Log.Info("admin created user",
		zap.String("admin_id", domain.UserIDFromContext(ctx)),
		zap.String("user_id", user.ID),
	)
	created := toAdminUser(user, 0)
	created.SubscriptionStatus = subscriptionNone
	return &created, nil
}

// UpdateUser applies the non-empty fields of req
func (u *adminUsecase) UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.AdminUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	user, err := u.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if req.Role != "" {
		if userID == domain.UserIDFromContext(ctx) && req.Role != domain.RoleAdmin {
			return nil, apperror.BadRequest("You cannot remove your own admin role")
		}
		user.Role = req.Role
	}
	user.UpdatedAt = u.now().UTC()

	if err := u.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, asAppError(err)
	}

	projects, err := u.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	updated := toAdminUser(user, int64(len(projects)))
	return &updated, nil
}

// DeleteUser deletes a user
func (u *adminUsecase) DeleteUser(ctx context.Context, userID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if userID == domain.UserIDFromContext(ctx) {
		return apperror.BadRequest("You cannot delete your own account")
	}

	if err := u.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal(err)
	}
	u.forget(ctx, userID)

	logger.Log.Info("admin deleted user",
		zap.String("admin_id", domain.UserIDFromContext(ctx)),
		zap.String("user_id", userID),
	)
	return nil
}

// ============================================================================
// Projects
// ============================================================================

func (u *adminUsecase) ListUserProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := u.getUser(ctx, userID); err != nil {
		return nil, err
	}

	projects, err := u.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (u *adminUsecase) CreateProject(ctx context.Context, userID string, req domain.CreateProjectRequest) (*domain.Project, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := u.getUser(ctx, userID); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	project := &domain.Project{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              strings.TrimSpace(req.Name),
		Status:            defaultString(req.Status, domain.ProjectStatusOnboarding),
		Progress:          req.Progress,
		CurrentPhase:      defaultString(req.CurrentPhase, domain.ProjectStatusOnboarding),
		EstimatedDelivery: req.EstimatedDelivery,
		Plan:              strings.TrimSpace(req.Plan),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.projectRepo.Create(ctx, project); err != nil {
		return nil, asAppError(err)
	}

	logger.Log.Info("admin created project",
		zap.String("admin_id", domain.UserIDFromContext(ctx)),
		zap.String("user_id", userID),
		zap.String("project_id", project.ID),
	)
	return project, nil
}

func (u *adminUsecase) UpdateProject(ctx context.Context, projectID string, req domain.UpdateProjectRequest) (*domain.Project, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("Project not found")
		}
		return nil, apperror.Internal(err)
	}

	req.Apply(project)
	if strings.TrimSpace(project.Name) == "" {
		return nil, apperror.BadRequest("Project name cannot be empty")
	}
	project.UpdatedAt = u.now().UTC()

	if err := u.projectRepo.Update(ctx, project); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("Project not found")
		}
		return nil, apperror.Internal(err)
	}
	return project, nil
}

func (u *adminUsecase) DeleteProject(ctx context.Context, projectID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := u.projectRepo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("Project not found")
		}
		return apperror.Internal(err)
	}
	return nil
}

// ============================================================================
// Billing
// ============================================================================

func (u *adminUsecase) ListSubscriptions(ctx context.Context, params domain.SubscriptionListParams) (*domain.SubscriptionPage, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = defaultSubsPageSize
	}

	page, err := u.payments.ListSubscriptions(ctx, params)
	if err != nil {
		return nil, providerError("failed to list subscriptions", err)
	}
	if page.Data == nil {
		page.Data = []domain.Subscription{}
	}
	return page, nil
}

// ============================================================================
// Export
// ============================================================================

func (u *adminUsecase) Export(ctx context.Context, format string) (*domain.ExportFile, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != "xlsx" && format != "csv" {
		return nil, apperror.BadRequest("Format must be xlsx or csv")
	}

	users, err := u.adminRepo.ListAllUsers(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	projects, err := u.projectRepo.ListAll(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u.enrich(ctx, users)

	file, err := renderExport(format, users, projects, u.now())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return file, nil
}

// ============================================================================
// Subscription enrichment
// ============================================================================

type subscriptionSummary struct {
	Status string `json:"status"`
	Plan   string `json:"plan"`
}

// enrich fills SubscriptionStatus and PlanName in place. Lookups run with
// bounded concurrency under one deadline; a failed lookup yields "unknown".
func (u *adminUsecase) enrich(ctx context.Context, users []domain.AdminUser) {
	if len(users) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range users {
		i := i
		g.Go(func() error {
			summary := u.summarize(ctx, &users[i])
			users[i].SubscriptionStatus = summary.Status
			users[i].PlanName = summary.Plan
			return nil
		})
	}
	_ = g.Wait()
}

func (u *adminUsecase) summarize(ctx context.Context, user *domain.AdminUser) subscriptionSummary {
	if cached, ok := u.cached(ctx, user.ID); ok {
		return cached
	}

	unknown := subscriptionSummary{Status: domain.SubscriptionStatusUnknown}

	customerID := user.StripeCustomerID
	if customerID == "" {
		id, err := u.payments.FindCustomerIDByEmail(ctx, user.Email)
		if errors.Is(err, domain.ErrNotFound) {
			none := subscriptionSummary{Status: subscriptionNone}
			u.remember(ctx, user.ID, none)
			return none
		}
		if err != nil {
			logEnrichFailure(user.ID, err)
			return unknown
		}
		customerID = id
	}

	subs, err := u.payments.ListCustomerSubscriptions(ctx, customerID)
	if err != nil {
		logEnrichFailure(user.ID, err)
		return unknown
	}

	summary := subscriptionSummary{Status: subscriptionNone}
	if sub, ok := primarySubscription(subs); ok {
		summary.Status = sub.Status
		summary.Plan = sub.PlanName
		if p, found := u.plans.FindByProduct(sub.ProductID); found {
			summary.Plan = p.Name
		}
	}
	u.remember(ctx, user.ID, summary)
	return summary
}

// primarySubscription prefers the newest billing subscription, falling back
// to the newest of any status.
func primarySubscription(subs []domain.Subscription) (domain.Subscription, bool) {
	if len(subs) == 0 {
		return domain.Subscription{}, false
	}
	sorted := make([]domain.Subscription, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsLive() != sorted[j].IsLive() {
			return sorted[i].IsLive()
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[0], true
}

func logEnrichFailure(userID string, err error) {
	if errors.Is(err, domain.ErrProviderNotConfigured) {
		return
	}
	logger.Log.Warn("subscription enrichment failed", zap.String("user_id", userID), zap.Error(err))
}

func (u *adminUsecase) cached(ctx context.Context, userID string) (subscriptionSummary, bool) {
	var s subscriptionSummary
	if u.cache == nil {
		return s, false
	}
	raw, err := u.cache.Get(ctx, enrichCachePrefix+userID)
	if err != nil {
		return s, false
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Status == "" {
		return s, false
	}
	return s, true
}

func (u *adminUsecase) remember(ctx context.Context, userID string, s subscriptionSummary) {
	if u.cache == nil {
		return
	}
	b, _ := json.Marshal(s)
	if err := u.cache.Set(ctx, enrichCachePrefix+userID, string(b), enrichCacheTTL); err != nil {
		logger.Log.Debug("failed to cache subscription summary", zap.Error(err))
	}
}

func (u *adminUsecase) forget(ctx context.Context, userID string) {
	if u.cache == nil {
		return
	}
	_ = u.cache.Delete(ctx, enrichCachePrefix+userID)
}

// ============================================================================
// Helpers
// ============================================================================

func (u *adminUsecase) getUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, apperror.BadRequest("User ID is required")
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal(err)
	}
	return user, nil
}

func toAdminUser(user *domain.User, projectCount int64) domain.AdminUser {
	out := domain.AdminUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		ProjectCount: projectCount,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if user.StripeCustomerID != nil {
		out.StripeCustomerID = *user.StripeCustomerID
	}
	return out
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// requireAdmin checks the role set by the auth middleware.
// Works with both Gin context (c.Set) and standard context.WithValue
func requireAdmin(ctx context.Context) error {
	if domain.UserIDFromContext(ctx) == "" {
		return apperror.Unauthorized("User not authenticated")
	}
	if domain.RoleFromContext(ctx) != domain.RoleAdmin {
		return apperror.Forbidden("Admin access required")
	}
	return nil
}
