package usecase_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func userCtx(userID string, role domain.Role) context.Context {
	ctx := context.WithValue(context.Background(), domain.KeyUserID, userID)
	return context.WithValue(ctx, domain.KeyUserRole, string(role))
}

func assertAppError(t *testing.T, err error, code int) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// ============================================================================
// Mock Repositories
// ============================================================================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *MockUserRepo) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *MockUserRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockUserRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}
func (m *MockUserRepo) SetPassword(ctx context.Context, userID, passwordHash string, verifiedAt time.Time) error {
	return m.Called(ctx, userID, passwordHash, verifiedAt).Error(0)
}
func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *MockSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}
func (m *MockSessionRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockSessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockLoginTracker struct {
	mock.Mock
}

func (m *MockLoginTracker) IsBlocked(ctx context.Context, email, ip string) (bool, error) {
	args := m.Called(ctx, email, ip)
	return args.Bool(0), args.Error(1)
}
func (m *MockLoginTracker) RecordFailedAttempt(ctx context.Context, email, ip string) (bool, int, error) {
	args := m.Called(ctx, email, ip)
	return args.Bool(0), args.Int(1), args.Error(2)
}
func (m *MockLoginTracker) ClearAttempts(ctx context.Context, email, ip string) error {
	return m.Called(ctx, email, ip).Error(0)
}

type MockProjectRepo struct {
	mock.Mock
}

func (m *MockProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}
func (m *MockProjectRepo) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Project), args.Error(1)
}
func (m *MockProjectRepo) GetLatestByUser(ctx context.Context, userID string) (*domain.Project, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}
func (m *MockProjectRepo) ListAll(ctx context.Context) ([]domain.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Project), args.Error(1)
}
func (m *MockProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockProjectRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockProjectRepo) UpdateStatusBySubscription(ctx context.Context, subscriptionID, status, plan string, onlyFrom []string) (int64, error) {
	args := m.Called(ctx, subscriptionID, status, plan, onlyFrom)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockProjectRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockAdminRepo struct {
	mock.Mock
}

func (m *MockAdminRepo) CountUsersByRole(ctx context.Context) (map[domain.Role]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.Role]int64), args.Error(1)
}
func (m *MockAdminRepo) ListUsers(ctx context.Context, role domain.Role, page, pageSize int) ([]domain.AdminUser, int64, error) {
	args := m.Called(ctx, role, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.AdminUser), args.Get(1).(int64), args.Error(2)
}
func (m *MockAdminRepo) ListAllUsers(ctx context.Context) ([]domain.AdminUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AdminUser), args.Error(1)
}

// ============================================================================
// Mock Providers
// ============================================================================

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) EnsurePrice(ctx context.Context, plan domain.Plan) (string, error) {
	args := m.Called(ctx, plan)
	return args.String(0), args.Error(1)
}
func (m *MockPaymentProvider) CreateCheckoutSession(ctx context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}
func (m *MockPaymentProvider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}
func (m *MockPaymentProvider) ListCustomerSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Subscription), args.Error(1)
}
func (m *MockPaymentProvider) ListSubscriptions(ctx context.Context, params domain.SubscriptionListParams) (*domain.SubscriptionPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionPage), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) IsConfigured() bool {
	return m.Called().Bool(0)
}
func (m *MockMailer) SendWelcome(ctx context.Context, msg domain.WelcomeEmail) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *MockMailer) SendPaymentFailed(ctx context.Context, msg domain.PaymentFailedEmail) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *MockMailer) SendContact(ctx context.Context, msg domain.ContactEmail) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *MockMailer) SendPasswordReset(ctx context.Context, msg domain.PasswordResetEmail) error {
	return m.Called(ctx, msg).Error(0)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(payload []byte, signature string) (*domain.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

// ============================================================================
// Fakes
// ============================================================================

// fakeOnboardingRepo applies upserts the way the postgres repository does.
type fakeOnboardingRepo struct {
	mu    sync.Mutex
	rows  map[string]*domain.OnboardingResponse
	clock func() time.Time
}

func newFakeOnboardingRepo(clock func() time.Time) *fakeOnboardingRepo {
	return &fakeOnboardingRepo{rows: map[string]*domain.OnboardingResponse{}, clock: clock}
}

func (r *fakeOnboardingRepo) GetByUserID(_ context.Context, userID string) (*domain.OnboardingResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeOnboardingRepo) Upsert(_ context.Context, u domain.OnboardingUpsert) (*domain.OnboardingResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	row, ok := r.rows[u.UserID]
	if !ok {
		row = domain.NewOnboardingResponse("resp-"+u.UserID, u.UserID, u.ProjectID, now)
		r.rows[u.UserID] = row
	}
	row.ProjectID = u.ProjectID
	row.Apply(u, now)
	cp := *row
	return &cp, nil
}

func (r *fakeOnboardingRepo) CountByStatus(_ context.Context) (map[domain.CompletionStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.CompletionStatus]int64{}
	for _, row := range r.rows {
		out[row.CompletionStatus]++
	}
	return out, nil
}

// fakeProjectRepo keeps projects in memory, listed newest first.
type fakeProjectRepo struct {
	mu       sync.Mutex
	projects []domain.Project
}

func (r *fakeProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects = append(r.projects, *p)
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProjectRepo) ListByUser(_ context.Context, userID string) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Project{}
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeProjectRepo) GetLatestByUser(ctx context.Context, userID string) (*domain.Project, error) {
	list, _ := r.ListByUser(ctx, userID)
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return &list[0], nil
}

func (r *fakeProjectRepo) ListAll(_ context.Context) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Project{}, r.projects...), nil
}

func (r *fakeProjectRepo) Update(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.projects {
		if r.projects[i].ID == p.ID {
			r.projects[i] = *p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeProjectRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.projects {
		if r.projects[i].ID == id {
			r.projects = append(r.projects[:i], r.projects[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeProjectRepo) UpdateStatusBySubscription(_ context.Context, subscriptionID, status, plan string, onlyFrom []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.projects {
		p := &r.projects[i]
		if p.StripeSubscriptionID == nil || *p.StripeSubscriptionID != subscriptionID {
			continue
		}
		n++
		if plan != "" {
			p.Plan = plan
		}
		if len(onlyFrom) == 0 || contains(onlyFrom, p.Status) {
			p.Status = status
		}
	}
	return n, nil
}

func (r *fakeProjectRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, p := range r.projects {
		out[p.Status]++
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// fakeResetTokens keeps reset tokens in memory keyed by hash.
type fakeResetTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.ResetToken
}

func (r *fakeResetTokens) Replace(_ context.Context, t *domain.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens == nil {
		r.tokens = map[string]domain.ResetToken{}
	}
	for hash, existing := range r.tokens {
		if existing.Identifier == t.Identifier {
			delete(r.tokens, hash)
		}
	}
	r.tokens[t.TokenHash] = *t
	return nil
}

func (r *fakeResetTokens) Consume(_ context.Context, tokenHash string) (*domain.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(r.tokens, tokenHash)
	return &t, nil
}
