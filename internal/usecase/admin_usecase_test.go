package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/internal/repository/cache"
	"launchpad-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	uc         domain.AdminUsecase
	adminRepo  *MockAdminRepo
	users      *MockUserRepo
	projects   *fakeProjectRepo
	onboarding *fakeOnboardingRepo
	payments   *MockPaymentProvider
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(store.Close)

	f := &adminFixture{
		adminRepo:  new(MockAdminRepo),
		users:      new(MockUserRepo),
		projects:   &fakeProjectRepo{},
		onboarding: newFakeOnboardingRepo(time.Now),
		payments:   new(MockPaymentProvider),
	}
	f.uc = usecase.NewAdminUsecase(usecase.AdminDeps{
		AdminRepo:      f.adminRepo,
		UserRepo:       f.users,
		ProjectRepo:    f.projects,
		OnboardingRepo: f.onboarding,
		Payments:       f.payments,
		Plans:          domain.DefaultPlans("prod_rocket", "prod_galaxy"),
		Cache:          store,
	})
	return f
}

var adminCtx = userCtx("admin-1", domain.RoleAdmin)

func TestAdmin_RequiresAdmin(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.uc.GetStats(context.Background())
	assertAppError(t, err, http.StatusUnauthorized)

	_, err = f.uc.ListUsers(userCtx("u1", domain.RoleUser), "", 1, 10)
	assertAppError(t, err, http.StatusForbidden)

	_, err = f.uc.CreateProject(context.Background(), "u1", domain.CreateProjectRequest{Name: "x"})
	assertAppError(t, err, http.StatusUnauthorized)

	f.adminRepo.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAdmin_CreateProjectThenList(t *testing.T) {
	f := newAdminFixture(t)
	f.users.On("GetByID", mock.Anything, "u1").Return(&domain.User{ID: "u1"}, nil)
	f.users.On("GetByID", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	require.NoError(t, f.projects.Create(context.Background(), &domain.Project{
		ID: "older", UserID: "u1", Name: "Rocket website", CreatedAt: time.Now().Add(-24 * time.Hour),
	}))

	created, err := f.uc.CreateProject(adminCtx, "u1", domain.CreateProjectRequest{Name: " Landing refresh ", Progress: 10})
	require.NoError(t, err)
	assert.Equal(t, "Landing refresh", created.Name)
	assert.Equal(t, domain.ProjectStatusOnboarding, created.Status)

	list, err := f.uc.ListUserProjects(adminCtx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID, "newest first")
	assert.Equal(t, "older", list[1].ID)

	_, err = f.uc.CreateProject(adminCtx, "ghost", domain.CreateProjectRequest{Name: "x"})
	assertAppError(t, err, http.StatusNotFound)
}

func TestAdmin_UpdateAndDeleteProject(t *testing.T) {
	f := newAdminFixture(t)
	require.NoError(t, f.projects.Create(context.Background(), &domain.Project{ID: "p1", UserID: "u1", Name: "Site", Status: "Onboarding"}))

	status, progress := "In design", 40
	updated, err := f.uc.UpdateProject(adminCtx, "p1", domain.UpdateProjectRequest{Status: &status, Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, "In design", updated.Status)
	assert.Equal(t, 40, updated.Progress)
	assert.Equal(t, "Site", updated.Name)

	_, err = f.uc.UpdateProject(adminCtx, "missing", domain.UpdateProjectRequest{})
	assertAppError(t, err, http.StatusNotFound)

	require.NoError(t, f.uc.DeleteProject(adminCtx, "p1"))
	assertAppError(t, f.uc.DeleteProject(adminCtx, "p1"), http.StatusNotFound)
}

func TestAdmin_ListUsersEnrichment(t *testing.T) {
	f := newAdminFixture(t)
	users := []domain.AdminUser{
		{ID: "u1", Email: "paying@example.com", StripeCustomerID: "cus_1"},
		{ID: "u2", Email: "lead@example.com"},
		{ID: "u3", Email: "flaky@example.com", StripeCustomerID: "cus_3"},
	}
	f.adminRepo.On("ListUsers", mock.Anything, domain.Role(""), 1, 10).Return(users, int64(3), nil)

	f.payments.On("ListCustomerSubscriptions", mock.Anything, "cus_1").Return([]domain.Subscription{
		{ID: "sub_old", Status: "canceled", PlanName: "Rocket", ProductID: "prod_rocket", CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "sub_new", Status: "active", PlanName: "Galaxy", ProductID: "prod_galaxy", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}, nil).Once()
	f.payments.On("FindCustomerIDByEmail", mock.Anything, "lead@example.com").Return("", domain.ErrNotFound).Once()
	f.payments.On("ListCustomerSubscriptions", mock.Anything, "cus_3").Return(nil, errors.New("timeout"))

	page, err := f.uc.ListUsers(adminCtx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)

	byID := map[string]domain.AdminUser{}
	for _, u := range page.Data {
		byID[u.ID] = u
	}
	assert.Equal(t, "active", byID["u1"].SubscriptionStatus, "live subscription wins over newer cancelled one")
	assert.Equal(t, "Galaxy", byID["u1"].PlanName)
	assert.Equal(t, "none", byID["u2"].SubscriptionStatus)
	assert.Equal(t, domain.SubscriptionStatusUnknown, byID["u3"].SubscriptionStatus)

	t.Run("successful lookups are cached", func(t *testing.T) {
		page, err := f.uc.ListUsers(adminCtx, "", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, "active", page.Data[0].SubscriptionStatus)
		f.payments.AssertNumberOfCalls(t, "FindCustomerIDByEmail", 1)
		f.payments.AssertNumberOfCalls(t, "ListCustomerSubscriptions", 3)
	})

	t.Run("invalid role filter", func(t *testing.T) {
		_, err := f.uc.ListUsers(adminCtx, "OWNER", 1, 10)
		assertAppError(t, err, http.StatusBadRequest)
	})
}

func TestAdmin_GetStats(t *testing.T) {
	f := newAdminFixture(t)
	f.adminRepo.On("CountUsersByRole", mock.Anything).Return(map[domain.Role]int64{domain.RoleAdmin: 1, domain.RoleUser: 4}, nil)
	require.NoError(t, f.projects.Create(context.Background(), &domain.Project{ID: "p1", Status: "Active"}))
	require.NoError(t, f.projects.Create(context.Background(), &domain.Project{ID: "p2", Status: "Onboarding"}))

	f.payments.On("ListSubscriptions", mock.Anything, domain.SubscriptionListParams{Status: "active", Limit: 100}).
		Return(&domain.SubscriptionPage{
			Data:       []domain.Subscription{{ID: "s1", AmountCents: 99700, Currency: "usd", Interval: "month"}},
			HasMore:    true,
			NextCursor: "s1",
		}, nil).Once()
	f.payments.On("ListSubscriptions", mock.Anything, domain.SubscriptionListParams{Status: "active", Limit: 100, StartingAfter: "s1"}).
		Return(&domain.SubscriptionPage{
			Data: []domain.Subscription{{ID: "s2", AmountCents: 1200000, Currency: "usd", Interval: "year"}},
		}, nil).Once()

	stats, err := f.uc.GetStats(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.UsersByRole.Admin)
	assert.Equal(t, int64(2), stats.TotalProjects)
	assert.True(t, stats.Billing.Available)
	assert.Equal(t, int64(2), stats.Billing.ActiveSubscriptions)
	assert.Equal(t, int64(99700+100000), stats.Billing.MonthlyRecurringRevenue)
	assert.Equal(t, "healthy", stats.SystemHealth.Status)

	t.Run("provider outage degrades instead of failing", func(t *testing.T) {
		f.payments.On("ListSubscriptions", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		stats, err := f.uc.GetStats(adminCtx)
		require.NoError(t, err)
		assert.False(t, stats.Billing.Available)
		assert.Equal(t, "degraded", stats.SystemHealth.Status)
	})
}

func TestAdmin_Users(t *testing.T) {
	f := newAdminFixture(t)

	t.Run("cannot delete self", func(t *testing.T) {
		assertAppError(t, f.uc.DeleteUser(adminCtx, "admin-1"), http.StatusBadRequest)
		f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("delete missing user", func(t *testing.T) {
		f.users.On("Delete", mock.Anything, "ghost").Return(domain.ErrNotFound).Once()
		assertAppError(t, f.uc.DeleteUser(adminCtx, "ghost"), http.StatusNotFound)
	})

	t.Run("create defaults to USER", func(t *testing.T) {
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "new@example.com" && u.Role == domain.RoleUser && u.PasswordHash == nil
		})).Return(nil).Once()

		created, err := f.uc.CreateUser(adminCtx, domain.CreateUserRequest{Email: "New@Example.com", Name: "New"})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, created.Role)
	})

	t.Run("update applies only supplied fields", func(t *testing.T) {
		f.users.On("GetByID", mock.Anything, "u9").Return(&domain.User{ID: "u9", Email: "old@example.com", Name: "Old", Role: domain.RoleUser}, nil).Once()
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "old@example.com" && u.Name == "Renamed" && u.Role == domain.RoleAdmin
		})).Return(nil).Once()

		updated, err := f.uc.UpdateUser(adminCtx, "u9", domain.UpdateUserRequest{Name: "Renamed", Role: domain.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
	})

	t.Run("detail includes onboarding", func(t *testing.T) {
		f.users.On("GetByID", mock.Anything, "u7").Return(&domain.User{ID: "u7", Email: "u7@example.com"}, nil).Once()
		f.payments.On("FindCustomerIDByEmail", mock.Anything, "u7@example.com").Return("", domain.ErrNotFound).Once()
		_, err := f.onboarding.Upsert(context.Background(), domain.OnboardingUpsert{
			UserID: "u7", ProjectID: "p7",
			Sections: map[domain.OnboardingSection]string{domain.SectionObjectives: `{"primaryGoal":"sales"}`},
			Status:   domain.CompletionInProgress,
		})
		require.NoError(t, err)

		detail, err := f.uc.GetUser(adminCtx, "u7")
		require.NoError(t, err)
		require.NotNil(t, detail.Onboarding)
		assert.JSONEq(t, `{"primaryGoal":"sales"}`, string(detail.Onboarding.Objectives))
		assert.Equal(t, "none", detail.User.SubscriptionStatus)
		assert.Empty(t, detail.Projects)
	})
}

func TestAdmin_Export(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.uc.Export(adminCtx, "pdf")
	assertAppError(t, err, http.StatusBadRequest)

	f.adminRepo.On("ListAllUsers", mock.Anything).Return([]domain.AdminUser{{ID: "u1", Email: "a@example.com"}}, nil)
	f.payments.On("FindCustomerIDByEmail", mock.Anything, mock.Anything).Return("", domain.ErrProviderNotConfigured)
	require.NoError(t, f.projects.Create(context.Background(), &domain.Project{ID: "p1", UserID: "u1", Name: "Site"}))

	file, err := f.uc.Export(adminCtx, "csv")
	require.NoError(t, err)
	assert.Contains(t, file.Filename, ".csv")
	assert.Contains(t, string(file.Data), "a@example.com")

	file, err = f.uc.Export(adminCtx, "xlsx")
	require.NoError(t, err)
	assert.Contains(t, file.Filename, ".xlsx")
	assert.NotEmpty(t, file.Data)
}
