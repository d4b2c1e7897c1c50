package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"launchpad-backend/internal/domain"
	"launchpad-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Projects
// ============================================================================

func TestProject_ListMine(t *testing.T) {
	repo := new(MockProjectRepo)
	uc := usecase.NewProjectUsecase(repo)

	_, err := uc.ListMine(context.Background())
	assertAppError(t, err, http.StatusUnauthorized)

	repo.On("ListByUser", mock.Anything, "u1").Return(nil, nil).Once()
	projects, err := uc.ListMine(userCtx("u1", domain.RoleUser))
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestProject_GetMineHidesOtherUsers(t *testing.T) {
	repo := new(MockProjectRepo)
	uc := usecase.NewProjectUsecase(repo)
	repo.On("GetByID", mock.Anything, "p1").Return(&domain.Project{ID: "p1", UserID: "u1"}, nil)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	project, err := uc.GetMine(userCtx("u1", domain.RoleUser), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", project.ID)

	_, err = uc.GetMine(userCtx("u2", domain.RoleUser), "p1")
	assertAppError(t, err, http.StatusNotFound)

	_, err = uc.GetMine(userCtx("u1", domain.RoleUser), "missing")
	assertAppError(t, err, http.StatusNotFound)
}

// ============================================================================
// Contact
// ============================================================================

func TestContact(t *testing.T) {
	valid := func() *domain.ContactRequest {
		return &domain.ContactRequest{Name: " Ada ", Email: "ada@example.com", Subject: "Hello", Message: "Need a site"}
	}

	t.Run("whitespace-only field", func(t *testing.T) {
		mailer := new(MockMailer)
		req := valid()
		req.Message = "   "
		err := usecase.NewContactUsecase(mailer).SendContactMessage(context.Background(), req)
		assertAppError(t, err, http.StatusBadRequest)
		mailer.AssertNotCalled(t, "SendContact", mock.Anything, mock.Anything)
	})

	t.Run("mailer not configured", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("IsConfigured").Return(false)
		err := usecase.NewContactUsecase(mailer).SendContactMessage(context.Background(), valid())
		assertAppError(t, err, http.StatusServiceUnavailable)
	})

	t.Run("sends trimmed message", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("IsConfigured").Return(true)
		mailer.On("SendContact", mock.Anything, domain.ContactEmail{
			SenderName: "Ada", SenderEmail: "ada@example.com", Subject: "Hello", Message: "Need a site",
		}).Return(nil)
		require.NoError(t, usecase.NewContactUsecase(mailer).SendContactMessage(context.Background(), valid()))
		mailer.AssertExpectations(t)
	})

	t.Run("provider failure", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("IsConfigured").Return(true)
		mailer.On("SendContact", mock.Anything, mock.Anything).Return(errors.New("resend: 500"))
		err := usecase.NewContactUsecase(mailer).SendContactMessage(context.Background(), valid())
		assertAppError(t, err, http.StatusBadGateway)
	})
}

// ============================================================================
// Health
// ============================================================================

func TestHealth(t *testing.T) {
	up := usecase.PingFunc(func(context.Context) error { return nil })
	down := usecase.PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	assert.Equal(t, map[string]string{"status": "ok", "database": "up", "redis": "disabled"},
		usecase.NewHealthUsecase(up, nil).Check(context.Background()))

	assert.Equal(t, map[string]string{"status": "ok", "database": "up", "redis": "up"},
		usecase.NewHealthUsecase(up, up).Check(context.Background()))

	assert.Equal(t, map[string]string{"status": "degraded", "database": "up", "redis": "down"},
		usecase.NewHealthUsecase(up, down).Check(context.Background()))

	assert.Equal(t, "degraded", usecase.NewHealthUsecase(down, nil).Check(context.Background())["status"])
}
