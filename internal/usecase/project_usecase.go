package usecase

import (
	"context"
	"errors"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
)

type projectUsecase struct {
	repo domain.ProjectRepository
}

func NewProjectUsecase(repo domain.ProjectRepository) domain.ProjectUsecase {
	return &projectUsecase{repo: repo}
}

// ListMine returns the caller's projects, newest first
func (u *projectUsecase) ListMine(ctx context.Context) ([]domain.Project, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := u.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

// GetMine hides other users' projects behind a 404
func (u *projectUsecase) GetMine(ctx context.Context, projectID string) (*domain.Project, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	project, err := u.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("Project not found")
		}
		return nil, apperror.Internal(err)
	}
	if project.UserID != userID {
		return nil, apperror.NotFound("Project not found")
	}
	return project, nil
}
