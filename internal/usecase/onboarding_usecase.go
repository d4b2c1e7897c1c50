package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"

	"go.uber.org/zap"
)

type onboardingUsecase struct {
	repo        domain.OnboardingRepository
	userRepo    domain.UserRepository
	projectRepo domain.ProjectRepository
	drafts      domain.OnboardingDraftStore
	now         func() time.Time
}

func NewOnboardingUsecase(
	repo domain.OnboardingRepository,
	userRepo domain.UserRepository,
	projectRepo domain.ProjectRepository,
	drafts domain.OnboardingDraftStore,
) domain.OnboardingUsecase {
	return &onboardingUsecase{
		repo:        repo,
		userRepo:    userRepo,
		projectRepo: projectRepo,
		drafts:      drafts,
		now:         time.Now,
	}
}

func currentUserID(ctx context.Context) (string, error) {
	userID := domain.UserIDFromContext(ctx)
	if userID == "" {
		return "", apperror.Unauthorized("User not authenticated")
	}
	return userID, nil
}

// ============================================================================
// Sync endpoint
// ============================================================================

func (u *onboardingUsecase) Save(ctx context.Context, req *domain.SaveOnboardingRequest) (*domain.OnboardingData, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := u.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal(err)
	}

	project, err := u.projectRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("No project found for user")
		}
		return nil, apperror.Internal(err)
	}

	for _, step := range req.CompletedSteps {
		if _, ok := StepFor(step); !ok {
			return nil, apperror.BadRequest(fmt.Sprintf("completedSteps contains invalid step %d", step))
		}
	}

	supplied := req.SuppliedSections()
	sections := make(map[domain.OnboardingSection]string, len(supplied))
	for section, raw := range supplied {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, apperror.BadRequest(fmt.Sprintf("%s is not valid JSON", section))
		}
		sections[section] = compact.String()
	}

	resp, err := u.repo.Upsert(ctx, domain.OnboardingUpsert{
		UserID:         userID,
		ProjectID:      project.ID,
		Sections:       sections,
		CompletedSteps: req.CompletedSteps,
		Status:         domain.DeriveCompletionStatus(req.IsComplete, len(sections)),
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	logger.Log.Info("onboarding saved",
		zap.String("user_id", userID),
		zap.String("project_id", project.ID),
		zap.Int("sections", len(sections)),
		zap.String("status", string(resp.CompletionStatus)),
	)
	return resp.Data(), nil
}

func (u *onboardingUsecase) Get(ctx context.Context) (*domain.OnboardingData, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := u.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EmptyOnboardingData(), nil
		}
		return nil, apperror.Internal(err)
	}
	return resp.Data(), nil
}

// ============================================================================
// Wizard draft
// ============================================================================

func (u *onboardingUsecase) Steps() []domain.StepInfo {
	return stepInfos()
}

func (u *onboardingUsecase) GetDraft(ctx context.Context) (*domain.OnboardingDraft, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	draft, err := u.drafts.Load(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return draft, nil
}

func (u *onboardingUsecase) ReplaceDraft(ctx context.Context, draft *domain.OnboardingDraft) (*domain.OnboardingDraft, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	if draft.CurrentStep == 0 {
		draft.CurrentStep = 1
	}
	if _, ok := StepFor(draft.CurrentStep); !ok {
		return nil, apperror.BadRequest(fmt.Sprintf("currentStep must be between 1 and %d", len(OnboardingSteps)))
	}
	for _, step := range draft.CompletedSteps {
		if _, ok := StepFor(step); !ok {
			return nil, apperror.BadRequest(fmt.Sprintf("completedSteps contains invalid step %d", step))
		}
	}
	for section := range draft.Sections {
		if !section.IsValid() {
			return nil, apperror.BadRequest(fmt.Sprintf("unknown section %q", section))
		}
	}
	if draft.Sections == nil {
		draft.Sections = map[domain.OnboardingSection]json.RawMessage{}
	}
	draft.CompletedSteps = domain.NormalizeSteps(draft.CompletedSteps)

	return u.store(ctx, userID, draft)
}

func (u *onboardingUsecase) SetStep(ctx context.Context, step int) (*domain.OnboardingDraft, error) {
	if _, ok := StepFor(step); !ok {
		return nil, apperror.BadRequest(fmt.Sprintf("step must be between 1 and %d", len(OnboardingSteps)))
	}
	return u.mutate(ctx, func(d *domain.OnboardingDraft) error {
		d.CurrentStep = step
		return nil
	})
}

// UpdateSection merges the top-level keys of partial into the stored
// section object.
func (u *onboardingUsecase) UpdateSection(ctx context.Context, section domain.OnboardingSection, partial json.RawMessage) (*domain.OnboardingDraft, error) {
	if !section.IsValid() {
		return nil, apperror.BadRequest(fmt.Sprintf("unknown section %q", section))
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(partial, &patch); err != nil || patch == nil {
		return nil, apperror.BadRequest("section update must be a JSON object")
	}

	return u.mutate(ctx, func(d *domain.OnboardingDraft) error {
		merged := map[string]json.RawMessage{}
		if existing := d.Sections[section]; len(existing) > 0 {
			// A non-object value is replaced wholesale
			_ = json.Unmarshal(existing, &merged)
			if merged == nil {
				merged = map[string]json.RawMessage{}
			}
		}
		for k, v := range patch {
			merged[k] = v
		}
		b, err := json.Marshal(merged)
		if err != nil {
			return apperror.Internal(err)
		}
		d.Sections[section] = b
		return nil
	})
}

// CompleteStep marks step done once its required fields are present and
// moves the cursor forward when the user is on that step.
func (u *onboardingUsecase) CompleteStep(ctx context.Context, step int) (*domain.OnboardingDraft, error) {
	if _, ok := StepFor(step); !ok {
		return nil, apperror.BadRequest(fmt.Sprintf("step must be between 1 and %d", len(OnboardingSteps)))
	}
	return u.mutate(ctx, func(d *domain.OnboardingDraft) error {
		if err := CanAdvance(step, d); err != nil {
			return apperror.BadRequest(err.Error())
		}
		d.MarkStepCompleted(step)
		if d.CurrentStep == step && step < len(OnboardingSteps) {
			d.CurrentStep = step + 1
		}
		return nil
	})
}

func (u *onboardingUsecase) ResetDraft(ctx context.Context) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	if err := u.drafts.Delete(ctx, userID); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// SyncDraft pushes the draft through Save. A completing sync requires every
// step to validate and clears the draft afterwards.
func (u *onboardingUsecase) SyncDraft(ctx context.Context, isComplete bool) (*domain.OnboardingData, error) {
	draft, err := u.GetDraft(ctx)
	if err != nil {
		return nil, err
	}

	if isComplete {
		for _, step := range OnboardingSteps {
			if err := CanAdvance(step.Number, draft); err != nil {
				return nil, apperror.BadRequest(err.Error())
			}
		}
	}

	req := &domain.SaveOnboardingRequest{
		BusinessInfo:        draft.Sections[domain.SectionBusinessInfo],
		Objectives:          draft.Sections[domain.SectionObjectives],
		ContentArchitecture: draft.Sections[domain.SectionContentArchitecture],
		BrandDesign:         draft.Sections[domain.SectionBrandDesign],
		TechnicalSetup:      draft.Sections[domain.SectionTechnicalSetup],
		ProjectPlanning:     draft.Sections[domain.SectionProjectPlanning],
		CompletedSteps:      draft.CompletedSteps,
		IsComplete:          isComplete,
	}
	if isComplete {
		all := make([]int, 0, len(OnboardingSteps))
		for _, step := range OnboardingSteps {
			all = append(all, step.Number)
		}
		req.CompletedSteps = all
	}

	data, err := u.Save(ctx, req)
	if err != nil {
		return nil, err
	}

	if isComplete {
		if err := u.drafts.Delete(ctx, domain.UserIDFromContext(ctx)); err != nil {
			logger.Log.Warn("failed to clear onboarding draft", zap.Error(err))
		}
	}
	return data, nil
}

func (u *onboardingUsecase) mutate(ctx context.Context, fn func(*domain.OnboardingDraft) error) (*domain.OnboardingDraft, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	draft, err := u.drafts.Update(ctx, userID, func(d *domain.OnboardingDraft) error {
		if err := fn(d); err != nil {
			return err
		}
		d.LastUpdated = u.now().UTC()
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return draft, nil
}

func (u *onboardingUsecase) store(ctx context.Context, userID string, draft *domain.OnboardingDraft) (*domain.OnboardingDraft, error) {
	draft.LastUpdated = u.now().UTC()
	if err := u.drafts.Save(ctx, userID, draft); err != nil {
		return nil, apperror.Internal(err)
	}
	return draft, nil
}
