package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	draftKeyPrefix = "onboarding:draft:"
	DraftTTL       = 30 * 24 * time.Hour
)

// DraftStore persists onboarding drafts as JSON in a KV store.
type DraftStore struct {
	kv  domain.KVStore
	ttl time.Duration
}

func NewDraftStore(kv domain.KVStore) *DraftStore {
	return &DraftStore{kv: kv, ttl: DraftTTL}
}

// Load returns the stored draft. A missing or unreadable draft yields a
// fresh one; only store failures are returned as errors.
func (s *DraftStore) Load(ctx context.Context, userID string) (*domain.OnboardingDraft, error) {
	raw, err := s.kv.Get(ctx, draftKeyPrefix+userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewOnboardingDraft(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return decodeDraft(userID, raw), nil
}

// Update runs fn inside the store's atomic update, so concurrent autosaves
// for one user are applied one after another instead of overwriting.
func (s *DraftStore) Update(ctx context.Context, userID string, fn func(*domain.OnboardingDraft) error) (*domain.OnboardingDraft, error) {
	var out *domain.OnboardingDraft
	err := s.kv.Update(ctx, draftKeyPrefix+userID, s.ttl, func(raw string, found bool) (string, error) {
		draft := domain.NewOnboardingDraft()
		if found {
			draft = decodeDraft(userID, raw)
		}
		if err := fn(draft); err != nil {
			return "", err
		}
		b, err := json.Marshal(draft)
		if err != nil {
			return "", fmt.Errorf("failed to encode draft: %w", err)
		}
		out = draft
		return string(b), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDraft(userID, raw string) *domain.OnboardingDraft {
	var draft domain.OnboardingDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		logger.Log.Warn("discarding unreadable onboarding draft",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return domain.NewOnboardingDraft()
	}

	if draft.Sections == nil {
		draft.Sections = map[domain.OnboardingSection]json.RawMessage{}
	}
	draft.CompletedSteps = domain.NormalizeSteps(draft.CompletedSteps)
	if draft.CurrentStep < 1 {
		draft.CurrentStep = 1
	}
	return &draft
}

func (s *DraftStore) Save(ctx context.Context, userID string, draft *domain.OnboardingDraft) error {
	b, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return s.kv.Set(ctx, draftKeyPrefix+userID, string(b), s.ttl)
}

func (s *DraftStore) Delete(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, draftKeyPrefix+userID)
}
