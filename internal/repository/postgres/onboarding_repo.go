package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type onboardingRepo struct {
	db *pgxpool.Pool
}

func NewOnboardingRepository(db *pgxpool.Pool) domain.OnboardingRepository {
	return &onboardingRepo{db: db}
}

const onboardingSelect = `
	SELECT id, user_id, project_id,
	       business_info, objectives, content_architecture,
	       brand_design, technical_setup, project_planning,
	       completed_steps, completion_status, submitted_at, created_at, updated_at
	FROM onboarding_responses`

func scanOnboarding(row pgx.Row) (*domain.OnboardingResponse, error) {
	var (
		resp     domain.OnboardingResponse
		sections [6]*string
		steps    []int
	)
	err := row.Scan(
		&resp.ID, &resp.UserID, &resp.ProjectID,
		&sections[0], &sections[1], &sections[2], &sections[3], &sections[4], &sections[5],
		&steps, &resp.CompletionStatus, &resp.SubmittedAt, &resp.CreatedAt, &resp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	resp.Sections = make(map[domain.OnboardingSection]*string, len(sections))
	for i, section := range domain.AllSections() {
		resp.Sections[section] = sections[i]
	}
	resp.CompletedSteps = domain.NormalizeSteps(steps)
	return &resp, nil
}

func (r *onboardingRepo) GetByUserID(ctx context.Context, userID string) (*domain.OnboardingResponse, error) {
	resp, err := scanOnboarding(r.db.QueryRow(ctx, onboardingSelect+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, "onboarding response")
	}
	return resp, nil
}

// Upsert serializes concurrent saves for the same user: the row is created
// if missing, then locked, merged in Go and written back in one transaction.
func (r *onboardingRepo) Upsert(ctx context.Context, u domain.OnboardingUpsert) (*domain.OnboardingResponse, error) {
	now := time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	_, err = tx.Exec(ctx, `
		INSERT INTO onboarding_responses (id, user_id, project_id, completed_steps, completion_status, created_at, updated_at)
		VALUES ($1, $2, $3, '{}', $4, $5, $5)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), u.UserID, u.ProjectID, string(domain.CompletionPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert onboarding response: %w", err)
	}

	resp, err := scanOnboarding(tx.QueryRow(ctx, onboardingSelect+` WHERE user_id = $1 FOR UPDATE`, u.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock onboarding response: %w", err)
	}

	resp.ProjectID = u.ProjectID
	resp.Apply(u, now)

	_, err = tx.Exec(ctx, `
		UPDATE onboarding_responses
		SET project_id = $2,
		    business_info = $3, objectives = $4, content_architecture = $5,
		    brand_design = $6, technical_setup = $7, project_planning = $8,
		    completed_steps = $9, completion_status = $10, submitted_at = $11, updated_at = $12
		WHERE id = $1`,
		resp.ID, resp.ProjectID,
		resp.Sections[domain.SectionBusinessInfo],
		resp.Sections[domain.SectionObjectives],
		resp.Sections[domain.SectionContentArchitecture],
		resp.Sections[domain.SectionBrandDesign],
		resp.Sections[domain.SectionTechnicalSetup],
		resp.Sections[domain.SectionProjectPlanning],
		resp.CompletedSteps, string(resp.CompletionStatus), resp.SubmittedAt, resp.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update onboarding response: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit onboarding response: %w", err)
	}
	return resp, nil
}

func (r *onboardingRepo) CountByStatus(ctx context.Context) (map[domain.CompletionStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT completion_status, COUNT(*) FROM onboarding_responses GROUP BY completion_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count onboarding responses: %w", err)
	}
	defer rows.Close()

	counts := map[domain.CompletionStatus]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan onboarding count: %w", err)
		}
		counts[domain.CompletionStatus(status)] = n
	}
	return counts, rows.Err()
}
