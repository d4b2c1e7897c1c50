package postgres

import (
	"context"
	"errors"
	"fmt"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type projectRepo struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) domain.ProjectRepository {
	return &projectRepo{db: db}
}

const projectColumns = `id, user_id, name, status, progress, current_phase, estimated_delivery,
	plan, stripe_subscription_id, checkout_session_id, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Status, &p.Progress, &p.CurrentPhase, &p.EstimatedDelivery,
		&p.Plan, &p.StripeSubscriptionID, &p.CheckoutSessionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) queryProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

func (r *projectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, p.Name, p.Status, p.Progress, p.CurrentPhase, p.EstimatedDelivery,
		p.Plan, p.StripeSubscriptionID, p.CheckoutSessionID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperror.NotFound("User not found")
		}
		if isUniqueViolation(err) {
			return apperror.Conflict("Project already exists for this checkout")
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

// ListByUser orders by created_at then id so projects created in the same
// instant still come back in a stable order.
func (r *projectRepo) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	return r.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

func (r *projectRepo) GetLatestByUser(ctx context.Context, userID string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1
              ORDER BY created_at DESC, id DESC LIMIT 1`
	p, err := scanProject(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

func (r *projectRepo) ListAll(ctx context.Context) ([]domain.Project, error) {
	return r.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
}

func (r *projectRepo) Update(ctx context.Context, p *domain.Project) error {
	query := `UPDATE projects
              SET name = $2, status = $3, progress = $4, current_phase = $5,
                  estimated_delivery = $6, plan = $7, updated_at = $8
              WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Status, p.Progress, p.CurrentPhase, p.EstimatedDelivery, p.Plan, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *projectRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *projectRepo) UpdateStatusBySubscription(ctx context.Context, subscriptionID, status, plan string, onlyFrom []string) (int64, error) {
	query := `UPDATE projects
              SET status = CASE
                      WHEN COALESCE(cardinality($4::text[]), 0) = 0 OR status = ANY($4::text[]) THEN $2
                      ELSE status
                  END,
                  plan = COALESCE(NULLIF($3, ''), plan),
                  updated_at = NOW()
              WHERE stripe_subscription_id = $1`
	tag, err := r.db.Exec(ctx, query, subscriptionID, status, plan, onlyFrom)
	if err != nil {
		return 0, fmt.Errorf("failed to update project status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *projectRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan project count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
