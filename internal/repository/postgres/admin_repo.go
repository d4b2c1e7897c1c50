package postgres

import (
	"context"
	"fmt"

	"launchpad-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type adminRepo struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) domain.AdminRepository {
	return &adminRepo{db: db}
}

const adminUserSelect = `
	SELECT u.id, u.email, u.name, u.role, COALESCE(u.stripe_customer_id, ''),
	       u.created_at, u.updated_at, COUNT(p.id)
	FROM users u
	LEFT JOIN projects p ON p.user_id = u.id`

// CountUsersByRole returns the number of users per role
func (r *adminRepo) CountUsersByRole(ctx context.Context) (map[domain.Role]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	defer rows.Close()

	counts := map[domain.Role]int64{}
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		counts[domain.Role(role)] = n
	}
	return counts, rows.Err()
}

// ListUsers returns paginated users with their project counts
func (r *adminRepo) ListUsers(ctx context.Context, role domain.Role, page, pageSize int) ([]domain.AdminUser, int64, error) {
	offset := (page - 1) * pageSize

	var (
		where string
		args  []any
	)
	if role != "" {
		where = " WHERE u.role = $1"
		args = append(args, string(role))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM users u` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`%s%s
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d`, adminUserSelect, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	users, err := r.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListAllUsers is used by the spreadsheet export
func (r *adminRepo) ListAllUsers(ctx context.Context) ([]domain.AdminUser, error) {
	return r.queryUsers(ctx, adminUserSelect+` GROUP BY u.id ORDER BY u.created_at DESC`)
}

func (r *adminRepo) queryUsers(ctx context.Context, query string, args ...any) ([]domain.AdminUser, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []domain.AdminUser{}
	for rows.Next() {
		var u domain.AdminUser
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.Role, &u.StripeCustomerID,
			&u.CreatedAt, &u.UpdatedAt, &u.ProjectCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}
