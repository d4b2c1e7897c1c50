package postgres

import (
	"context"
	"fmt"

	"launchpad-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type verificationTokenRepo struct {
	db *pgxpool.Pool
}

func NewVerificationTokenRepository(db *pgxpool.Pool) domain.VerificationTokenRepository {
	return &verificationTokenRepo{db: db}
}

func (r *verificationTokenRepo) Replace(ctx context.Context, t *domain.ResetToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	if _, err := tx.Exec(ctx, `DELETE FROM verification_tokens WHERE identifier = $1`, t.Identifier); err != nil {
		return fmt.Errorf("failed to drop old tokens: %w", err)
	}
	query := `INSERT INTO verification_tokens (identifier, token_hash, expires_at) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, query, t.Identifier, t.TokenHash, t.ExpiresAt); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return tx.Commit(ctx)
}

// Consume is a single DELETE so two concurrent redemptions cannot both win.
func (r *verificationTokenRepo) Consume(ctx context.Context, tokenHash string) (*domain.ResetToken, error) {
	query := `DELETE FROM verification_tokens WHERE token_hash = $1
              RETURNING identifier, token_hash, expires_at`
	var t domain.ResetToken
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(&t.Identifier, &t.TokenHash, &t.ExpiresAt)
	if err != nil {
		return nil, notFound(err, "verification token")
	}
	return &t, nil
}
