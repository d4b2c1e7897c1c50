package domain

import (
	"context"
	"time"
)

// ResetToken is a stored password reset token. Only the hash is persisted.
type ResetToken struct {
	Identifier string
	TokenHash  string
	ExpiresAt  time.Time
}

// VerificationTokenRepository stores single-use mailbox tokens.
type VerificationTokenRepository interface {
	// Replace drops any earlier tokens for the identifier and stores t.
	Replace(ctx context.Context, t *ResetToken) error
	// Consume deletes the token and returns it. ErrNotFound when unknown.
	Consume(ctx context.Context, tokenHash string) (*ResetToken, error)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}
