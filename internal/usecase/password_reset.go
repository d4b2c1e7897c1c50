package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"
	"launchpad-backend/pkg/security"

	"go.uber.org/zap"
)

const (
	resetTokenBytes   = 32
	invalidResetToken = "Invalid or expired reset link"
)

// RequestPasswordReset mails a single-use link. The response never reveals
// whether the address has an account.
func (u *authUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	if u.resetTokens == nil || u.mailer == nil || !u.mailer.IsConfigured() {
		return apperror.Unavailable("Password reset is not available", nil)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Log.Info("password reset for unknown email", zap.String("email", security.MaskEmail(email)))
			return nil
		}
		return apperror.Internal(err)
	}

	token, err := security.GenerateToken(resetTokenBytes)
	if err != nil {
		return apperror.Internal(err)
	}
	err = u.resetTokens.Replace(ctx, &domain.ResetToken{
		Identifier: user.ID,
		TokenHash:  security.HashToken(token),
		ExpiresAt:  u.now().UTC().Add(u.resetTTL),
	})
	if err != nil {
		return apperror.Internal(err)
	}

	err = u.mailer.SendPasswordReset(ctx, domain.PasswordResetEmail{
		To:        user.Email,
		Name:      user.Name,
		ResetURL:  u.baseURL + "/reset-password?token=" + url.QueryEscape(token),
		ExpiresIn: u.resetTTL,
	})
	if err != nil {
		// Same response as success so the address is not confirmed
		logger.Log.Warn("failed to send password reset email", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	logger.Log.Info("password reset requested", zap.String("user_id", user.ID))
	return nil
}

// ResetPassword redeems a mailed token. Redeeming proves the mailbox, so
// the email is marked verified and allow-listed addresses become ADMIN.
// Every earlier session of the user is revoked.
func (u *authUsecase) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	if u.resetTokens == nil {
		return nil, apperror.Unavailable("Password reset is not available", nil)
	}

	stored, err := u.resetTokens.Consume(ctx, security.HashToken(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.BadRequest(invalidResetToken)
		}
		return nil, apperror.Internal(err)
	}
	now := u.now().UTC()
	if !now.Before(stored.ExpiresAt) {
		return nil, apperror.BadRequest(invalidResetToken)
	}

	user, err := u.userRepo.GetByID(ctx, stored.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.BadRequest(invalidResetToken)
		}
		return nil, apperror.Internal(err)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := u.userRepo.SetPassword(ctx, user.ID, hash, now); err != nil {
		return nil, asAppError(err)
	}
	user.PasswordHash = &hash
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &now
	}

	if err := u.sessionRepo.DeleteByUser(ctx, user.ID); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := u.promoteIfAllowed(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info("password reset", zap.String("user_id", user.ID))
	return u.openSession(ctx, user, meta)
}
