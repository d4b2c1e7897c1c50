package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/auth"
	"launchpad-backend/pkg/logger"
	"launchpad-backend/pkg/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid email or password"

// AuthDeps groups the collaborators of the auth use case.
type AuthDeps struct {
	UserRepo     domain.UserRepository
	SessionRepo  domain.SessionRepository
	LoginTracker domain.LoginTracker
	Sessions     *auth.SessionIssuer
	AutoLogin    *auth.AutoLoginSigner
	Tokens       domain.KVStore
	// IsAdminEmail promotes allow-listed accounts to ADMIN once their
	// mailbox is verified.
	IsAdminEmail func(email string) bool
	ResetTokens  domain.VerificationTokenRepository
	Mailer       domain.Mailer
	AppBaseURL   string
	ResetTTL     time.Duration
}

type authUsecase struct {
	userRepo     domain.UserRepository
	sessionRepo  domain.SessionRepository
	tracker      domain.LoginTracker
	sessions     *auth.SessionIssuer
	autoLogin    *auth.AutoLoginSigner
	tokens       domain.KVStore
	isAdminEmail func(string) bool
	resetTokens  domain.VerificationTokenRepository
	mailer       domain.Mailer
	baseURL      string
	resetTTL     time.Duration
	now          func() time.Time
}

func NewAuthUsecase(deps AuthDeps) domain.AuthUsecase {
	isAdmin := deps.IsAdminEmail
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	resetTTL := deps.ResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &authUsecase{
		userRepo:     deps.UserRepo,
		sessionRepo:  deps.SessionRepo,
		tracker:      deps.LoginTracker,
		sessions:     deps.Sessions,
		autoLogin:    deps.AutoLogin,
		tokens:       deps.Tokens,
		isAdminEmail: isAdmin,
		resetTokens:  deps.ResetTokens,
		mailer:       deps.Mailer,
		baseURL:      strings.TrimRight(deps.AppBaseURL, "/"),
		resetTTL:     resetTTL,
		now:          time.Now,
	}
}

func (u *authUsecase) Register(ctx context.Context, req *domain.RegisterRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := u.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("User with this email already exists")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, apperror.Internal(err)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	// Never ADMIN here: nothing proves the caller owns the address yet
	role := domain.RoleUser

	now := u.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, asAppError(err)
	}

	logger.Log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return u.openSession(ctx, user, meta)
}

func (u *authUsecase) Login(ctx context.Context, req *domain.LoginRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	blocked, err := u.tracker.IsBlocked(ctx, email, meta.IP)
	if err != nil {
		// Fail open: a tracker outage must not lock everyone out
		logger.Log.Warn("login tracker unavailable", zap.Error(err))
	}
	if blocked {
		return nil, apperror.TooManyRequests("Too many failed login attempts. Please try again later.")
	}

	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, u.failedLogin(ctx, email, meta.IP)
		}
		return nil, apperror.Internal(err)
	}

	// Accounts provisioned by checkout have no password until one is set
	if user.PasswordHash == nil || security.CheckPassword(*user.PasswordHash, req.Password) != nil {
		return nil, u.failedLogin(ctx, email, meta.IP)
	}

	if err := u.tracker.ClearAttempts(ctx, email, meta.IP); err != nil {
		logger.Log.Warn("failed to clear login attempts", zap.Error(err))
	}

	if err := u.promoteIfAllowed(ctx, user); err != nil {
		return nil, err
	}

	return u.openSession(ctx, user, meta)
}

// promoteIfAllowed grants ADMIN to allow-listed addresses with a verified
// mailbox.
func (u *authUsecase) promoteIfAllowed(ctx context.Context, user *domain.User) error {
	if user.Role == domain.RoleAdmin || user.EmailVerifiedAt == nil || !u.isAdminEmail(user.Email) {
		return nil
	}
	user.Role = domain.RoleAdmin
	user.UpdatedAt = u.now().UTC()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return asAppError(err)
	}
	logger.Log.Info("user promoted to admin", zap.String("user_id", user.ID))
	return nil
}

func (u *authUsecase) failedLogin(ctx context.Context, email, ip string) error {
	blocked, _, err := u.tracker.RecordFailedAttempt(ctx, email, ip)
	if err != nil {
		logger.Log.Warn("failed to record login attempt", zap.Error(err))
	}
	if blocked {
		return apperror.TooManyRequests("Too many failed login attempts. Please try again later.")
	}
	return apperror.Unauthorized(invalidCredentials)
}

func (u *authUsecase) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := u.sessionRepo.Delete(ctx, sessionID); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (u *authUsecase) Authenticate(ctx context.Context, token string) (*domain.User, string, error) {
	claims, err := u.sessions.Parse(token)
	if err != nil {
		return nil, "", apperror.Unauthorized("Invalid or expired session")
	}

	session, err := u.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", apperror.Unauthorized("Session has been revoked")
		}
		return nil, "", apperror.Internal(err)
	}
	if session.UserID != claims.Subject || !u.now().Before(session.ExpiresAt) {
		return nil, "", apperror.Unauthorized("Invalid or expired session")
	}

	user, err := u.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", apperror.Unauthorized("User not found")
		}
		return nil, "", apperror.Internal(err)
	}
	return user, session.ID, nil
}

func (u *authUsecase) GetCurrentUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := u.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal(err)
	}
	return user, nil
}

func (u *authUsecase) LookupAutoLogin(ctx context.Context, checkoutSessionID string) (string, error) {
	if checkoutSessionID == "" {
		return "", apperror.BadRequest("session_id is required")
	}
	token, err := u.tokens.Get(ctx, autoLoginKey(checkoutSessionID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", apperror.NotFound("Auto-login token not found or expired")
		}
		return "", apperror.Internal(err)
	}
	return token, nil
}

// ExchangeAutoLogin is single-use: the stored copy must match and is
// deleted before the session is opened.
func (u *authUsecase) ExchangeAutoLogin(ctx context.Context, token string, meta domain.ClientMeta) (*domain.AuthResult, error) {
	claims, err := u.autoLogin.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperror.Unauthorized("Auto-login token expired")
		}
		return nil, apperror.Unauthorized("Invalid auto-login token")
	}

	key := autoLoginKey(claims.CheckoutSessionID)
	stored, err := u.tokens.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.Unauthorized("Auto-login token already used or expired")
		}
		return nil, apperror.Internal(err)
	}
	if stored != token {
		return nil, apperror.Unauthorized("Invalid auto-login token")
	}
	if err := u.tokens.Delete(ctx, key); err != nil {
		return nil, apperror.Internal(err)
	}

	user, err := u.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.Unauthorized("User not found")
		}
		return nil, apperror.Internal(err)
	}

	logger.Log.Info("autologin exchanged",
		zap.String("user_id", user.ID),
		zap.String("checkout_session_id", claims.CheckoutSessionID),
	)
	return u.openSession(ctx, user, meta)
}

func (u *authUsecase) openSession(ctx context.Context, user *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error) {
	now := u.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserAgent: truncate(meta.UserAgent, 512),
		IP:        meta.IP,
		ExpiresAt: now.Add(u.sessions.TTL()),
		CreatedAt: now,
	}
	if err := u.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}

	token, err := u.sessions.Issue(user.ID, session.ID, string(user.Role), session.ExpiresAt)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &domain.AuthResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// asAppError passes AppErrors through and wraps anything else as a 500.
func asAppError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal(err)
}

// truncate caps s at n bytes without splitting a character. Invalid UTF-8
// is dropped first since Postgres TEXT and Stripe both reject it.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
