package usecase_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"launchpad-backend/internal/domain"
	"launchpad-backend/internal/repository/cache"
	"launchpad-backend/internal/usecase"
	"launchpad-backend/pkg/auth"
	"launchpad-backend/pkg/security"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

type authFixture struct {
	uc       domain.AuthUsecase
	users    *MockUserRepo
	sessions *MockSessionRepo
	tracker  *MockLoginTracker
	tokens   *cache.MemoryStore
	issuer   *usecase.AutoLoginIssuer
	resets   *fakeResetTokens
	mailer   *MockMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens := cache.NewMemoryStore(0)
	t.Cleanup(tokens.Close)

	f := &authFixture{
		users:    new(MockUserRepo),
		sessions: new(MockSessionRepo),
		tracker:  new(MockLoginTracker),
		tokens:   tokens,
		resets:   &fakeResetTokens{},
		mailer:   new(MockMailer),
	}
	signer := auth.NewAutoLoginSigner(testSecret)
	f.issuer = usecase.NewAutoLoginIssuer(signer, tokens, time.Hour)
	f.uc = usecase.NewAuthUsecase(usecase.AuthDeps{
		UserRepo:     f.users,
		SessionRepo:  f.sessions,
		LoginTracker: f.tracker,
		Sessions:     auth.NewSessionIssuer(testSecret, 24*time.Hour),
		AutoLogin:    signer,
		Tokens:       tokens,
		IsAdminEmail: func(email string) bool { return email == "boss@launchpad.test" },
		ResetTokens:  f.resets,
		Mailer:       f.mailer,
		AppBaseURL:   "https://app.test/",
		ResetTTL:     time.Hour,
	})
	return f
}

func hashed(t *testing.T, pw string) *string {
	t.Helper()
	h, err := security.HashPassword(pw)
	require.NoError(t, err)
	return &h
}

func TestAuthRegister(t *testing.T) {
	t.Run("creates a user and opens a session", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, domain.ErrNotFound)
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "ada@example.com" && u.Role == domain.RoleUser && u.PasswordHash != nil
		})).Return(nil)
		f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)

		res, err := f.uc.Register(context.Background(), &domain.RegisterRequest{
			Email: " Ada@Example.com ", Name: "Ada", Password: "correct horse",
		}, domain.ClientMeta{IP: "127.0.0.1"})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, domain.RoleUser, res.User.Role)
		f.users.AssertExpectations(t)
	})

	t.Run("allow-listed email stays a user until verified", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", mock.Anything, "boss@launchpad.test").Return(nil, domain.ErrNotFound)
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Role == domain.RoleUser && u.EmailVerifiedAt == nil
		})).Return(nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.Register(context.Background(), &domain.RegisterRequest{
			Email: "boss@launchpad.test", Name: "Boss", Password: "attacker-chosen",
		}, domain.ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, res.User.Role)
		f.users.AssertExpectations(t)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(&domain.User{ID: "u1"}, nil)

		_, err := f.uc.Register(context.Background(), &domain.RegisterRequest{
			Email: "ada@example.com", Name: "Ada", Password: "correct horse",
		}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusConflict)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthLogin(t *testing.T) {
	user := func(t *testing.T) *domain.User {
		return &domain.User{ID: "u1", Email: "ada@example.com", Role: domain.RoleUser, PasswordHash: hashed(t, "correct horse")}
	}

	t.Run("valid credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, "ada@example.com", "1.2.3.4").Return(false, nil)
		f.tracker.On("ClearAttempts", mock.Anything, "ada@example.com", "1.2.3.4").Return(nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user(t), nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ada@example.com", Password: "correct horse"},
			domain.ClientMeta{IP: "1.2.3.4"})
		require.NoError(t, err)
		assert.Equal(t, "u1", res.User.ID)
		f.tracker.AssertExpectations(t)
	})

	t.Run("wrong password is recorded", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("RecordFailedAttempt", mock.Anything, "ada@example.com", "1.2.3.4").Return(false, 4, nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user(t), nil)

		_, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ada@example.com", Password: "nope"},
			domain.ClientMeta{IP: "1.2.3.4"})
		assertAppError(t, err, http.StatusUnauthorized)
		f.tracker.AssertExpectations(t)
	})

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("RecordFailedAttempt", mock.Anything, mock.Anything, mock.Anything).Return(false, 1, nil)
		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

		_, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ghost@example.com", Password: "x"}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusUnauthorized)
		assert.Equal(t, "Invalid email or password", err.Error())
	})

	t.Run("blocked caller", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

		_, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ada@example.com", Password: "x"}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusTooManyRequests)
		f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("unverified allow-listed email is not promoted", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("ClearAttempts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.users.On("GetByEmail", mock.Anything, "boss@launchpad.test").Return(&domain.User{
			ID: "u9", Email: "boss@launchpad.test", Role: domain.RoleUser, PasswordHash: hashed(t, "attacker-chosen"),
		}, nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "boss@launchpad.test", Password: "attacker-chosen"}, domain.ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, res.User.Role)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("verified allow-listed email is promoted", func(t *testing.T) {
		f := newAuthFixture(t)
		verified := time.Now().Add(-time.Hour)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("ClearAttempts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.users.On("GetByEmail", mock.Anything, "boss@launchpad.test").Return(&domain.User{
			ID: "u9", Email: "boss@launchpad.test", Role: domain.RoleUser, PasswordHash: hashed(t, "correct horse"), EmailVerifiedAt: &verified,
		}, nil)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool { return u.Role == domain.RoleAdmin })).Return(nil).Once()
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "boss@launchpad.test", Password: "correct horse"}, domain.ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, res.User.Role)
		f.users.AssertExpectations(t)
	})

	t.Run("long user agent is cut on a character boundary", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("ClearAttempts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user(t), nil)
		var stored *domain.Session
		f.sessions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Session)
		}).Return(nil)

		ua := "a" + strings.Repeat("é", 300)
		_, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ada@example.com", Password: "correct horse"},
			domain.ClientMeta{UserAgent: ua})
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, utf8.ValidString(stored.UserAgent))
		assert.Len(t, stored.UserAgent, 511)
		assert.True(t, strings.HasPrefix(ua, stored.UserAgent))
	})

	t.Run("checkout-provisioned account has no password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tracker.On("IsBlocked", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.tracker.On("RecordFailedAttempt", mock.Anything, mock.Anything, mock.Anything).Return(false, 1, nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(&domain.User{ID: "u1", Email: "ada@example.com"}, nil)

		_, err := f.uc.Login(context.Background(), &domain.LoginRequest{Email: "ada@example.com", Password: ""}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusUnauthorized)
	})
}

func TestAuthAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	issuer := auth.NewSessionIssuer(testSecret, 24*time.Hour)
	expires := time.Now().Add(time.Hour)
	token, err := issuer.Issue("u1", "s1", string(domain.RoleUser), expires)
	require.NoError(t, err)

	t.Run("live session", func(t *testing.T) {
		f.sessions.On("GetByID", mock.Anything, "s1").Return(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: expires}, nil).Once()
		f.users.On("GetByID", mock.Anything, "u1").Return(&domain.User{ID: "u1"}, nil).Once()

		user, sessionID, err := f.uc.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "s1", sessionID)
	})

	t.Run("revoked session", func(t *testing.T) {
		f.sessions.On("GetByID", mock.Anything, "s1").Return(nil, domain.ErrNotFound).Once()

		_, _, err := f.uc.Authenticate(context.Background(), token)
		assertAppError(t, err, http.StatusUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := f.uc.Authenticate(context.Background(), "not-a-jwt")
		assertAppError(t, err, http.StatusUnauthorized)
	})
}

func TestAuthAutoLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, err := f.issuer.Issue(ctx, "cs_123", "u1", "ada@example.com")
	require.NoError(t, err)

	t.Run("lookup returns the pending token", func(t *testing.T) {
		got, err := f.uc.LookupAutoLogin(ctx, "cs_123")
		require.NoError(t, err)
		assert.Equal(t, token, got)

		_, err = f.uc.LookupAutoLogin(ctx, "cs_unknown")
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("exchange is single use", func(t *testing.T) {
		f.users.On("GetByID", mock.Anything, "u1").Return(&domain.User{ID: "u1", Role: domain.RoleUser}, nil).Once()
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := f.uc.ExchangeAutoLogin(ctx, token, domain.ClientMeta{})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)

		_, err = f.uc.ExchangeAutoLogin(ctx, token, domain.ClientMeta{})
		assertAppError(t, err, http.StatusUnauthorized)

		_, err = f.uc.LookupAutoLogin(ctx, "cs_123")
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("forged token", func(t *testing.T) {
		forged, err := auth.NewAutoLoginSigner("another-secret-another-secret-000").Sign("cs_9", "u1", "a@b.c", time.Hour)
		require.NoError(t, err)
		_, err = f.uc.ExchangeAutoLogin(ctx, forged, domain.ClientMeta{})
		assertAppError(t, err, http.StatusUnauthorized)
	})
}

func TestAuthAutoLogin_ExpiresWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cache.NewRedisStore(client, "launchpad:")

	signer := auth.NewAutoLoginSigner(testSecret)
	issuer := usecase.NewAutoLoginIssuer(signer, store, 10*time.Minute)
	uc := usecase.NewAuthUsecase(usecase.AuthDeps{
		UserRepo:    new(MockUserRepo),
		SessionRepo: new(MockSessionRepo),
		Sessions:    auth.NewSessionIssuer(testSecret, time.Hour),
		AutoLogin:   signer,
		Tokens:      store,
	})
	ctx := context.Background()

	token, err := issuer.Issue(ctx, "cs_ttl", "u1", "ada@example.com")
	require.NoError(t, err)

	mr.FastForward(9 * time.Minute)
	got, err := uc.LookupAutoLogin(ctx, "cs_ttl")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	mr.FastForward(2 * time.Minute)
	_, err = uc.LookupAutoLogin(ctx, "cs_ttl")
	assertAppError(t, err, http.StatusNotFound)
}

func TestAuthPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email is silently accepted", func(t *testing.T) {
		f := newAuthFixture(t)
		f.mailer.On("IsConfigured").Return(true)
		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

		require.NoError(t, f.uc.RequestPasswordReset(ctx, " Ghost@Example.com "))
		f.mailer.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything)
		assert.Empty(t, f.resets.tokens)
	})

	t.Run("mailer not configured", func(t *testing.T) {
		f := newAuthFixture(t)
		f.mailer.On("IsConfigured").Return(false)
		assertAppError(t, f.uc.RequestPasswordReset(ctx, "ada@example.com"), http.StatusServiceUnavailable)
	})

	t.Run("checkout customer sets a password and can log in again", func(t *testing.T) {
		f := newAuthFixture(t)
		customer := &domain.User{ID: "u1", Email: "ada@example.com", Name: "Ada", Role: domain.RoleUser}
		f.mailer.On("IsConfigured").Return(true)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(customer, nil).Once()

		var mail domain.PasswordResetEmail
		f.mailer.On("SendPasswordReset", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			mail = args.Get(1).(domain.PasswordResetEmail)
		}).Return(nil).Once()

		require.NoError(t, f.uc.RequestPasswordReset(ctx, "ada@example.com"))
		require.True(t, strings.HasPrefix(mail.ResetURL, "https://app.test/reset-password?token="), mail.ResetURL)
		assert.Equal(t, time.Hour, mail.ExpiresIn)

		link, err := url.Parse(mail.ResetURL)
		require.NoError(t, err)
		token := link.Query().Get("token")
		require.Len(t, token, 64)
		require.Len(t, f.resets.tokens, 1)
		assert.NotContains(t, f.resets.tokens, token, "only the hash is stored")

		var newHash string
		f.users.On("GetByID", mock.Anything, "u1").Return(customer, nil)
		f.users.On("SetPassword", mock.Anything, "u1", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			newHash = args.String(2)
		}).Return(nil).Once()
		f.sessions.On("DeleteByUser", mock.Anything, "u1").Return(nil).Once()
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.ResetPassword(ctx, &domain.ResetPasswordRequest{Token: token, Password: "new password"}, domain.ClientMeta{})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.NoError(t, security.CheckPassword(newHash, "new password"))
		assert.NotNil(t, res.User.EmailVerifiedAt)
		assert.Equal(t, domain.RoleUser, res.User.Role)
		f.sessions.AssertExpectations(t)

		_, err = f.uc.ResetPassword(ctx, &domain.ResetPasswordRequest{Token: token, Password: "another one"}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("redeeming promotes an allow-listed address", func(t *testing.T) {
		f := newAuthFixture(t)
		require.NoError(t, f.resets.Replace(ctx, &domain.ResetToken{
			Identifier: "u9", TokenHash: security.HashToken("boss-token"), ExpiresAt: time.Now().Add(time.Hour),
		}))
		f.users.On("GetByID", mock.Anything, "u9").Return(&domain.User{ID: "u9", Email: "boss@launchpad.test", Role: domain.RoleUser}, nil)
		f.users.On("SetPassword", mock.Anything, "u9", mock.Anything, mock.Anything).Return(nil)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool { return u.Role == domain.RoleAdmin })).Return(nil).Once()
		f.sessions.On("DeleteByUser", mock.Anything, "u9").Return(nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.uc.ResetPassword(ctx, &domain.ResetPasswordRequest{Token: "boss-token", Password: "correct horse"}, domain.ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, res.User.Role)
		f.users.AssertExpectations(t)
	})

	t.Run("expired and unknown tokens", func(t *testing.T) {
		f := newAuthFixture(t)
		require.NoError(t, f.resets.Replace(ctx, &domain.ResetToken{
			Identifier: "u1", TokenHash: security.HashToken("stale"), ExpiresAt: time.Now().Add(-time.Minute),
		}))

		_, err := f.uc.ResetPassword(ctx, &domain.ResetPasswordRequest{Token: "stale", Password: "correct horse"}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusBadRequest)
		_, err = f.uc.ResetPassword(ctx, &domain.ResetPasswordRequest{Token: "never-issued", Password: "correct horse"}, domain.ClientMeta{})
		assertAppError(t, err, http.StatusBadRequest)
		f.users.AssertNotCalled(t, "SetPassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
