package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             Role      `json:"role"`
	PasswordHash     *string   `json:"-"`
	StripeCustomerID *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	// Set once the user proved control of the mailbox
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
}

// Session is a server-side login record. The signed cookie only carries its id.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	// SetPassword stores a new hash and marks the email verified.
	SetPassword(ctx context.Context, userID, passwordHash string, verifiedAt time.Time) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// LoginTracker throttles repeated failed sign-ins.
type LoginTracker interface {
	IsBlocked(ctx context.Context, email, ip string) (bool, error)
	RecordFailedAttempt(ctx context.Context, email, ip string) (bool, int, error)
	ClearAttempts(ctx context.Context, email, ip string) error
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=120,valid_name"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ClientMeta is recorded on the session row.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// AuthResult is returned by every operation that opens a session.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthUsecase interface {
	Register(ctx context.Context, req *RegisterRequest, meta ClientMeta) (*AuthResult, error)
	Login(ctx context.Context, req *LoginRequest, meta ClientMeta) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	// Authenticate resolves a session token into its user and session id.
	Authenticate(ctx context.Context, token string) (*User, string, error)
	GetCurrentUser(ctx context.Context, id string) (*User, error)
	// LookupAutoLogin returns the pending hand-off token for a checkout session.
	LookupAutoLogin(ctx context.Context, checkoutSessionID string) (string, error)
	// ExchangeAutoLogin consumes a hand-off token and opens a session.
	ExchangeAutoLogin(ctx context.Context, token string, meta ClientMeta) (*AuthResult, error)
	// RequestPasswordReset mails a reset link. Unknown emails succeed silently.
	RequestPasswordReset(ctx context.Context, email string) error
	// ResetPassword consumes a reset token, sets the password and opens a session.
	ResetPassword(ctx context.Context, req *ResetPasswordRequest, meta ClientMeta) (*AuthResult, error)
}
