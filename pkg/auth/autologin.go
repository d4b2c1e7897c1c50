package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const autoLoginAudience = "launchpad:autologin"

var ErrExpiredToken = errors.New("token expired")

// AutoLoginClaims ties a checkout session to the account provisioned for it.
type AutoLoginClaims struct {
	CheckoutSessionID string `json:"csid"`
	Email             string `json:"email"`
	jwt.RegisteredClaims
}

// AutoLoginSigner produces tamper-evident hand-off tokens for the
// post-checkout login. Tokens are HMAC-SHA256 signed with a key that is
// separate from the session key when AUTOLOGIN_SECRET is set.
type AutoLoginSigner struct {
	secret []byte
	now    func() time.Time
}

func NewAutoLoginSigner(secret string) *AutoLoginSigner {
	return &AutoLoginSigner{secret: []byte(secret), now: time.Now}
}

func (s *AutoLoginSigner) Sign(checkoutSessionID, userID, email string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("autologin secret not configured")
	}

	now := s.now()
	claims := AutoLoginClaims{
		CheckoutSessionID: checkoutSessionID,
		Email:             email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{autoLoginAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign autologin token: %w", err)
	}
	return signed, nil
}

// Verify returns ErrExpiredToken for a well-signed but stale token and
// ErrInvalidToken for anything else that fails.
func (s *AutoLoginSigner) Verify(tokenString string) (*AutoLoginClaims, error) {
	claims := &AutoLoginClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(autoLoginAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.CheckoutSessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
