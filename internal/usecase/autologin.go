package usecase

import (
	"context"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/auth"
)

const autoLoginKeyPrefix = "autologin:"

func autoLoginKey(checkoutSessionID string) string {
	return autoLoginKeyPrefix + checkoutSessionID
}

// AutoLoginIssuer signs post-checkout hand-off tokens and parks them in the
// KV store under the checkout session id until they expire or are used.
type AutoLoginIssuer struct {
	signer *auth.AutoLoginSigner
	store  domain.KVStore
	ttl    time.Duration
}

func NewAutoLoginIssuer(signer *auth.AutoLoginSigner, store domain.KVStore, ttl time.Duration) *AutoLoginIssuer {
	return &AutoLoginIssuer{signer: signer, store: store, ttl: ttl}
}

func (i *AutoLoginIssuer) Issue(ctx context.Context, checkoutSessionID, userID, email string) (string, error) {
	token, err := i.signer.Sign(checkoutSessionID, userID, email, i.ttl)
	if err != nil {
		return "", err
	}
	if err := i.store.Set(ctx, autoLoginKey(checkoutSessionID), token, i.ttl); err != nil {
		return "", fmt.Errorf("failed to store autologin token: %w", err)
	}
	return token, nil
}
