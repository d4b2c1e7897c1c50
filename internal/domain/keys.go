package domain

import (
	"context"
	"errors"
)

type CtxKey string

const (
	KeyUserID    CtxKey = "UserID"
	KeyUserEmail CtxKey = "Email"
	KeyUserRole  CtxKey = "Role"
	KeySessionID CtxKey = "SessionID"
)

// ErrNotFound is returned by repositories and stores when nothing matches.
var ErrNotFound = errors.New("not found")

// ctxString reads a value set either by gin's c.Set (string key) or by
// context.WithValue (CtxKey).
func ctxString(ctx context.Context, key CtxKey) string {
	if v, ok := ctx.Value(string(key)).(string); ok && v != "" {
		return v
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string {
	return ctxString(ctx, KeyUserID)
}

func RoleFromContext(ctx context.Context) Role {
	return Role(ctxString(ctx, KeyUserRole))
}

func SessionIDFromContext(ctx context.Context) string {
	return ctxString(ctx, KeySessionID)
}
