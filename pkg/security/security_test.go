package security

import (
	"context"
	"testing"
	"time"

	"launchpad-backend/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, a, HashToken(a))
}

func newTestTracker(t *testing.T) (*LoginTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := LoginTrackerConfig{
		MaxAttempts:   3,
		AttemptWindow: time.Minute,
		BlockDuration: 10 * time.Minute,
		UseIPTracking: true,
	}
	return NewLoginTracker(client, cfg), mr
}

func TestLoginTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks after max attempts", func(t *testing.T) {
		lt, _ := newTestTracker(t)

		for i := 1; i < 3; i++ {
			blocked, count, err := lt.RecordFailedAttempt(ctx, "Client@Example.com", "10.0.0.1")
			require.NoError(t, err)
			assert.False(t, blocked)
			assert.Equal(t, i, count)
		}

		remaining, err := lt.GetRemainingAttempts(ctx, "client@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)

		blocked, _, err := lt.RecordFailedAttempt(ctx, "client@example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, blocked)

		isBlocked, err := lt.IsBlocked(ctx, "client@example.com", "")
		require.NoError(t, err)
		assert.True(t, isBlocked)

		// Same IP, different account
		isBlocked, err = lt.IsBlocked(ctx, "other@example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, isBlocked)
	})

	t.Run("block expires", func(t *testing.T) {
		lt, mr := newTestTracker(t)
		for i := 0; i < 3; i++ {
			_, _, err := lt.RecordFailedAttempt(ctx, "a@example.com", "")
			require.NoError(t, err)
		}
		mr.FastForward(11 * time.Minute)

		isBlocked, err := lt.IsBlocked(ctx, "a@example.com", "")
		require.NoError(t, err)
		assert.False(t, isBlocked)
	})

	t.Run("clear resets counter", func(t *testing.T) {
		lt, _ := newTestTracker(t)
		_, _, err := lt.RecordFailedAttempt(ctx, "b@example.com", "10.0.0.2")
		require.NoError(t, err)
		require.NoError(t, lt.ClearAttempts(ctx, "b@example.com", "10.0.0.2"))

		remaining, err := lt.GetRemainingAttempts(ctx, "b@example.com")
		require.NoError(t, err)
		assert.Equal(t, 3, remaining)
	})

	t.Run("log lines mask the email", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		prev := logger.Log
		logger.Log = zap.New(core)
		t.Cleanup(func() { logger.Log = prev })

		lt, _ := newTestTracker(t)
		for i := 0; i < 3; i++ {
			_, _, err := lt.RecordFailedAttempt(ctx, "client@example.com", "10.0.0.3")
			require.NoError(t, err)
		}

		require.Equal(t, 4, logs.Len(), "three failures and one block")
		for _, entry := range logs.All() {
			assert.Equal(t, "c***@example.com", entry.ContextMap()["email"], entry.Message)
		}
		assert.Equal(t, 1, logs.FilterMessage("login blocked").Len())
	})

	t.Run("nil client fails open", func(t *testing.T) {
		lt := NewLoginTracker(nil, DefaultLoginTrackerConfig())
		blocked, err := lt.IsBlocked(ctx, "x@example.com", "1.1.1.1")
		require.NoError(t, err)
		assert.False(t, blocked)

		blocked, count, err := lt.RecordFailedAttempt(ctx, "x@example.com", "1.1.1.1")
		require.NoError(t, err)
		assert.False(t, blocked)
		assert.Zero(t, count)
	})
}

func TestSecurityLogger(t *testing.T) {
	t.Run("severity is derived from the event", func(t *testing.T) {
		assert.Equal(t, SeverityHigh, GetSeverity(EventCSRFViolation))
		assert.Equal(t, SeverityInfo, GetSeverity(EventLoginSuccess))
		assert.Equal(t, SeverityMedium, GetSeverity(EventType("unmapped")))
	})

	t.Run("persists with derived severity", func(t *testing.T) {
		got := make(chan SecurityEvent, 1)
		sl := &SecurityLogger{log: zap.NewNop, timeout: time.Second}
		sl.SetPersistFunc(func(_ context.Context, e SecurityEvent) error {
			got <- e
			return nil
		})

		sl.LogLoginFailed(context.Background(), "ada@example.com", "10.0.0.1", "curl", "req-1", "bad_password")

		select {
		case e := <-got:
			assert.Equal(t, EventLoginFailed, e.Event)
			assert.Equal(t, SeverityWarn, e.Severity)
			assert.Equal(t, "a***@example.com", e.SubjectValue)
			assert.False(t, e.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event was not persisted")
		}
	})

	t.Run("identifiers are hashed", func(t *testing.T) {
		assert.Len(t, HashValue("user-1"), 16)
		assert.Equal(t, "", HashValue(""))
		assert.Equal(t, "***", MaskEmail("ab"))
	})
}
