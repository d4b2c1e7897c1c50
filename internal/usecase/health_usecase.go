package usecase

import (
	"context"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthUsecase interface {
	Check(ctx context.Context) map[string]string
}

type healthUsecase struct {
	db    Pinger
	redis Pinger
}

// NewHealthUsecase reports on the database and, when configured, redis.
// A nil redis is reported as "disabled".
func NewHealthUsecase(db, redis Pinger) HealthUsecase {
	return &healthUsecase{db: db, redis: redis}
}

func (u *healthUsecase) Check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := map[string]string{
		"status":   "ok",
		"database": probe(ctx, u.db),
		"redis":    "disabled",
	}
	if u.redis != nil {
		result["redis"] = probe(ctx, u.redis)
	}
	if result["database"] != "up" || result["redis"] == "down" {
		result["status"] = "degraded"
	}
	return result
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "down"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
