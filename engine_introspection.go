package shopauth

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	StoreAvailable bool
	StoreLatency   time.Duration
}

// Healthy reports whether every configured backend answered.
func (h HealthStatus) Healthy() bool {
	return h.RedisAvailable && h.StoreAvailable
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings Redis and, when the store supports it, the credential store.
// Without limits there is no Redis dependency and it counts as available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	var status HealthStatus
	if e.limiter == nil {
		status.RedisAvailable = true
	} else {
		latency, err := e.limiter.Ping(ctx)
		status.RedisAvailable = err == nil
		status.RedisLatency = latency
	}

	if p, ok := e.store.(pinger); ok {
		start := time.Now()
		err := p.Ping(ctx)
		status.StoreAvailable = err == nil
		status.StoreLatency = time.Since(start)
	} else {
		status.StoreAvailable = true
	}

	return status
}

// LoginAttempts returns the failed sign-in counter for email in the current
// window. It returns zero when limits are disabled.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	email = normalizeEmail(email)
	if e.limiter == nil || email == "" {
		return 0, nil
	}
	return e.limiter.GetLoginAttempts(ctx, email)
}
