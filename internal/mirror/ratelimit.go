package mirror

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Mirror
	limiter *rate.Limiter
}

// WithRateLimit throttles every call to next to limit operations per second.
func WithRateLimit(next Mirror, limit rate.Limit, burst int) Mirror {
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (m *rateLimited) Upsert(ctx context.Context, collection, key string, value any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return mirrorErr("rate limit", err)
	}
	return m.next.Upsert(ctx, collection, key, value)
}

func (m *rateLimited) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return false, mirrorErr("rate limit", err)
	}
	return m.next.Get(ctx, collection, key, dst)
}

func (m *rateLimited) Close() error {
	return m.next.Close()
}
