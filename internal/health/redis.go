package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the index cache. The cache is an optimization, so an
// unreachable Redis degrades the service rather than taking it down.
type RedisChecker struct {
	client redis.UniversalClient
	name   string
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "index_cache",
	}
}

func (r *RedisChecker) Name() string { return r.name }

func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("%w: no redis client", ErrDegraded)
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", ErrDegraded, err)
	}
	return nil
}

// Capacity reports the sessions in use and the session limit.
type Capacity interface {
	InUse() int
	Limit() int
}

// SessionChecker reports degraded while every demux session slot is taken.
type SessionChecker struct {
	capacity Capacity
}

func NewSessionChecker(capacity Capacity) *SessionChecker {
	return &SessionChecker{capacity: capacity}
}

func (s *SessionChecker) Name() string { return "sessions" }

func (s *SessionChecker) Check(context.Context) error {
	inUse, limit := s.capacity.InUse(), s.capacity.Limit()
	if limit > 0 && inUse >= limit {
		return fmt.Errorf("%w: %d of %d sessions in use", ErrDegraded, inUse, limit)
	}
	return nil
}
