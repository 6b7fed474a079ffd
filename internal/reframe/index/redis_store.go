package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultKeyPrefix namespaces cached indexes.
const DefaultKeyPrefix = "reframe:index:"

// RedisStore implements Store on Redis with msgpack-encoded values.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed index cache. A non-positive ttl keeps
// entries for 24 hours; an empty prefix selects DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, logger *logrus.Logger, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{
		client: client,
		logger: logger,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get loads the index cached under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Result, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index: %w", err)
	}

	var res Result
	if err := msgpack.Unmarshal(data, &res); err != nil {
		// a corrupt entry is dropped so the next Put replaces it
		s.logger.WithFields(logrus.Fields{
			"key":   key,
			"error": err,
		}).Warn("Discarding undecodable cached index")
		s.client.Del(ctx, s.prefix+key)
		return nil, ErrNotFound
	}
	return &res, nil
}

// Put stores res under key with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key string, res *Result) error {
	if res == nil {
		return errors.New("index: nil result")
	}
	data, err := msgpack.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store index: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":     key,
		"entries": len(res.Entries),
		"bytes":   len(data),
	}).Debug("Index cached")
	return nil
}

// Delete removes the index cached under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
