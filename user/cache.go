package user

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryKeyPrefix = "rentfit:user:summary:"

// Cache is the subset of the go-redis client used for summaries.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedReader is a read-through Redis cache in front of a Reader. Cache
// failures are logged and fall back to the underlying reader.
type CachedReader struct {
	next   Reader
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedReader(next Reader, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedReader{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedReader) GetSummary(ctx context.Context, id string) (Summary, error) {
	key := summaryKeyPrefix + id

	data, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Summary
		if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
			return s, nil
		}
		c.logger.WarnContext(ctx, "user cache entry undecodable", "user_id", id)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "user cache read failed", "user_id", id, "error", err)
	}

	s, err := c.next.GetSummary(ctx, id)
	if err != nil {
		return Summary{}, err
	}

	payload, err := json.Marshal(s)
	if err == nil {
		err = c.cache.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.WarnContext(ctx, "user cache write failed", "user_id", id, "error", err)
	}
	return s, nil
}
