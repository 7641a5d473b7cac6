package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/time2watch/internal/logging"
)

const cacheKeyPrefix = "catalog:search:"

// CachedSearcher keeps search responses in Redis. Cache errors are logged and
// the lookup falls through to the wrapped searcher.
type CachedSearcher struct {
	next  Searcher
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedSearcher(next Searcher, redisClient *redis.Client, ttl time.Duration) *CachedSearcher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSearcher{next: next, redis: redisClient, ttl: ttl}
}

func cacheKey(query string, page int) string {
	if page <= 0 {
		page = 1
	}
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, page, strings.ToLower(strings.TrimSpace(query)))
}

func (c *CachedSearcher) Search(ctx context.Context, query string, page int) (*SearchResponse, error) {
	key := cacheKey(query, page)

	cached, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resp SearchResponse
		if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
			return &resp, nil
		}
		logging.FromContext(ctx).Warn("Discarding unreadable catalog cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		logging.FromContext(ctx).Warn("Catalog cache read failed", map[string]interface{}{"error": err.Error()})
	}

	resp, err := c.next.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.FromContext(ctx).Warn("Catalog cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return resp, nil
}
