package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// generationKey is bumped on every index write so cached hits from before the
// write are never read again; old entries just expire.
const generationKey = "search:gen"

// CachedIndex caches Search results of an inner Index in Redis. Redis
// failures fall through to the inner index.
type CachedIndex struct {
	inner Index
	rdb   redis.Cmdable
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedIndex wraps inner with a Redis cache whose entries live for ttl.
func NewCachedIndex(inner Index, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedIndex {
	return &CachedIndex{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func hitsKey(gen string, limit int, tokens []string) string {
	return fmt.Sprintf("search:hits:%s:%d:%s", gen, limit, strings.Join(tokens, " "))
}

func (c *CachedIndex) generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Search serves hits from Redis when cached, otherwise from the inner index.
func (c *CachedIndex) Search(ctx context.Context, text string, limit int) ([]model.SearchHit, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("search cache unavailable", zap.Error(err))
		return c.inner.Search(ctx, text, limit)
	}
	key := hitsKey(gen, limit, tokens)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var hits []model.SearchHit
		if jsonErr := json.Unmarshal(cached, &hits); jsonErr == nil {
			return hits, nil
		}
		c.log.Warn("discarding corrupt search cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
	}

	hits, err := c.inner.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(hits)
	if err == nil {
		err = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
	return hits, nil
}

// Upsert writes through to the inner index and invalidates cached hits.
func (c *CachedIndex) Upsert(ctx context.Context, e model.Event) error {
	if err := c.inner.Upsert(ctx, e); err != nil {
		return err
	}
	c.invalidate(ctx, e.ID)
	return nil
}

// Rebuild rebuilds the inner index and invalidates cached hits.
func (c *CachedIndex) Rebuild(ctx context.Context, events []model.Event) error {
	if err := c.inner.Rebuild(ctx, events); err != nil {
		return err
	}
	c.invalidate(ctx, 0)
	return nil
}

func (c *CachedIndex) invalidate(ctx context.Context, eventID int64) {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("search cache invalidation failed",
			zap.String("event_id", strconv.FormatInt(eventID, 10)), zap.Error(err))
	}
}
