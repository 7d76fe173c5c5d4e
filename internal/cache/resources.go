// Package cache holds a Redis read-through cache for catalog resources.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/model"
)

// Redis is the subset of *goredis.Client used by the cache.
type Redis interface {
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// Resources caches resource records keyed by id.
type Resources struct {
	rdb Redis
	ttl time.Duration
	log *zap.Logger
}

// NewResources constructs the cache. A non-positive ttl defaults to 10 minutes.
func NewResources(rdb Redis, ttl time.Duration, log *zap.Logger) *Resources {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resources{rdb: rdb, ttl: ttl, log: log}
}

func key(id uuid.UUID) string { return "lp:resource:" + id.String() }

// GetMany returns the cached records among ids and the ids that were not cached.
// Undecodable entries count as misses.
func (c *Resources) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Resource, []uuid.UUID, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]model.Resource{}, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ids, err
	}
	hit := make(map[uuid.UUID]model.Resource, len(ids))
	var miss []uuid.UUID
	for i, id := range ids {
		s, ok := vals[i].(string)
		if !ok {
			miss = append(miss, id)
			continue
		}
		var r model.Resource
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			c.log.Warn("resource cache decode", zap.String("id", id.String()), zap.Error(err))
			miss = append(miss, id)
			continue
		}
		hit[id] = r
	}
	return hit, miss, nil
}

// PutMany stores records; failures are logged, never returned.
func (c *Resources) PutMany(ctx context.Context, rs []model.Resource) {
	for _, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			continue
		}
		if err := c.rdb.Set(ctx, key(r.ID), b, c.ttl).Err(); err != nil {
			c.log.Warn("resource cache set", zap.String("id", r.ID.String()), zap.Error(err))
			return
		}
	}
}
