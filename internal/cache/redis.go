package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache stores artifacts under "datatype:id" with a fixed expiry.
type RedisCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Save(ctx context.Context, id, datatype string, data any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	b, err := encode(data)
	if err != nil {
		return err
	}
	key := storeKey(id, datatype)
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save artifact to redis")
		return errx.WrapRedis(err)
	}
	logx.Debug().Str("session_id", id).Str("datatype", datatype).Int("bytes", len(b)).Msg("saved artifact to redis")
	return nil
}

func (c *RedisCache) Load(ctx context.Context, id, datatype string, out any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	b, err := c.rdb.Get(ctx, storeKey(id, datatype)).Bytes()
	if err != nil {
		return errx.WrapRedis(err)
	}
	return decode(b, out)
}

func (c *RedisCache) Exists(ctx context.Context, id, datatype string) (bool, error) {
	if err := validateKey(id, datatype); err != nil {
		return false, err
	}
	n, err := c.rdb.Exists(ctx, storeKey(id, datatype)).Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	return n > 0, nil
}

func (c *RedisCache) Delete(ctx context.Context, id, datatype string) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, storeKey(id, datatype)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (c *RedisCache) Claim(ctx context.Context, id string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if err := validateKey(id, "lock"); err != nil {
		return nil, false, err
	}
	key := "lock:" + id
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errx.WrapRedis(err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errx.WrapRedis(err)
		}
		return nil
	}
	return release, true, nil
}

var (
	_ Manager = (*RedisCache)(nil)
	_ Claimer = (*RedisCache)(nil)
)
