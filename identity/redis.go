package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyFormat = "bounce:identity:%s"

// RedisStore keeps identifiers in redis so several workspaces or machines can
// share one.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedisStore connects to a single redis node and checks it answers.
func DialRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(rdb), nil
}

func redisKey(key string) string {
	return fmt.Sprintf(redisKeyFormat, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, redisKey(key), value, 0).Err()
}

// setIfAbsent treats an empty value like a missing key, as the other stores do.
var setIfAbsent = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and v ~= "" then
	return v
end
redis.call("SET", KEYS[1], ARGV[1])
return ARGV[1]
`)

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	return setIfAbsent.Run(ctx, s.rdb, []string{redisKey(key)}, value).Text()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
