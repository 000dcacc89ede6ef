package chatstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each thread as a Redis list of JSON-encoded turns.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every thread key. Defaults to "supplychat:thread:".
	Prefix string
	// TTL, when positive, expires idle threads.
	TTL time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opts.Addr)
	}
	return NewRedisStoreFromClient(rdb, opts.Prefix, opts.TTL), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "supplychat:thread:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) Get(ctx context.Context, threadID string) ([]Turn, error) {
	raw, err := s.rdb.LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "lrange thread")
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, errors.Wrap(err, "decode turn")
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, threadID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range stamp(turns) {
		b, err := json.Marshal(t)
		if err != nil {
			return errors.Wrap(err, "encode turn")
		}
		values = append(values, string(b))
	}
	key := s.key(threadID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return errors.Wrap(err, "append thread")
}

func (s *RedisStore) Clear(ctx context.Context, threadID string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(threadID)).Err(), "clear thread")
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
