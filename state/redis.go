package state

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/breakout/engine"
)

// redisClient is the part of *redis.Client the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
	Key        string
}

// Redis keeps the snapshot as JSON under a single key.
type Redis struct {
	rdb redisClient
	key string
	cl  func() error
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	s := newRedis(rdb, cfg.Key)
	s.cl = rdb.Close
	return s, nil
}

func newRedis(rdb redisClient, key string) *Redis {
	if key == "" {
		key = "breakout:state"
	}
	return &Redis{rdb: rdb, key: key, cl: func() error { return nil }}
}

func (s *Redis) Load(ctx context.Context) (engine.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Snapshot{}, engine.ErrNoSnapshot
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("redis: get %s: %w", s.key, err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("redis: decode %s: %w", s.key, err)
	}
	return snap, nil
}

func (s *Redis) Save(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", s.key, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", s.key, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.cl()
}
