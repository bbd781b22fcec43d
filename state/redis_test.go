package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/breakout/engine"
)

type fakeRedis struct {
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisMissingIsNoSnapshot(t *testing.T) {
	s := newRedis(newFakeRedis(), "")
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, engine.ErrNoSnapshot)
}

func TestRedisSaveLoad(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := newRedis(fake, "bot:state")

	want := sampleSnapshot()
	require.NoError(t, s.Save(ctx, want))
	assert.Contains(t, fake.data, "bot:state")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Risk, got.Risk)
	require.NotNil(t, got.Position)
	assert.Equal(t, want.Position.TradeID, got.Position.TradeID)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, engine.ErrNoSnapshot)
	assert.NoError(t, s.Close())
}

func TestRedisDefaultKey(t *testing.T) {
	fake := newFakeRedis()
	s := newRedis(fake, "")
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	assert.Contains(t, fake.data, "breakout:state")
}

func TestRedisErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	s := newRedis(fake, "")

	_, err := s.Load(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrNoSnapshot)
	assert.Error(t, s.Save(ctx, sampleSnapshot()))
}
