package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *MockRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	args := m.Called(ctx, cursor, match, count)
	return args.Get(0).(*redis.ScanCmd)
}

// --- Testes ---

func TestNew(t *testing.T) {
	s, err := New(config.CacheConf{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.CacheConf{Type: "redis", Addr: "localhost:6379"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	s, err = New(config.CacheConf{Type: "none"})
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrMiss))

	_, err = New(config.CacheConf{Type: "memcached"})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore(2, time.Minute)
	s.now = func() time.Time { return now }

	t.Run("Set e Get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "a", []byte("1")))
		v, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
	})

	t.Run("Miss", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.True(t, errors.Is(err, ErrMiss))
	})

	t.Run("Despejo LRU", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "b", []byte("2")))
		require.NoError(t, s.Set(ctx, "c", []byte("3")))
		_, err := s.Get(ctx, "a")
		assert.True(t, errors.Is(err, ErrMiss))
	})

	t.Run("Expiração", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "d", []byte("4")))
		now = now.Add(2 * time.Minute)
		_, err := s.Get(ctx, "d")
		assert.True(t, errors.Is(err, ErrMiss))
	})

	t.Run("Delete e Flush", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "e", []byte("5")))
		require.NoError(t, s.Delete(ctx, "e"))
		_, err := s.Get(ctx, "e")
		assert.True(t, errors.Is(err, ErrMiss))

		require.NoError(t, s.Set(ctx, "f", []byte("6")))
		require.NoError(t, s.Flush(ctx))
		_, err = s.Get(ctx, "f")
		assert.True(t, errors.Is(err, ErrMiss))
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Hit e Miss", func(t *testing.T) {
		client := new(MockRedis)
		client.On("Get", ctx, "endpoints:doc").Return(redis.NewStringResult("{}", nil))
		client.On("Get", ctx, "endpoints:none").Return(redis.NewStringResult("", redis.Nil))
		client.On("Get", ctx, "endpoints:boom").Return(redis.NewStringResult("", errors.New("conn refused")))

		s := NewRedisStore(client, "", time.Minute)

		v, err := s.Get(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)

		_, err = s.Get(ctx, "none")
		assert.True(t, errors.Is(err, ErrMiss))

		_, err = s.Get(ctx, "boom")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrMiss))
	})

	t.Run("Set Com TTL", func(t *testing.T) {
		client := new(MockRedis)
		client.On("Set", ctx, "app:doc", []byte("x"), 5*time.Minute).Return(redis.NewStatusResult("OK", nil))

		s := NewRedisStore(client, "app:", 5*time.Minute)
		require.NoError(t, s.Set(ctx, "doc", []byte("x")))
		client.AssertExpectations(t)
	})

	t.Run("Flush Com Scan Paginado", func(t *testing.T) {
		client := new(MockRedis)
		client.On("Scan", ctx, uint64(0), "endpoints:*", int64(100)).Return(redis.NewScanCmdResult([]string{"endpoints:a"}, 7, nil))
		client.On("Scan", ctx, uint64(7), "endpoints:*", int64(100)).Return(redis.NewScanCmdResult([]string{"endpoints:b", "endpoints:c"}, 0, nil))
		client.On("Del", ctx, []string{"endpoints:a"}).Return(redis.NewIntResult(1, nil))
		client.On("Del", ctx, []string{"endpoints:b", "endpoints:c"}).Return(redis.NewIntResult(2, nil))

		s := NewRedisStore(client, "", 0)
		require.NoError(t, s.Flush(ctx))
		client.AssertExpectations(t)
	})

	t.Run("Delete Com Erro", func(t *testing.T) {
		client := new(MockRedis)
		client.On("Del", ctx, []string{"endpoints:x"}).Return(redis.NewIntResult(0, errors.New("down")))

		s := NewRedisStore(client, "", 0)
		assert.Error(t, s.Delete(ctx, "x"))
	})
}
