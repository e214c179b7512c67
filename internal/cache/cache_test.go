package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func TestNew(t *testing.T) {
	t.Parallel()

	mr := setupMiniRedis(t)

	tests := []struct {
		name     string
		cfg      config.CacheConfig
		wantNil  bool
		wantType any
		wantErr  bool
	}{
		{name: "disabled", cfg: config.CacheConfig{Type: config.CacheTypeRedis}, wantNil: true},
		{name: "memory", cfg: config.CacheConfig{Enabled: true, Type: config.CacheTypeMemory}, wantType: &Memory{}},
		{name: "default type", cfg: config.CacheConfig{Enabled: true}, wantType: &Memory{}},
		{
			name:     "redis",
			cfg:      config.CacheConfig{Enabled: true, Type: config.CacheTypeRedis, RedisURL: "redis://" + mr.Addr()},
			wantType: &Redis{},
		},
		{name: "redis without url", cfg: config.CacheConfig{Enabled: true, Type: config.CacheTypeRedis}, wantErr: true},
		{name: "redis bad url", cfg: config.CacheConfig{Enabled: true, Type: config.CacheTypeRedis, RedisURL: "invalid://url"}, wantErr: true},
		{name: "unknown", cfg: config.CacheConfig{Enabled: true, Type: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := New(tt.cfg, observability.NopLogger())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, c)
				return
			}
			t.Cleanup(func() { _ = c.Close() })
			assert.IsType(t, tt.wantType, c)
		})
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedis("redis://"+addr, time.Minute)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

// Both backends honour the same contract.
func TestCache_Contract(t *testing.T) {
	t.Parallel()

	mr := setupMiniRedis(t)
	rc, err := NewRedis("redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	backends := map[string]Cache{
		"memory": NewMemory(time.Minute),
		"redis":  rc,
	}

	for name, c := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			_, err := c.Get(ctx, name+"-missing")
			assert.ErrorIs(t, err, ErrCacheMiss)

			require.NoError(t, c.Set(ctx, name+"-all", []byte(`{"openapi":"3.0.1"}`), 0))
			got, err := c.Get(ctx, name+"-all")
			require.NoError(t, err)
			assert.JSONEq(t, `{"openapi":"3.0.1"}`, string(got))

			require.NoError(t, c.Delete(ctx, name+"-all"))
			_, err = c.Get(ctx, name+"-all")
			assert.ErrorIs(t, err, ErrCacheMiss)

			require.NoError(t, c.Set(ctx, name+"-a", []byte("1"), 0))
			require.NoError(t, c.Set(ctx, name+"-b", []byte("2"), 0))
			require.NoError(t, c.Clear(ctx))
			_, err = c.Get(ctx, name+"-a")
			assert.ErrorIs(t, err, ErrCacheMiss)
			_, err = c.Get(ctx, name+"-b")
			assert.ErrorIs(t, err, ErrCacheMiss)
		})
	}
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), -1))

	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, c.Len(), "expired entry dropped on read")

	now = now.Add(24 * time.Hour)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	t.Parallel()

	c := NewMemory(0)
	ctx := context.Background()

	v := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", v, 0))
	v[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestRedis_TTLAndPrefix(t *testing.T) {
	t.Parallel()

	mr := setupMiniRedis(t)
	require.NoError(t, mr.Set("unrelated", "keep"))

	c, err := NewRedis("redis://"+mr.Addr(), time.Minute, WithKeyPrefix("test:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "all", []byte("doc"), 0))
	assert.True(t, mr.Exists("test:all"))
	assert.Equal(t, time.Minute, mr.TTL("test:all"))

	mr.FastForward(time.Minute)
	_, err = c.Get(ctx, "all")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "identity", []byte("doc"), 0))
	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:identity"))
	assert.True(t, mr.Exists("unrelated"), "clear only touches prefixed keys")
}
