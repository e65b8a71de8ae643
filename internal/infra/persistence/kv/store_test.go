package kv

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			s := NewMemoryStore(zaptest.NewLogger(t))
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client, "llf:", "llf:changes", zaptest.NewLogger(t))
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func receive(t *testing.T, ch <-chan ChangeSet) ChangeSet {
	t.Helper()
	select {
	case cs, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return nil
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s := open(t)

			changes, err := s.Watch(ctx)
			require.NoError(t, err)

			got, err := s.Get(ctx, "keywords")
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, s.Set(ctx, map[string]any{"keywords": []string{"hiring"}}))
			cs := receive(t, changes)
			require.Contains(t, cs, "keywords")
			assert.Empty(t, cs["keywords"].OldValue)
			assert.JSONEq(t, `["hiring"]`, string(cs["keywords"].NewValue))

			require.NoError(t, s.Set(ctx, map[string]any{"keywords": []string{"hiring", "cto"}}))
			cs = receive(t, changes)
			assert.JSONEq(t, `["hiring"]`, string(cs["keywords"].OldValue))
			assert.JSONEq(t, `["hiring","cto"]`, string(cs["keywords"].NewValue))

			keywords, ok, err := GetJSON[[]string](ctx, s, "keywords")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []string{"hiring", "cto"}, keywords)

			require.NoError(t, s.Set(ctx, map[string]any{"raw": json.RawMessage(`{"a":1}`)}))
			receive(t, changes)
			values, err := s.Get(ctx, "raw", "missing")
			require.NoError(t, err)
			assert.Len(t, values, 1)
			assert.JSONEq(t, `{"a":1}`, string(values["raw"]))

			require.NoError(t, s.Remove(ctx, "keywords", "missing"))
			cs = receive(t, changes)
			assert.Len(t, cs, 1)
			assert.JSONEq(t, `["hiring","cto"]`, string(cs["keywords"].OldValue))
			assert.Empty(t, cs["keywords"].NewValue)

			_, ok, err = GetJSON[[]string](ctx, s, "keywords")
			require.NoError(t, err)
			assert.False(t, ok)

			cancel()
			select {
			case _, open := <-changes:
				for open {
					_, open = <-changes
				}
			case <-time.After(2 * time.Second):
				t.Fatal("watch channel not closed after cancel")
			}
		})
	}
}

func TestMemoryStoreClose(t *testing.T) {
	s := NewMemoryStore(zaptest.NewLogger(t))
	changes, err := s.Watch(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, open := <-changes
	assert.False(t, open)

	_, err = s.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), map[string]any{"x": 1}), ErrClosed)
}

func TestRedisStoreSharesChangesAcrossClients(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	writer := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "llf:", "", zaptest.NewLogger(t))
	reader := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "llf:", "", zaptest.NewLogger(t))
	defer writer.Close()
	defer reader.Close()

	changes, err := reader.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, map[string]any{"settings": map[string]bool{"wholeWord": true}}))
	cs := receive(t, changes)
	assert.JSONEq(t, `{"wholeWord":true}`, string(cs["settings"].NewValue))

	raw, err := mr.Get("llf:settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"wholeWord":true}`, raw)

	require.NoError(t, reader.Close())
	_, open := <-changes
	assert.False(t, open)
}

func TestInitStore(t *testing.T) {
	ctx := context.Background()

	s, err := InitStore(ctx, config.StoreConfig{Kind: "memory"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = InitStore(ctx, config.StoreConfig{Kind: "redis", RedisAddr: mr.Addr(), Prefix: "llf:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = InitStore(ctx, config.StoreConfig{Kind: "etcd"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
