package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("kv store closed")

// Change 一个键的变更,值为 json,键被删除时 NewValue 为空
type Change struct {
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// ChangeSet 一次写入涉及的所有键
type ChangeSet map[string]Change

// Store 键值配置存储,值以 json 保存
// Watch 返回的通道在 ctx 结束或存储关闭时关闭
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
	Remove(ctx context.Context, keys ...string) error
	Watch(ctx context.Context) (<-chan ChangeSet, error)
	Close() error
}

// InitStore 按配置创建存储
func InitStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(logger), nil
	case "redis":
		r, err := InitRedisStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store kind: %s", cfg.Kind)
	}
}

// GetJSON 读取一个键并解码,键不存在时 ok 为 false
func GetJSON[T any](ctx context.Context, s Store, key string) (value T, ok bool, err error) {
	values, err := s.Get(ctx, key)
	if err != nil {
		return value, false, err
	}
	raw, ok := values[key]
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("解码 %s 失败: %w", key, err)
	}
	return value, true, nil
}

func encode(values map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(values))
	for k, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			out[k] = raw
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("编码 %s 失败: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}
