package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore 键值存储在 redis 中,变更通过 pub/sub 频道广播给所有进程
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
	logger  *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ Store = (*RedisStore)(nil)

// InitRedisStore 连接 redis 并检查连通性
func InitRedisStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接redis失败: %w", err)
	}
	return NewRedisStore(client, cfg.Prefix, cfg.Channel, logger), nil
}

func NewRedisStore(client *redis.Client, prefix, channel string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = prefix + "changes"
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		channel: channel,
		logger:  logger.Named("kv.redis"),
		done:    make(chan struct{}),
	}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	values, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[keys[i]] = json.RawMessage(s)
		}
	}
	return out, nil
}

func (r *RedisStore) Set(ctx context.Context, values map[string]any) error {
	encoded, err := encode(values)
	if err != nil {
		return err
	}
	if len(encoded) == 0 {
		return nil
	}

	cmds := make(map[string]*redis.StringCmd, len(encoded))
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range encoded {
			cmds[k] = pipe.GetSet(ctx, r.key(k), v)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("写入配置失败: %w", err)
	}

	changes := make(ChangeSet, len(encoded))
	for k, v := range encoded {
		change := Change{NewValue: v}
		if old, err := cmds[k].Result(); err == nil {
			change.OldValue = json.RawMessage(old)
		}
		changes[k] = change
	}
	return r.publish(ctx, changes)
}

func (r *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	gets := make(map[string]*redis.StringCmd, len(keys))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			gets[k] = pipe.Get(ctx, r.key(k))
			pipe.Del(ctx, r.key(k))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("删除配置失败: %w", err)
	}

	changes := ChangeSet{}
	for k, cmd := range gets {
		if old, err := cmd.Result(); err == nil {
			changes[k] = Change{OldValue: json.RawMessage(old)}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return r.publish(ctx, changes)
}

func (r *RedisStore) publish(ctx context.Context, changes ChangeSet) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("编码变更失败: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("广播配置变更失败", zap.Error(err))
	}
	return nil
}

// Watch 订阅变更频道,订阅确认后才返回
func (r *RedisStore) Watch(ctx context.Context) (<-chan ChangeSet, error) {
	select {
	case <-r.done:
		return nil, ErrClosed
	default:
	}
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("订阅配置变更失败: %w", err)
	}

	out := make(chan ChangeSet, watchBuffer)
	messages := sub.Channel()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var changes ChangeSet
				if err := json.Unmarshal([]byte(msg.Payload), &changes); err != nil {
					r.logger.Warn("无法解析配置变更", zap.Error(err))
					continue
				}
				select {
				case out <- changes:
				case <-ctx.Done():
					return
				case <-r.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisStore) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		err = r.client.Close()
	})
	return err
}
