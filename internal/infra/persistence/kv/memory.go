package kv

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const watchBuffer = 64

// MemoryStore 进程内存储,用于单次运行与测试
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[int]chan ChangeSet
	nextID   int
	closed   bool
	done     chan struct{}
	logger   *zap.Logger
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		data:     map[string][]byte{},
		watchers: map[int]chan ChangeSet{},
		done:     make(chan struct{}),
		logger:   logger.Named("kv"),
	}
}

func (m *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, values map[string]any) error {
	encoded, err := encode(values)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	changes := make(ChangeSet, len(encoded))
	for k, v := range encoded {
		changes[k] = Change{OldValue: m.data[k], NewValue: v}
		m.data[k] = v
	}
	m.broadcast(changes)
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	changes := ChangeSet{}
	for _, k := range keys {
		old, ok := m.data[k]
		if !ok {
			continue
		}
		delete(m.data, k)
		changes[k] = Change{OldValue: old}
	}
	if len(changes) > 0 {
		m.broadcast(changes)
	}
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context) (<-chan ChangeSet, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan ChangeSet, watchBuffer)
	id := m.nextID
	m.nextID++
	m.watchers[id] = ch
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
	}()
	return ch, nil
}

// Close 关闭所有变更通道
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	return nil
}

// broadcast 调用方持有锁,订阅者积压时丢弃本次变更
func (m *MemoryStore) broadcast(changes ChangeSet) {
	for id, ch := range m.watchers {
		select {
		case ch <- changes:
		default:
			m.logger.Warn("变更订阅者积压,丢弃变更", zap.Int("watcher", id))
		}
	}
}
