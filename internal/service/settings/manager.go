package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/kv"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"go.uber.org/zap"
)

// 配置存储中的键
const (
	KeyKeywords        = "keywords"
	KeySettings        = "settings"
	KeyStats           = "stats"
	KeyAutoSearchState = "llfAutoSearchState"

	MaxKeywordLength = 100
	MaxKeywords      = 50
)

var (
	ErrEmptyKeyword    = errors.New("please enter a keyword")
	ErrKeywordTooLong  = fmt.Errorf("keyword longer than %d characters", MaxKeywordLength)
	ErrTooManyKeywords = fmt.Errorf("at most %d keywords", MaxKeywords)
)

// Manager 管理关键词、运行期设置与统计
type Manager struct {
	store  kv.Store
	bus    notify.Publisher
	logger *zap.Logger
	now    func() time.Time

	// 同一进程内的读改写串行执行
	mu sync.Mutex
}

func NewManager(store kv.Store, bus notify.Publisher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Manager{store: store, bus: bus, logger: logger.Named("settings"), now: time.Now}
}

func (m *Manager) Keywords(ctx context.Context) ([]string, error) {
	keywords, _, err := kv.GetJSON[[]string](ctx, m.store, KeyKeywords)
	if err != nil {
		return nil, err
	}
	if keywords == nil {
		keywords = []string{}
	}
	return keywords, nil
}

func (m *Manager) SetKeywords(ctx context.Context, keywords []string) error {
	if len(keywords) > MaxKeywords {
		return ErrTooManyKeywords
	}
	return m.store.Set(ctx, map[string]any{KeyKeywords: keywords})
}

// AddKeyword 关键词已存在时返回 false
func (m *Manager) AddKeyword(ctx context.Context, keyword string) (bool, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false, ErrEmptyKeyword
	}
	if len([]rune(keyword)) > MaxKeywordLength {
		return false, ErrKeywordTooLong
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	keywords, err := m.Keywords(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(keywords, keyword) {
		return false, nil
	}
	if len(keywords) >= MaxKeywords {
		return false, ErrTooManyKeywords
	}
	if err := m.store.Set(ctx, map[string]any{KeyKeywords: append(keywords, keyword)}); err != nil {
		return false, err
	}
	m.logger.Info("添加关键词", zap.String("keyword", keyword))
	return true, nil
}

// RemoveKeyword 关键词不存在时返回 false
func (m *Manager) RemoveKeyword(ctx context.Context, keyword string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keywords, err := m.Keywords(ctx)
	if err != nil {
		return false, err
	}
	filtered := slices.DeleteFunc(slices.Clone(keywords), func(k string) bool { return k == keyword })
	if len(filtered) == len(keywords) {
		return false, nil
	}
	if err := m.store.Set(ctx, map[string]any{KeyKeywords: filtered}); err != nil {
		return false, err
	}
	return true, nil
}

// Settings 存储中的设置覆盖在默认值上
func (m *Manager) Settings(ctx context.Context) (config.Settings, error) {
	values, err := m.store.Get(ctx, KeySettings)
	if err != nil {
		return config.DefaultSettings(), err
	}
	s, err := config.MergeSettings(values[KeySettings])
	if err != nil {
		m.logger.Warn("设置无法解析,使用默认值", zap.Error(err))
		return s, nil
	}
	return s, nil
}

func (m *Manager) SaveSettings(ctx context.Context, s config.Settings) error {
	return m.store.Set(ctx, map[string]any{KeySettings: s})
}

// UpdateSettings 读取当前设置,修改后写回
func (m *Manager) UpdateSettings(ctx context.Context, update func(*config.Settings)) (config.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.Settings(ctx)
	if err != nil {
		return s, err
	}
	update(&s)
	return s, m.SaveSettings(ctx, s)
}

func (m *Manager) Stats(ctx context.Context) (model.Stats, error) {
	stats, _, err := kv.GetJSON[model.Stats](ctx, m.store, KeyStats)
	return stats, err
}

// RecordLead 新线索计入统计
func (m *Manager) RecordLead(ctx context.Context, lead *model.Lead) (model.Stats, error) {
	return m.updateStats(ctx, func(s *model.Stats) {
		s.TotalLeads++
		s.EmailsFound += len(lead.Emails)
		s.PhonesFound += len(lead.Phones)
	})
}

// RecordExport 导出成功后累加导出数量并记录同步时间
func (m *Manager) RecordExport(ctx context.Context, count int) (model.Stats, error) {
	at := m.now()
	return m.updateStats(ctx, func(s *model.Stats) {
		s.ExportedCount += count
		s.LastSync = &at
	})
}

func (m *Manager) ResetStats(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(ctx, map[string]any{KeyStats: model.Stats{}}); err != nil {
		return err
	}
	m.bus.Publish(notify.EventStatsUpdated, model.Stats{})
	return nil
}

func (m *Manager) updateStats(ctx context.Context, apply func(*model.Stats)) (model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, err := m.Stats(ctx)
	if err != nil {
		return stats, err
	}
	apply(&stats)
	if err := m.store.Set(ctx, map[string]any{KeyStats: stats}); err != nil {
		return stats, err
	}
	m.bus.Publish(notify.EventStatsUpdated, stats)
	return stats, nil
}

// Load 读取任意键,不存在时 ok 为 false
func (m *Manager) Load(ctx context.Context, key string, v any) (bool, error) {
	values, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *Manager) Save(ctx context.Context, key string, v any) error {
	return m.store.Set(ctx, map[string]any{key: v})
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.store.Remove(ctx, key)
}

// Store 底层配置存储,用于订阅变更
func (m *Manager) Store() kv.Store {
	return m.store
}
