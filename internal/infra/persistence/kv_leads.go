package persistence

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/kv"
	"go.uber.org/zap"
)

// KVLeadStore 线索以 json 数组保存在配置存储的 leads 键下
type KVLeadStore struct {
	store  kv.Store
	logger *zap.Logger
	mu     sync.Mutex
}

var (
	_ LeadStore = (*KVLeadStore)(nil)
	_ Searcher  = (*KVLeadStore)(nil)
)

func NewKVLeadStore(store kv.Store, logger *zap.Logger) *KVLeadStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVLeadStore{store: store, logger: logger.Named("leads")}
}

func (s *KVLeadStore) load(ctx context.Context) ([]*model.Lead, error) {
	leads, _, err := kv.GetJSON[[]*model.Lead](ctx, s.store, KeyLeads)
	if err != nil {
		return nil, fmt.Errorf("读取线索失败: %w", err)
	}
	return leads, nil
}

func (s *KVLeadStore) save(ctx context.Context, leads []*model.Lead) error {
	if leads == nil {
		leads = []*model.Lead{}
	}
	if err := s.store.Set(ctx, map[string]any{KeyLeads: leads}); err != nil {
		return fmt.Errorf("保存线索失败: %w", err)
	}
	return nil
}

func (s *KVLeadStore) All(ctx context.Context) ([]*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *KVLeadStore) Get(ctx context.Context, id string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leads, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrLeadNotFound
}

func (s *KVLeadStore) Add(ctx context.Context, lead *model.Lead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leads, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(leads, func(l *model.Lead) bool { return l.ID == lead.ID }) {
		return false, nil
	}
	if err := s.save(ctx, append(leads, lead)); err != nil {
		return false, err
	}
	s.logger.Debug("线索已保存", zap.String("id", lead.ID), zap.String("author", lead.AuthorName))
	return true, nil
}

func (s *KVLeadStore) Update(ctx context.Context, id string, patch model.LeadPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leads, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(leads, func(l *model.Lead) bool { return l.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLeadNotFound, id)
	}
	patch.Apply(leads[i])
	return s.save(ctx, leads)
}

func (s *KVLeadStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leads, err := s.load(ctx)
	if err != nil {
		return err
	}
	filtered := slices.DeleteFunc(slices.Clone(leads), func(l *model.Lead) bool { return l.ID == id })
	if len(filtered) == len(leads) {
		return fmt.Errorf("%w: %s", ErrLeadNotFound, id)
	}
	return s.save(ctx, filtered)
}

func (s *KVLeadStore) Unexported(ctx context.Context) ([]*model.Lead, error) {
	leads, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return unexported(leads), nil
}

// MarkExported 未知的 id 被忽略
func (s *KVLeadStore) MarkExported(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	leads, err := s.load(ctx)
	if err != nil {
		return err
	}
	exported := true
	patch := model.LeadPatch{Exported: &exported, ExportedAt: &at}
	for _, l := range leads {
		if slices.Contains(ids, l.ID) {
			patch.Apply(l)
		}
	}
	return s.save(ctx, leads)
}

func (s *KVLeadStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, nil)
}

// Search 按查询词在作者、正文与关键词中的命中次数排序,没有命中的线索不返回
func (s *KVLeadStore) Search(ctx context.Context, query string, k int) ([]*model.Lead, error) {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}
	leads, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	type scored struct {
		lead  *model.Lead
		score int
	}
	var hits []scored
	for _, l := range leads {
		text := strings.ToLower(l.GetEmbeddingString())
		score := 0
		for _, t := range terms {
			score += strings.Count(text, t)
		}
		if score > 0 {
			hits = append(hits, scored{l, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]*model.Lead, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, h.lead)
	}
	return out, nil
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@' && r != '.'
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
