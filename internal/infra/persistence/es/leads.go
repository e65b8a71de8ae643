package es

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/embedding"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"go.uber.org/zap"
)

const (
	maxListSize   = 10000
	numCandidates = 100
)

// LeadStore 线索保存在 es 中,配置了嵌入器时写入前生成向量并支持 kNN 检索
type LeadStore struct {
	client   TypedEsClient[*model.Lead]
	embedder embedding.Embedder
	logger   *zap.Logger
}

var (
	_ persistence.LeadStore = (*LeadStore)(nil)
	_ persistence.Searcher  = (*LeadStore)(nil)
)

// NewLeadStore embedder 可以为 nil
func NewLeadStore(client TypedEsClient[*model.Lead], embedder embedding.Embedder, logger *zap.Logger) *LeadStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadStore{client: client, embedder: embedder, logger: logger.Named("es.leads")}
}

// InitLeadStore 连接 es 并确保索引存在
func InitLeadStore(ctx context.Context, client TypedEsClient[*model.Lead], embedder embedding.Embedder, logger *zap.Logger) (*LeadStore, error) {
	if err := client.CreateIndexWithMapping(ctx); err != nil {
		return nil, err
	}
	return NewLeadStore(client, embedder, logger), nil
}

func (s *LeadStore) All(ctx context.Context) ([]*model.Lead, error) {
	leads, _, err := s.client.SearchDoc(ctx, &types.Query{MatchAll: &types.MatchAllQuery{}}, 0, maxListSize)
	if err != nil {
		return nil, err
	}
	sortByTime(leads)
	return leads, nil
}

func (s *LeadStore) Get(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.client.GetDoc(ctx, id)
	if errors.Is(err, ErrDocNotFound) {
		return nil, persistence.ErrLeadNotFound
	}
	return lead, err
}

func (s *LeadStore) Add(ctx context.Context, lead *model.Lead) (bool, error) {
	_, err := s.client.GetDoc(ctx, lead.ID)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrDocNotFound):
		return false, err
	}
	if s.embedder != nil && len(lead.Embedding) == 0 {
		vectors, err := s.embedder.Embed(ctx, []string{lead.GetEmbeddingString()})
		if err != nil || len(vectors) == 0 {
			s.logger.Warn("生成线索向量失败,不带向量写入", zap.String("id", lead.ID), zap.Error(err))
		} else {
			lead.SetEmbedding(vectors[0])
		}
	}
	if err := s.client.IndexDocWithID(ctx, lead); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LeadStore) Update(ctx context.Context, id string, patch model.LeadPatch) error {
	err := s.client.UpdateDoc(ctx, id, patch)
	if errors.Is(err, ErrDocNotFound) {
		return fmt.Errorf("%w: %s", persistence.ErrLeadNotFound, id)
	}
	return err
}

func (s *LeadStore) Delete(ctx context.Context, id string) error {
	err := s.client.DeleteDoc(ctx, id)
	if errors.Is(err, ErrDocNotFound) {
		return fmt.Errorf("%w: %s", persistence.ErrLeadNotFound, id)
	}
	return err
}

func (s *LeadStore) Unexported(ctx context.Context) ([]*model.Lead, error) {
	query := &types.Query{Term: map[string]types.TermQuery{"exported": {Value: false}}}
	leads, _, err := s.client.SearchDoc(ctx, query, 0, maxListSize)
	if err != nil {
		return nil, err
	}
	sortByTime(leads)
	return leads, nil
}

func (s *LeadStore) MarkExported(ctx context.Context, ids []string, at time.Time) error {
	exported := true
	return s.client.BulkUpdateDocs(ctx, ids, model.LeadPatch{Exported: &exported, ExportedAt: &at})
}

// Clear 删除并重建索引
func (s *LeadStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteIndex(ctx); err != nil {
		return err
	}
	return s.client.CreateIndexWithMapping(ctx)
}

// Search 有嵌入器时做 kNN 检索,否则退回全文检索
func (s *LeadStore) Search(ctx context.Context, query string, k int) ([]*model.Lead, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, embedding.ErrVectorCount
		}
		return s.client.KnnSearch(ctx, vectors[0], k, max(numCandidates, k))
	}
	leads, _, err := s.client.SearchDoc(ctx, &types.Query{
		MultiMatch: &types.MultiMatchQuery{
			Query:  query,
			Fields: []string{"postContent", "authorName", "aiReason", "keywordMatched"},
		},
	}, 0, k)
	return leads, err
}

func sortByTime(leads []*model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].Timestamp.Before(leads[j].Timestamp) })
}
