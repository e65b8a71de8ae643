package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"
	"github.com/elastic/go-elasticsearch/v9/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types/enums/refresh"
	"go.uber.org/zap"
)

type typedEsClient[D model.Document] struct {
	client  *elasticsearch.TypedClient
	index   string
	mapping *types.TypeMapping
	logger  *zap.Logger
}

// InitTypedEsClient 创建 es 客户端,index 为空时使用文档类型自带的索引名
func InitTypedEsClient[D model.Document](cfg config.LeadsConfig, logger *zap.Logger) (TypedEsClient[D], error) {
	typedClient, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Addresses: []string{cfg.Address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			// 跳过TLS验证（仅在开发环境中使用）
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Elasticsearch client: %w", err)
	}
	return NewTypedEsClient[D](typedClient, cfg.Index, cfg.Dims, logger), nil
}

// NewTypedEsClient 包装已有的客户端,dims 为向量维度,不大于 0 时使用默认维度
func NewTypedEsClient[D model.Document](client *elasticsearch.TypedClient, index string, dims int, logger *zap.Logger) TypedEsClient[D] {
	if logger == nil {
		logger = zap.NewNop()
	}
	// 仅用于读取索引名与 mapping
	schemaDoc := D(new(model.Lead))
	if index == "" {
		index = schemaDoc.GetIndex()
	}
	return &typedEsClient[D]{client: client, index: index, mapping: schemaDoc.TypeMapping(dims), logger: logger.Named("es")}
}

func (tec *typedEsClient[D]) Index() string {
	return tec.index
}

func (tec *typedEsClient[D]) CreateIndexWithMapping(ctx context.Context) error {
	exists, err := tec.client.Indices.Exists(tec.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index existence in es: %w", err)
	}
	if exists {
		tec.logger.Debug("索引已存在,跳过创建", zap.String("index", tec.index))
		return nil
	}
	if tec.mapping == nil {
		_, err = tec.client.Indices.Create(tec.index).Do(ctx)
	} else {
		_, err = tec.client.Indices.Create(tec.index).Mappings(tec.mapping).Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to create index in es: %w", err)
	}
	tec.logger.Info("索引已创建", zap.String("index", tec.index))
	return nil
}

func (tec *typedEsClient[D]) DeleteIndex(ctx context.Context) error {
	if _, err := tec.client.Indices.Delete(tec.index).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete index in es: %w", err)
	}
	return nil
}

// IndexDocWithID 写入后等待刷新,随后的查询可以读到该文档
func (tec *typedEsClient[D]) IndexDocWithID(ctx context.Context, doc D) error {
	_, err := tec.client.Index(tec.index).
		Id(doc.GetID()).
		Document(doc).
		Refresh(refresh.Waitfor).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index doc to es: %w", err)
	}
	return nil
}

func (tec *typedEsClient[D]) GetDoc(ctx context.Context, id string) (D, error) {
	var zero D
	resp, err := tec.client.Get(tec.index, id).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return zero, ErrDocNotFound
		}
		return zero, fmt.Errorf("failed to get doc from es: %w", err)
	}
	if !resp.Found {
		return zero, ErrDocNotFound
	}
	doc := D(new(model.Lead))
	if err := json.Unmarshal(resp.Source_, doc); err != nil {
		return zero, fmt.Errorf("failed to unmarshal source: %w", err)
	}
	return doc, nil
}

func (tec *typedEsClient[D]) SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error) {
	resp, err := tec.client.Search().
		Index(tec.index).
		Query(query).
		From(from).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("搜索失败: %w", err)
	}
	var total int64
	if resp.Hits.Total != nil {
		total = resp.Hits.Total.Value
	}
	return tec.decodeHits(resp.Hits.Hits), total, nil
}

// KnnSearch 在 embedding 字段上做近邻检索
func (tec *typedEsClient[D]) KnnSearch(ctx context.Context, vector []float32, k, numCandidates int) ([]D, error) {
	resp, err := tec.client.Search().Index(tec.index).
		Request(&search.Request{
			Knn: []types.KnnSearch{
				{
					Field:         "embedding",
					QueryVector:   vector,
					K:             &k,
					NumCandidates: &numCandidates,
				},
			},
		}).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	return tec.decodeHits(resp.Hits.Hits), nil
}

func (tec *typedEsClient[D]) decodeHits(hits []types.Hit) []D {
	results := make([]D, 0, len(hits))
	for _, hit := range hits {
		doc := D(new(model.Lead))
		if err := json.Unmarshal(hit.Source_, doc); err != nil {
			tec.logger.Warn("无法解析文档", zap.Error(err))
			continue
		}
		results = append(results, doc)
	}
	return results
}

// UpdateDoc 部分更新
func (tec *typedEsClient[D]) UpdateDoc(ctx context.Context, id string, partial any) error {
	_, err := tec.client.Update(tec.index, id).
		Doc(partial).
		Refresh(refresh.Waitfor).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return ErrDocNotFound
		}
		return fmt.Errorf("failed to update doc in es: %w", err)
	}
	return nil
}

func (tec *typedEsClient[D]) BulkUpdateDocs(ctx context.Context, ids []string, partial any) error {
	if len(ids) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string]any{"doc": partial})
	if err != nil {
		return fmt.Errorf("编码更新内容失败: %w", err)
	}
	return tec.bulk(ctx, "update", len(ids), func(i int) (string, []byte, error) {
		return ids[i], body, nil
	})
}

func (tec *typedEsClient[D]) DeleteDoc(ctx context.Context, id string) error {
	_, err := tec.client.Delete(tec.index, id).Refresh(refresh.Waitfor).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return ErrDocNotFound
		}
		return fmt.Errorf("failed to delete doc from es: %w", err)
	}
	return nil
}

// bulk 通过 BulkIndexer 批量提交,所有条目的失败汇总为一个错误
func (tec *typedEsClient[D]) bulk(ctx context.Context, action string, n int, item func(i int) (string, []byte, error)) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         tec.index,
		Client:        tec.client,
		NumWorkers:    2,
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 30 * time.Second,
		Refresh:       "wait_for",
		OnError: func(ctx context.Context, err error) {
			fail(fmt.Errorf("bulk indexer: %w", err))
		},
	})
	if err != nil {
		return fmt.Errorf("error creating bulk indexer: %w", err)
	}

	for i := range n {
		id, body, err := item(i)
		if err != nil {
			fail(fmt.Errorf("document %s: %w", id, err))
			continue
		}
		bulkItem := esutil.BulkIndexerItem{
			Action:     action,
			DocumentID: id,
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					fail(fmt.Errorf("%s document %s: %w", action, item.DocumentID, err))
					return
				}
				fail(fmt.Errorf("%s document %s: %s", action, item.DocumentID, res.Error.Reason))
			},
		}
		if body != nil {
			bulkItem.Body = bytes.NewReader(body)
		}
		if err := bi.Add(ctx, bulkItem); err != nil {
			fail(err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		fail(fmt.Errorf("error closing bulk indexer: %w", err))
	}
	stats := bi.Stats()
	tec.logger.Debug("批量操作完成",
		zap.String("action", action),
		zap.Uint64("indexed", stats.NumIndexed),
		zap.Uint64("updated", stats.NumUpdated),
		zap.Uint64("deleted", stats.NumDeleted),
		zap.Uint64("failed", stats.NumFailed),
	)
	if len(errs) > 0 {
		return fmt.Errorf("%d errors occurred: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func isNotFound(err error) bool {
	var esErr *types.ElasticsearchError
	return errors.As(err, &esErr) && esErr.Status == http.StatusNotFound
}
