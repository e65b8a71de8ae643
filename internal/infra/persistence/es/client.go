package es

import (
	"context"
	"errors"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

var ErrDocNotFound = errors.New("document not found")

// TypedEsClient 单个索引上的泛型文档操作,D 需实现 model.Document
type TypedEsClient[D model.Document] interface {
	Index() string
	CreateIndexWithMapping(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	IndexDocWithID(ctx context.Context, doc D) error
	GetDoc(ctx context.Context, id string) (D, error)
	SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error)
	KnnSearch(ctx context.Context, vector []float32, k, numCandidates int) ([]D, error)
	UpdateDoc(ctx context.Context, id string, partial any) error
	BulkUpdateDocs(ctx context.Context, ids []string, partial any) error
	DeleteDoc(ctx context.Context, id string) error
}
