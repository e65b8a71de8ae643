package model

import (
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// DefaultDims nomic-embed-text 的向量维度
const DefaultDims = 768

// Document 可以写入 es 的文档
// 向量由 SetEmbedding 在索引前填充,维度在建索引时传给 TypeMapping
type Document interface {
	*Lead
	GetID() string
	GetIndex() string
	TypeMapping(dims int) *types.TypeMapping
	GetEmbeddingString() string
	SetEmbedding(embedding []float32)
}
