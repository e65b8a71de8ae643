package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/cloudwego/eino-ext/components/embedding/ollama"
)

var ErrVectorCount = errors.New("embedding count does not match input")

type ollamaEmbedder struct {
	model     *ollama.Embedder
	batchSize int
}

// InitEmbedder 初始化 ollama 嵌入器
func InitEmbedder(ctx context.Context, cfg config.EmbedderConfig) (Embedder, error) {
	model, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		Model:   cfg.Model,
		BaseURL: cfg.Host + ":" + strconv.Itoa(cfg.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化嵌入模型失败: %w", err)
	}
	return &ollamaEmbedder{model: model, batchSize: cfg.BatchSize}, nil
}

func (e *ollamaEmbedder) BatchSize() int {
	return e.batchSize
}

// Embed EmbedStrings 返回 float64 向量,es 的 dense_vector 使用 float32
func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.model.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("生成向量失败: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ErrVectorCount, len(texts), len(vectors))
	}
	return ToFloat32(vectors), nil
}

func ToFloat32(vectors [][]float64) [][]float32 {
	out := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		f := make([]float32, len(v))
		for i, x := range v {
			f[i] = float32(x)
		}
		out = append(out, f)
	}
	return out
}
