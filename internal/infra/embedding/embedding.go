package embedding

import "context"

// Embedder 将文本转换为向量
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	BatchSize() int
}

// EmbedAll 按批量大小分批调用 Embed,返回与 texts 一一对应的向量
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	size := e.BatchSize()
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}
