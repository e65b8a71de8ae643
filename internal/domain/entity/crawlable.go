package entity

import (
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
)

// 定义可转换为文档的实体接口
// D是文档类型,必须实现model.Document接口
type Crawlable[D model.Document] interface {
	*Record | *Post
	ToDocument(prov Provenance) D
}

// ToDocuments 批量转换
func ToDocuments[D model.Document, C Crawlable[D]](items []C, prov Provenance) []D {
	docs := make([]D, 0, len(items))
	for _, item := range items {
		docs = append(docs, item.ToDocument(prov))
	}
	return docs
}
