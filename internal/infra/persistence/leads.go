package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
)

// KeyLeads 配置存储中保存线索列表的键
const KeyLeads = "leads"

var ErrLeadNotFound = errors.New("lead not found")

// LeadStore 线索存储,按写入顺序返回
type LeadStore interface {
	All(ctx context.Context) ([]*model.Lead, error)
	Get(ctx context.Context, id string) (*model.Lead, error)
	// Add 追加一条线索,id 已存在时返回 false 且不修改已有记录
	Add(ctx context.Context, lead *model.Lead) (bool, error)
	Update(ctx context.Context, id string, patch model.LeadPatch) error
	Delete(ctx context.Context, id string) error
	Unexported(ctx context.Context) ([]*model.Lead, error)
	MarkExported(ctx context.Context, ids []string, at time.Time) error
	Clear(ctx context.Context) error
}

// Searcher 根据自然语言查询检索相关线索
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]*model.Lead, error)
}

func unexported(leads []*model.Lead) []*model.Lead {
	out := make([]*model.Lead, 0, len(leads))
	for _, l := range leads {
		if !l.Exported {
			out = append(out, l)
		}
	}
	return out
}
