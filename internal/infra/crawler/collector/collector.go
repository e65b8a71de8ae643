package collector

import (
	"context"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
)

// SnapshotCollector 静态抓取页面,不执行脚本
type SnapshotCollector interface {
	Fetch(ctx context.Context, url string) (*types.Snapshot, error)
}
