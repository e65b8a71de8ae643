package parallel

import (
	"context"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/chrome"
)

// TabPool 固定容量的标签页池,Tab.Close 把标签页放回池中
type TabPool interface {
	Size() int
	OpenPage(ctx context.Context, url string) (chrome.Tab, error)
	Close() error
}
