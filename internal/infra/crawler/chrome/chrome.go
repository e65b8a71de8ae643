package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"go.uber.org/zap"
)

// actionTimeout 单次点击、输入等元素操作的上限
const actionTimeout = 5 * time.Second

// Tab 浏览器中打开的一个标签页
type Tab interface {
	types.Page
	// WaitUntilLoaded 等待页面加载完成,超时返回错误,页面仍然可用
	WaitUntilLoaded(ctx context.Context, timeout time.Duration) error
	Close() error
}

// Browser 浏览器驱动,用于打开可操作的标签页
type Browser interface {
	OpenPage(ctx context.Context, url string) (Tab, error)
	Close() error
}

// InitBrowser 按 cfg.Driver 启动 rod 或 chromedp 驱动的浏览器
func InitBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "rod":
		b, err := InitRodBrowser(cfg, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "chromedp":
		b, err := InitChromedpBrowser(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", cfg.Driver)
	}
}
