package parallel

import (
	"context"
	"fmt"
	"sync"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/chrome"
	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

type rodTabPool struct {
	browser  *chrome.RodBrowser
	pagePool rod.Pool[rod.Page]
	size     int
	logger   *zap.Logger
}

// InitRodTabPool 启动一个浏览器,最多同时打开 size 个标签页
func InitRodTabPool(cfg config.BrowserConfig, size int, logger *zap.Logger) (TabPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("tab pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	browser, err := chrome.InitRodBrowser(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("创建标签页池", zap.Int("size", size))
	return &rodTabPool{
		browser:  browser,
		pagePool: rod.NewPagePool(size),
		size:     size,
		logger:   logger.Named("tabpool"),
	}, nil
}

func (p *rodTabPool) Size() int { return p.size }

// OpenPage 取出空闲标签页并导航,池满时阻塞直到有标签页归还
func (p *rodTabPool) OpenPage(ctx context.Context, url string) (chrome.Tab, error) {
	page, err := p.pagePool.Get(p.browser.NewRodPage)
	if err != nil {
		return nil, fmt.Errorf("获取页面失败: %w", err)
	}
	tab := &pooledTab{RodTab: chrome.NewRodTab(ctx, page), release: func() { p.pagePool.Put(page) }}
	if err := tab.Navigate(ctx, url); err != nil {
		_ = tab.Close()
		return nil, err
	}
	return tab, nil
}

func (p *rodTabPool) Close() error {
	p.logger.Info("关闭标签页池")
	p.pagePool.Cleanup(func(page *rod.Page) {
		if err := page.Close(); err != nil {
			p.logger.Debug("关闭页面失败", zap.Error(err))
		}
	})
	return p.browser.Close()
}

// pooledTab 关闭时归还到池中,页面本身保持打开
type pooledTab struct {
	*chrome.RodTab
	once    sync.Once
	release func()
}

func (t *pooledTab) Close() error {
	t.once.Do(t.release)
	return nil
}
