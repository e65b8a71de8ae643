package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

type ChromedpBrowser struct {
	cfg           config.BrowserConfig
	allocCtx      context.Context
	allocCtxFuc   context.CancelFunc
	browserCtx    context.Context
	browserCtxFuc context.CancelFunc
	lifeCtxFuc    context.CancelFunc
	logger        *zap.Logger
}

// InitChromedpBrowser 启动 chromedp 浏览器,LifeTime 大于 0 时到期自动关闭
func InitChromedpBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*ChromedpBrowser, error) {
	lifeCtx, cancelLife := context.WithCancel(context.WithoutCancel(ctx))
	if cfg.LifeTime > 0 {
		cancelLife()
		lifeCtx, cancelLife = context.WithTimeout(context.WithoutCancel(ctx), cfg.LifeTime)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(lifeCtx, allocatorOptions(cfg)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	b := &ChromedpBrowser{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCtxFuc:   cancelAlloc,
		browserCtx:    browserCtx,
		browserCtxFuc: cancelBrowser,
		lifeCtxFuc:    cancelLife,
		logger:        logger,
	}
	// 第一次 Run 才会真正启动浏览器进程
	if err := chromedp.Run(browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	logger.Info("chromedp 浏览器已启动", zap.Bool("headless", cfg.Headless))
	return b, nil
}

func (b *ChromedpBrowser) OpenPage(ctx context.Context, url string) (Tab, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	tab := &ChromedpTab{tabCtx: tabCtx, tabCtxFuc: cancelTab}
	tab.domPage = &domPage{rt: tab, ctx: ctx}

	actions := []chromedp.Action{network.Enable()}
	if b.cfg.DownloadDir != "" {
		actions = append(actions, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).WithDownloadPath(b.cfg.DownloadDir))
	}
	if url != "" {
		actions = append(actions, chromedp.Navigate(url))
	}
	if err := tab.run(ctx, actions...); err != nil {
		cancelTab()
		return nil, fmt.Errorf("打开页面 %s 失败: %w", url, err)
	}
	return tab, nil
}

func (b *ChromedpBrowser) Close() error {
	b.browserCtxFuc()
	b.allocCtxFuc()
	b.lifeCtxFuc()
	return nil
}

// ChromedpTab chromedp 的一个标签页上下文
type ChromedpTab struct {
	*domPage
	tabCtx    context.Context
	tabCtxFuc context.CancelFunc
}

var _ Tab = (*ChromedpTab)(nil)

// run 在标签页上下文中执行动作,ctx 结束时中断动作但不关闭标签页
func (t *ChromedpTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (t *ChromedpTab) evaluate(ctx context.Context, expr string) (string, error) {
	var res string
	if err := t.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return "", err
	}
	return res, nil
}

func (t *ChromedpTab) click(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (t *ChromedpTab) input(ctx context.Context, selector, value string, submit bool) error {
	actions := []chromedp.Action{
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
	if submit {
		actions = append(actions, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
	}
	return t.run(ctx, actions...)
}

func (t *ChromedpTab) URL() string {
	ctx, cancel := context.WithTimeout(t.ctx, actionTimeout)
	defer cancel()
	var url string
	_ = t.run(ctx, chromedp.Location(&url))
	return url
}

func (t *ChromedpTab) Title() string {
	ctx, cancel := context.WithTimeout(t.ctx, actionTimeout)
	defer cancel()
	var title string
	_ = t.run(ctx, chromedp.Title(&title))
	return title
}

func (t *ChromedpTab) Navigate(ctx context.Context, url string) error {
	if err := t.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("导航到 %s 失败: %w", url, err)
	}
	return nil
}

func (t *ChromedpTab) WaitUntilLoaded(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (t *ChromedpTab) Close() error {
	err := chromedp.Cancel(t.tabCtx)
	t.tabCtxFuc()
	return err
}
