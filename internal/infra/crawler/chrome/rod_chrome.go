package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type RodBrowser struct {
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger
}

// InitRodBrowser 启动 rod 浏览器
func InitRodBrowser(cfg config.BrowserConfig, logger *zap.Logger) (*RodBrowser, error) {
	l := CreateLauncher(false, LaunchOptionsFromConfig(cfg)...)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Trace(cfg.Trace)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	if cfg.DownloadDir != "" {
		err := proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: cfg.DownloadDir,
		}.Call(browser)
		if err != nil {
			logger.Warn("设置下载目录失败", zap.String("dir", cfg.DownloadDir), zap.Error(err))
		}
	}
	logger.Info("rod 浏览器已启动", zap.String("controlURL", controlURL), zap.Bool("headless", cfg.Headless))
	return &RodBrowser{cfg: cfg, launcher: l, browser: browser, logger: logger}, nil
}

// Rod 底层浏览器,供标签页池复用
func (b *RodBrowser) Rod() *rod.Browser { return b.browser }

// NewRodPage 创建一个空白页,开启 stealth 时注入反检测脚本
func (b *RodBrowser) NewRodPage() (*rod.Page, error) {
	if b.cfg.Stealth {
		return stealth.Page(b.browser)
	}
	return b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (b *RodBrowser) OpenPage(ctx context.Context, url string) (Tab, error) {
	page, err := b.NewRodPage()
	if err != nil {
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}
	tab := NewRodTab(ctx, page)
	if url != "" {
		if err := tab.Navigate(ctx, url); err != nil {
			_ = page.Close()
			return nil, err
		}
	}
	return tab, nil
}

func (b *RodBrowser) Close() error {
	if err := b.browser.Close(); err != nil {
		b.launcher.Kill()
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	return nil
}

// RodTab rod 页面上的标签页
type RodTab struct {
	*domPage
	page *rod.Page
}

var _ Tab = (*RodTab)(nil)

// NewRodTab 包装已有的 rod 页面,ctx 作为元素操作的父上下文
func NewRodTab(ctx context.Context, page *rod.Page) *RodTab {
	t := &RodTab{page: page}
	t.domPage = &domPage{rt: t, ctx: ctx}
	return t
}

// Page 底层 rod 页面
func (t *RodTab) Page() *rod.Page { return t.page }

func (t *RodTab) evaluate(ctx context.Context, expr string) (string, error) {
	res, err := t.page.Context(ctx).Eval("() => " + expr)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (t *RodTab) click(ctx context.Context, selector string) error {
	el, err := t.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("查找元素 %s 失败: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (t *RodTab) input(ctx context.Context, selector, value string, submit bool) error {
	el, err := t.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("查找输入框 %s 失败: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if err := el.Input(value); err != nil {
		return err
	}
	if submit {
		return el.Type(input.Enter)
	}
	return nil
}

func (t *RodTab) info() *proto.TargetTargetInfo {
	ctx, cancel := context.WithTimeout(t.ctx, actionTimeout)
	defer cancel()
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return &proto.TargetTargetInfo{}
	}
	return info
}

func (t *RodTab) URL() string { return t.info().URL }

func (t *RodTab) Title() string { return t.info().Title }

func (t *RodTab) Navigate(ctx context.Context, url string) error {
	p := t.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("导航到 %s 失败: %w", url, err)
	}
	return p.WaitLoad()
}

func (t *RodTab) WaitUntilLoaded(ctx context.Context, timeout time.Duration) error {
	return t.page.Context(ctx).Timeout(timeout).WaitLoad()
}

func (t *RodTab) Close() error {
	if err := t.page.Close(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPageClosed, err)
	}
	return nil
}
