package types

import (
	"context"
	"errors"
	"time"
)

var ErrPageClosed = errors.New("page closed")

const (
	// HighlightClass 命中关键词的帖子附加的样式类
	HighlightClass = "llf-matched-post"
	// BadgeClass Mark 追加的标签元素的样式类
	BadgeClass = "llf-match-badge"
)

// Element 页面上的一个 DOM 元素
// 元素方法绑定创建它时的页面上下文
type Element interface {
	// Key 元素在当前文档中的稳定标识,用于去重
	Key() string
	Text() string
	InnerText() string
	Attr(name string) (string, bool)
	InnerHTML() (string, error)
	// Visible 元素存在布局父节点 (offsetParent != null)
	Visible() bool
	Matches(selector string) bool
	Closest(selector string) (Element, bool)
	QueryAll(selector string) []Element
	Click() error
	ScrollIntoView() error
	// SetValue 设置输入框的值,submit 为 true 时模拟回车
	SetValue(value string, submit bool) error
	// Mark 为元素添加样式类并追加一个 BadgeClass 标签,已有该样式类时不做任何事
	Mark(class, badge string) error
}

// Page 执行器与扫描器依赖的页面能力
type Page interface {
	URL() string
	Title() string
	HTML(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	Body(ctx context.Context) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// ScrollBy 按视口高度的比例滚动
	ScrollBy(ctx context.Context, fraction float64) error
	ScrollToTop(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Download(ctx context.Context, href, filename string) error
}

// Snapshot 静态抓取到的页面
type Snapshot struct {
	URL       string
	Status    int
	Body      []byte
	FetchedAt time.Time
}

// QueryFirst 返回选择器匹配的第一个元素
func QueryFirst(ctx context.Context, p Page, selector string) (Element, bool) {
	elements, err := p.QueryAll(ctx, selector)
	if err != nil || len(elements) == 0 {
		return nil, false
	}
	return elements[0], true
}

// WaitForElement 轮询等待元素出现,超时返回 false 而不是错误
func WaitForElement(ctx context.Context, p Page, selector string, timeout, interval time.Duration) (Element, bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if el, ok := QueryFirst(ctx, p, selector); ok {
			return el, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
}
