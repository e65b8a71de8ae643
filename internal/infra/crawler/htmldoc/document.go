package htmldoc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
)

// DownloadRecord 一次下载请求
type DownloadRecord struct {
	Href     string
	Filename string
}

// Document 基于 goquery 的静态页面,实现 types.Page
// 用于 colly 抓取的快照与测试,点击/滚动/导航只做记录并触发可选的回调
type Document struct {
	mu sync.Mutex

	url string
	doc *goquery.Document

	clicked     []string
	scrolls     int
	scrollTops  int
	intoView    int
	navigations []string
	downloads   []DownloadRecord
	submitted   []string

	// OnClick 点击元素后调用,可在回调中修改文档
	OnClick func(d *Document, el types.Element)
	// OnScroll 每次 ScrollBy 后调用
	OnScroll func(d *Document)
	// OnNavigate 导航时调用,返回错误表示导航失败
	OnNavigate func(d *Document, url string) error
}

var _ types.Page = (*Document)(nil)

// New 解析 html 创建页面
func New(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析html失败: %w", err)
	}
	return &Document{url: url, doc: doc}, nil
}

// FromSnapshot 由抓取快照创建页面
func FromSnapshot(s *types.Snapshot) (*Document, error) {
	return New(s.URL, string(s.Body))
}

// SetHTML 替换整个文档内容,已有元素引用失效
func (d *Document) SetHTML(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("解析html失败: %w", err)
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	return nil
}

// Append 在匹配元素的末尾追加 html
func (d *Document) Append(selector, html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).AppendHtml(html)
}

// Remove 删除匹配的元素
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).Remove()
}

func (d *Document) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *Document) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

func (d *Document) VisibleText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := d.doc.Find("body").First().Clone()
	body.Find("script, style, noscript").Remove()
	return collapse(body.Text()), nil
}

func (d *Document) Body(ctx context.Context) (types.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("document has no body")
	}
	return &element{doc: d, sel: body}, nil
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]types.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(d.doc.Find(selector)), nil
}

func (d *Document) ScrollBy(ctx context.Context, fraction float64) error {
	d.mu.Lock()
	d.scrolls++
	hook := d.OnScroll
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Document) ScrollToTop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollTops++
	return nil
}

func (d *Document) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.navigations = append(d.navigations, url)
	hook := d.OnNavigate
	d.mu.Unlock()
	if hook != nil {
		if err := hook(d, url); err != nil {
			return err
		}
	}
	d.SetURL(url)
	return nil
}

func (d *Document) Download(ctx context.Context, href, filename string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloads = append(d.downloads, DownloadRecord{Href: href, Filename: filename})
	return nil
}

// ClickedTexts 被点击元素的文本,按点击顺序
func (d *Document) ClickedTexts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicked...)
}

func (d *Document) Scrolls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolls
}

func (d *Document) ScrollTops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollTops
}

func (d *Document) ScrolledIntoView() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intoView
}

func (d *Document) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

func (d *Document) Downloads() []DownloadRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DownloadRecord(nil), d.downloads...)
}

func (d *Document) Submitted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.submitted...)
}

func (d *Document) wrap(sel *goquery.Selection) []types.Element {
	elements := make([]types.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &element{doc: d, sel: s})
	})
	return elements
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
