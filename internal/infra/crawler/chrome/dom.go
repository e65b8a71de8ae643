package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
)

var ErrElementDetached = errors.New("element detached from document")

// keyAttr 元素标识写入的属性,对应 dataset.llfKey
// 查询元素会在页面节点上写入该属性,HTML/InnerHTML 返回的标记中已去掉
const keyAttr = "data-llf-key"

// prelude 每次求值前注入的辅助函数,结果统一序列化为 JSON 字符串
const prelude = `const find = k => document.querySelector('[` + keyAttr + `="' + k + '"]');
const keyOf = el => { if (!el.dataset.llfKey) { window.__llfSeq = (window.__llfSeq || 0) + 1; el.dataset.llfKey = 'k' + window.__llfSeq; } return el.dataset.llfKey; };
const clean = el => { const c = el.cloneNode(true); c.removeAttribute('` + keyAttr + `'); c.querySelectorAll('[` + keyAttr + `]').forEach(n => n.removeAttribute('` + keyAttr + `')); return c; };
const out = v => JSON.stringify(v === undefined ? null : v);`

// runtime 浏览器驱动需要提供的底层能力
type runtime interface {
	// evaluate 执行 JS 表达式并返回字符串结果
	evaluate(ctx context.Context, expr string) (string, error)
	click(ctx context.Context, selector string) error
	input(ctx context.Context, selector, value string, submit bool) error
}

// domPage 基于 JS 求值实现 types.Page 中与驱动无关的部分
type domPage struct {
	rt  runtime
	ctx context.Context
}

func keySelector(key string) string {
	return `[` + keyAttr + `=` + strconv.Quote(key) + `]`
}

func script(body string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("序列化脚本参数失败: %w", err)
	}
	return "(() => {\n" + prelude + "\nconst A = " + string(raw) + ";\n" + body + "\n})()", nil
}

func (d *domPage) call(ctx context.Context, out any, body string, args ...any) error {
	expr, err := script(body, args...)
	if err != nil {
		return err
	}
	res, err := d.rt.evaluate(ctx, expr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res), out); err != nil {
		return fmt.Errorf("解析脚本结果失败: %w", err)
	}
	return nil
}

func (d *domPage) elements(keys []string) []types.Element {
	elements := make([]types.Element, 0, len(keys))
	for _, k := range keys {
		elements = append(elements, &domElement{page: d, key: k})
	}
	return elements
}

func (d *domPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.call(ctx, &html, `return out(clean(document.documentElement).outerHTML);`)
	return html, err
}

func (d *domPage) VisibleText(ctx context.Context) (string, error) {
	var text string
	err := d.call(ctx, &text, `return out(document.body ? document.body.innerText : '');`)
	return text, err
}

func (d *domPage) Body(ctx context.Context) (types.Element, error) {
	var key *string
	if err := d.call(ctx, &key, `return out(document.body ? keyOf(document.body) : null);`); err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrElementDetached
	}
	return &domElement{page: d, key: *key}, nil
}

func (d *domPage) QueryAll(ctx context.Context, selector string) ([]types.Element, error) {
	var keys []string
	if err := d.call(ctx, &keys, `return out(Array.from(document.querySelectorAll(A[0])).map(keyOf));`, selector); err != nil {
		return nil, fmt.Errorf("查询 %s 失败: %w", selector, err)
	}
	return d.elements(keys), nil
}

func (d *domPage) ScrollBy(ctx context.Context, fraction float64) error {
	return d.call(ctx, nil, `window.scrollBy(0, window.innerHeight * A[0]); return out(true);`, fraction)
}

func (d *domPage) ScrollToTop(ctx context.Context) error {
	return d.call(ctx, nil, `window.scrollTo(0, 0); return out(true);`)
}

// Download 通过带 download 属性的链接触发下载,保存目录由浏览器下载行为决定
func (d *domPage) Download(ctx context.Context, href, filename string) error {
	return d.call(ctx, nil, `const a = document.createElement('a');
a.href = A[0];
a.download = A[1];
a.style.display = 'none';
document.body.appendChild(a);
a.click();
a.remove();
return out(true);`, href, filename)
}

type domElement struct {
	page *domPage
	key  string
}

var _ types.Element = (*domElement)(nil)

func (e *domElement) do(out any, body string, args ...any) error {
	ctx, cancel := context.WithTimeout(e.page.ctx, actionTimeout)
	defer cancel()
	return e.page.call(ctx, out, body, append([]any{e.key}, args...)...)
}

func (e *domElement) Key() string { return e.key }

func (e *domElement) Text() string {
	var text string
	_ = e.do(&text, `const e = find(A[0]); return out(e ? e.textContent : '');`)
	return text
}

func (e *domElement) InnerText() string {
	var text string
	_ = e.do(&text, `const e = find(A[0]); return out(e ? e.innerText : '');`)
	return text
}

type attrResult struct {
	OK    bool   `json:"ok"`
	Value string `json:"v"`
}

func (e *domElement) Attr(name string) (string, bool) {
	var res attrResult
	if err := e.do(&res, `const e = find(A[0]);
const ok = !!(e && e.hasAttribute(A[1]));
return out({ok: ok, v: ok ? e.getAttribute(A[1]) : ''});`, name); err != nil {
		return "", false
	}
	return res.Value, res.OK
}

func (e *domElement) InnerHTML() (string, error) {
	var res attrResult
	if err := e.do(&res, `const e = find(A[0]); return out({ok: !!e, v: e ? clean(e).innerHTML : ''});`); err != nil {
		return "", err
	}
	if !res.OK {
		return "", ErrElementDetached
	}
	return res.Value, nil
}

func (e *domElement) Visible() bool {
	var visible bool
	_ = e.do(&visible, `const e = find(A[0]); return out(!!(e && e.offsetParent !== null));`)
	return visible
}

func (e *domElement) Matches(selector string) bool {
	var matched bool
	_ = e.do(&matched, `const e = find(A[0]); return out(!!(e && e.matches(A[1])));`, selector)
	return matched
}

func (e *domElement) Closest(selector string) (types.Element, bool) {
	var key *string
	if err := e.do(&key, `const e = find(A[0]);
const c = e ? e.closest(A[1]) : null;
return out(c ? keyOf(c) : null);`, selector); err != nil || key == nil {
		return nil, false
	}
	return &domElement{page: e.page, key: *key}, true
}

func (e *domElement) QueryAll(selector string) []types.Element {
	var keys []string
	if err := e.do(&keys, `const e = find(A[0]);
return out(e ? Array.from(e.querySelectorAll(A[1])).map(keyOf) : []);`, selector); err != nil {
		return nil
	}
	return e.page.elements(keys)
}

func (e *domElement) Click() error {
	ctx, cancel := context.WithTimeout(e.page.ctx, actionTimeout)
	defer cancel()
	return e.page.rt.click(ctx, keySelector(e.key))
}

func (e *domElement) ScrollIntoView() error {
	var found bool
	if err := e.do(&found, `const e = find(A[0]);
if (e) e.scrollIntoView({behavior: 'smooth', block: 'center'});
return out(!!e);`); err != nil {
		return err
	}
	if !found {
		return ErrElementDetached
	}
	return nil
}

func (e *domElement) SetValue(value string, submit bool) error {
	ctx, cancel := context.WithTimeout(e.page.ctx, actionTimeout)
	defer cancel()
	return e.page.rt.input(ctx, keySelector(e.key), value, submit)
}

func (e *domElement) Mark(class, badge string) error {
	var found bool
	if err := e.do(&found, `const e = find(A[0]);
if (!e) return out(false);
if (e.classList.contains(A[1])) return out(true);
e.classList.add(A[1]);
if (A[2]) {
  const b = document.createElement('div');
  b.className = A[3];
  b.textContent = A[2];
  e.appendChild(b);
}
return out(true);`, class, badge, types.BadgeClass); err != nil {
		return err
	}
	if !found {
		return ErrElementDetached
	}
	return nil
}
