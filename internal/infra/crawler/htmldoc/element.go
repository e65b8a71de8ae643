package htmldoc

import (
	"fmt"
	"html"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
)

type element struct {
	doc *Document
	sel *goquery.Selection
}

var _ types.Element = (*element)(nil)

func (e *element) Key() string {
	if len(e.sel.Nodes) == 0 {
		return ""
	}
	return fmt.Sprintf("%p", e.sel.Nodes[0])
}

func (e *element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.Text()
}

func (e *element) InnerText() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	clone := e.sel.Clone()
	clone.Find("script, style").Remove()
	return collapse(clone.Text())
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.Attr(name)
}

func (e *element) InnerHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.Html()
}

// Visible 静态文档没有布局,带 hidden 属性或 display:none 的元素及其子元素视为不可见
func (e *element) Visible() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if len(e.sel.Nodes) == 0 {
		return false
	}
	for s := e.sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false
		}
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

func (e *element) Matches(selector string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.Is(selector)
}

func (e *element) Closest(selector string) (types.Element, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	c := e.sel.Closest(selector)
	if c.Length() == 0 {
		return nil, false
	}
	return &element{doc: e.doc, sel: c.First()}, true
}

func (e *element) QueryAll(selector string) []types.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrap(e.sel.Find(selector))
}

func (e *element) Click() error {
	e.doc.mu.Lock()
	e.doc.clicked = append(e.doc.clicked, collapse(e.sel.Text()))
	hook := e.doc.OnClick
	e.doc.mu.Unlock()
	if hook != nil {
		hook(e.doc, e)
	}
	return nil
}

func (e *element) ScrollIntoView() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.intoView++
	return nil
}

func (e *element) SetValue(value string, submit bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.sel.SetAttr("value", value)
	if submit {
		e.doc.submitted = append(e.doc.submitted, value)
	}
	return nil
}

func (e *element) Mark(class, badge string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.sel.HasClass(class) {
		return nil
	}
	e.sel.AddClass(class)
	if badge != "" {
		e.sel.AppendHtml(`<div class="` + types.BadgeClass + `">` + html.EscapeString(badge) + `</div>`)
	}
	return nil
}
