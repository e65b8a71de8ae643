package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLauncher(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:             true,
		DisableBlinkFeatures: "AutomationControlled",
		Incognito:            true,
		DisableDevShmUsage:   true,
		NoSandbox:            true,
		UserAgent:            "leadagent-test",
		UserDataDir:          "/tmp/leadagent-profile",
		RemoteDebuggingPort:  9333,
	}
	l := CreateLauncher(false, LaunchOptionsFromConfig(cfg)...)

	assert.True(t, l.Has(flags.Headless))
	assert.True(t, l.Has(flags.Flag("incognito")))
	assert.True(t, l.Has(flags.Flag("disable-dev-shm-usage")))
	assert.True(t, l.Has(flags.NoSandbox))
	assert.Equal(t, "AutomationControlled", l.Get(flags.Flag("disable-blink-features")))
	assert.Equal(t, "leadagent-test", l.Get(flags.Flag("user-agent")))
	assert.Equal(t, "/tmp/leadagent-profile", l.Get(flags.UserDataDir))
	assert.Equal(t, "9333", l.Get(flags.RemoteDebuggingPort))

	t.Run("空选项不设置参数", func(t *testing.T) {
		l := CreateLauncher(false, WithHeadless(false))
		assert.False(t, l.Has(flags.Headless))
		assert.False(t, l.Has(flags.Flag("incognito")))
		assert.False(t, l.Has(flags.Flag("user-agent")))
	})
}

// fakeRuntime 按脚本内容返回预设结果
type fakeRuntime struct {
	exprs   []string
	results map[string]string
	clicked []string
	inputs  []string
	err     error
}

func (f *fakeRuntime) evaluate(_ context.Context, expr string) (string, error) {
	f.exprs = append(f.exprs, expr)
	if f.err != nil {
		return "", f.err
	}
	for marker, res := range f.results {
		if strings.Contains(expr, marker) {
			return res, nil
		}
	}
	return "null", nil
}

func (f *fakeRuntime) click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeRuntime) input(_ context.Context, selector, value string, submit bool) error {
	f.inputs = append(f.inputs, selector+"="+value)
	return nil
}

func newDOM(rt *fakeRuntime) *domPage {
	return &domPage{rt: rt, ctx: context.Background()}
}

func TestScript(t *testing.T) {
	expr, err := script(`return out(A[0]);`, `a"b`, 1.5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(expr, "(() => {"))
	assert.Contains(t, expr, `const A = ["a\"b",1.5];`)
	assert.Contains(t, expr, "data-llf-key")

	expr, err = script(`return out(true);`)
	require.NoError(t, err)
	assert.Contains(t, expr, "const A = [];")
}

func TestDOMPageHTMLOmitsKeys(t *testing.T) {
	rt := &fakeRuntime{results: map[string]string{"outerHTML": `"<html><body></body></html>"`}}
	html, err := newDOM(rt).HTML(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html><body></body></html>", html)
	assert.Contains(t, rt.exprs[0], "clean(document.documentElement).outerHTML")
	assert.Contains(t, rt.exprs[0], "removeAttribute('data-llf-key')")
}

func TestDOMPageQueryAll(t *testing.T) {
	rt := &fakeRuntime{results: map[string]string{"document.querySelectorAll": `["k1","k2"]`}}
	page := newDOM(rt)

	elements, err := page.QueryAll(context.Background(), ".feed-shared-update-v2")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "k1", elements[0].Key())
	assert.Equal(t, "k2", elements[1].Key())
	assert.Contains(t, rt.exprs[0], `".feed-shared-update-v2"`)

	t.Run("求值失败", func(t *testing.T) {
		rt := &fakeRuntime{err: errors.New("SyntaxError")}
		_, err := newDOM(rt).QueryAll(context.Background(), "div[")
		assert.ErrorContains(t, err, "SyntaxError")
	})
}

func TestDOMElement(t *testing.T) {
	rt := &fakeRuntime{results: map[string]string{
		"hasAttribute":  `{"ok":true,"v":"urn:li:activity:7"}`,
		"e.textContent": `"Hiring Go engineers"`,
		"offsetParent":  `true`,
		"e.closest":     `"k9"`,
		"classList":     `true`,
	}}
	el := &domElement{page: newDOM(rt), key: "k3"}

	v, ok := el.Attr("data-urn")
	assert.True(t, ok)
	assert.Equal(t, "urn:li:activity:7", v)
	assert.Contains(t, rt.exprs[0], `const A = ["k3","data-urn"];`)

	assert.Equal(t, "Hiring Go engineers", el.Text())
	assert.True(t, el.Visible())

	parent, ok := el.Closest("article")
	require.True(t, ok)
	assert.Equal(t, "k9", parent.Key())

	require.NoError(t, el.Mark(types.HighlightClass, "Match: go"))
	last := rt.exprs[len(rt.exprs)-1]
	raw, _ := json.Marshal([]any{"k3", types.HighlightClass, "Match: go", types.BadgeClass})
	assert.Contains(t, last, string(raw))

	require.NoError(t, el.Click())
	require.NoError(t, el.SetValue("golang", true))
	assert.Equal(t, []string{`[data-llf-key="k3"]`}, rt.clicked)
	assert.Equal(t, []string{`[data-llf-key="k3"]=golang`}, rt.inputs)

	t.Run("元素已移除", func(t *testing.T) {
		rt := &fakeRuntime{results: map[string]string{"innerHTML": `{"ok":false,"v":""}`}}
		el := &domElement{page: newDOM(rt), key: "gone"}
		_, err := el.InnerHTML()
		assert.ErrorIs(t, err, ErrElementDetached)
		_, ok := el.Attr("href")
		assert.False(t, ok)
		_, ok = el.Closest("div")
		assert.False(t, ok)
	})
}
