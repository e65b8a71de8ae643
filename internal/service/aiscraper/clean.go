package aiscraper

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxHTMLSize 发送给模型的 html 上限
	MaxHTMLSize = 50000

	trimHeaderSize = 5000
	trimBodySize   = 40000
	trimMarker     = "\n...[trimmed]...\n"
)

// 顺序与清理效果相关: 先去掉脚本样式与注释,再压缩空白,最后去掉 data- 属性
var cleaners = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?is)<script\b.*?</script>`), ""},
	{regexp.MustCompile(`(?is)<style\b.*?</style>`), ""},
	{regexp.MustCompile(`(?s)<!--.*?-->`), ""},
	{regexp.MustCompile(`(?i)\s+style="[^"]*"`), ""},
	{regexp.MustCompile(`\s+`), " "},
	{regexp.MustCompile(`(?i)\s+data-[a-z-]+="[^"]*"`), ""},
}

// CleanHTML 去掉脚本、样式、注释、内联样式与 data- 属性,超过 MaxHTMLSize 时按结构裁剪
func CleanHTML(html string) string {
	for _, c := range cleaners {
		html = c.re.ReplaceAllString(html, c.repl)
	}
	if len(html) > MaxHTMLSize {
		html = intelligentTrim(html)
	}
	return html
}

// intelligentTrim 保留文档头部与主体区域的开头
// 主体从 <main 开始,找不到时从 <body 开始,都找不到时取头部之后的一段
func intelligentTrim(html string) string {
	headerEnd := boundary(html, trimHeaderSize)
	header := html[:headerEnd]

	bodyStart := strings.Index(html, "<main")
	if bodyStart <= 0 {
		bodyStart = strings.Index(html, "<body")
	}

	var body string
	if bodyStart > 0 {
		body = html[bodyStart:boundary(html, bodyStart+trimBodySize)]
	} else {
		body = html[headerEnd:boundary(html, headerEnd+trimBodySize)]
	}
	return header + trimMarker + body
}

// boundary 返回不超过 n 且落在字符边界上的下标
func boundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// truncateRunes 截取前 n 个字符
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
