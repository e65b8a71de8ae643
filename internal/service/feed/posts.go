package feed

import (
	"context"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
)

const Origin = "https://www.linkedin.com"

var (
	// 依次查找帖子节点,结果再归一化到外层的帖子容器
	postSelectors = []string{
		`article[data-id^="urn:li:activity"]`,
		`article[data-urn^="urn:li:activity"]`,
		`div[data-id^="urn:li:activity"]`,
		`div[data-urn^="urn:li:activity"]`,
		".feed-shared-update-v2",
		".feed-update",
		`div[data-test-id="main-feed-activity-card"]`,
	}

	containerSelectors = []string{
		`article[data-id^="urn:li:activity"]`,
		`article[data-urn^="urn:li:activity"]`,
		`div[data-id^="urn:li:activity"]`,
		`div[data-urn^="urn:li:activity"]`,
		"article",
	}

	contentSelectors = []string{
		".feed-shared-update-v2__description",
		".feed-shared-text",
		`[data-test-id="main-feed-activity-card__commentary"]`,
		".update-components-text",
	}

	authorSelectors = []string{
		".feed-shared-actor__name",
		`[data-test-id="main-feed-activity-card__actor"]`,
		".update-components-actor__name",
	}

	linkSelectors = []string{
		`a[href*="/feed/update/"]`,
		`a[data-test-id="main-feed-activity-card__link"]`,
	}

	expandSelectors = []string{
		"button.feed-shared-inline-show-more-text__see-more-less-toggle",
		"button.inline-show-more-text__button",
		`button[aria-label*="see more" i]`,
		`button[aria-label*="show more" i]`,
		".feed-shared-inline-show-more-text button",
		".inline-show-more-text button",
	}

	// ContainerSelectors 观察新帖子时使用的根节点,按顺序取第一个存在的
	ContainerSelectors = []string{".scaffold-layout__main", "main", "body"}
)

const profileLinkSelector = `a[href*="/in/"]`

// PostData 从帖子节点中解析出的内容
type PostData struct {
	Content       string
	Author        string
	URL           string
	AuthorProfile string
}

// CollectPosts 返回页面上所有帖子节点,按首次出现的顺序去重
func CollectPosts(ctx context.Context, page types.Page) []types.Element {
	var found []types.Element
	for _, selector := range postSelectors {
		elements, err := page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		found = append(found, elements...)
	}
	return normalizeAll(found)
}

// CollectPostsIn 返回 root 下的帖子节点,root 本身是帖子时也包含在内
func CollectPostsIn(root types.Element) []types.Element {
	var found []types.Element
	for _, selector := range postSelectors {
		if root.Matches(selector) {
			found = append(found, root)
		}
		found = append(found, root.QueryAll(selector)...)
	}
	return normalizeAll(found)
}

func normalizeAll(elements []types.Element) []types.Element {
	seen := make(map[string]struct{}, len(elements))
	posts := make([]types.Element, 0, len(elements))
	for _, el := range elements {
		post := Normalize(el)
		if !IsPost(post) {
			continue
		}
		key := post.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		posts = append(posts, post)
	}
	return posts
}

// Normalize 返回元素所在的帖子容器,找不到时返回元素本身
func Normalize(el types.Element) types.Element {
	for _, selector := range containerSelectors {
		if container, ok := el.Closest(selector); ok {
			return container
		}
	}
	return el
}

// IsPost 判断节点是否像一条帖子
func IsPost(el types.Element) bool {
	attr, ok := el.Attr("data-id")
	if !ok || attr == "" {
		attr, _ = el.Attr("data-urn")
	}
	if strings.Contains(attr, "urn:li:activity") {
		return true
	}
	if el.Matches(".feed-shared-update-v2, .feed-update, article") {
		return true
	}
	testID, _ := el.Attr("data-test-id")
	return testID == "main-feed-activity-card"
}

// PostID 优先使用节点上的 urn/id 属性,否则取前 100 个字符去掉空白
// 文本中不含 Mark 追加的标签,帖子高亮前后 id 不变
func PostID(el types.Element) string {
	for _, name := range []string{"data-urn", "data-id", "id"} {
		if v, ok := el.Attr(name); ok && v != "" {
			return v
		}
	}
	text := []rune(withoutBadges(el))
	if len(text) > 100 {
		text = text[:100]
	}
	return strings.Join(strings.Fields(string(text)), "")
}

func withoutBadges(el types.Element) string {
	text := el.InnerText()
	for _, badge := range el.QueryAll("." + types.BadgeClass) {
		label := badge.InnerText()
		if label == "" {
			continue
		}
		if i := strings.LastIndex(text, label); i >= 0 {
			text = text[:i] + text[i+len(label):]
		}
	}
	return text
}

// ExtractPostData 解析帖子的正文,作者,链接与作者主页
func ExtractPostData(el types.Element, pageURL string) PostData {
	data := PostData{Author: "Unknown", URL: pageURL}

	if content, ok := first(el, contentSelectors); ok {
		data.Content = strings.TrimSpace(content.InnerText())
	} else {
		data.Content = strings.TrimSpace(withoutBadges(el))
	}

	if author, ok := first(el, authorSelectors); ok {
		if name := strings.TrimSpace(author.InnerText()); name != "" {
			data.Author = name
		}
	}

	if link, ok := first(el, linkSelectors); ok {
		if href, _ := link.Attr("href"); href != "" {
			data.URL = Absolute(href)
		}
	}

	if profiles := el.QueryAll(profileLinkSelector); len(profiles) > 0 {
		if href, _ := profiles[0].Attr("href"); href != "" {
			data.AuthorProfile = Absolute(href)
		}
	}
	return data
}

// ExpandPost 点击帖子内的 "see more" 按钮,每次点击后等待 settle
func ExpandPost(ctx context.Context, el types.Element, settle time.Duration, sleep func(context.Context, time.Duration) error) int {
	seen := map[string]struct{}{}
	clicked := 0
	for _, selector := range expandSelectors {
		for _, btn := range el.QueryAll(selector) {
			if _, ok := seen[btn.Key()]; ok || !btn.Visible() {
				continue
			}
			seen[btn.Key()] = struct{}{}

			label := btn.Text()
			if strings.TrimSpace(label) == "" {
				label, _ = btn.Attr("aria-label")
			}
			label = strings.ToLower(label)
			if !strings.Contains(label, "more") || strings.Contains(label, "less") {
				continue
			}
			if err := btn.Click(); err != nil {
				continue
			}
			clicked++
			if err := sleep(ctx, settle); err != nil {
				return clicked
			}
		}
	}
	return clicked
}

// Absolute 相对链接补全为站点地址
func Absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return Origin + href
}

func first(el types.Element, selectors []string) (types.Element, bool) {
	for _, selector := range selectors {
		if found := el.QueryAll(selector); len(found) > 0 {
			return found[0], true
		}
	}
	return nil, false
}
