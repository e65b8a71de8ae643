package scanner

import (
	"net/url"
	"slices"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/service/feed"
)

// AutoSearchState 自动搜索的游标,保存在配置存储的 llfAutoSearchState 键下
type AutoSearchState struct {
	Running        bool   `json:"running"`
	KeywordIndex   int    `json:"keywordIndex"`
	ShouldNavigate bool   `json:"shouldNavigate"`
	CurrentKeyword string `json:"currentKeyword,omitempty"`
}

// Session 扫描器的可变状态
// 每一轮循环开始时读取一份快照,外部修改只在下一轮生效
type Session struct {
	Keywords   []string
	Settings   config.Settings
	AutoSearch AutoSearchState
	LastURL    string

	seen map[string]struct{}
}

func NewSession() *Session {
	return &Session{
		Keywords: []string{},
		Settings: config.DefaultSettings(),
		seen:     make(map[string]struct{}),
	}
}

func (s *Session) Seen(postID string) bool {
	_, ok := s.seen[postID]
	return ok
}

func (s *Session) MarkSeen(postID string) {
	s.seen[postID] = struct{}{}
}

// ResetSeen 关键词变化后已扫描过的帖子需要重新匹配
func (s *Session) ResetSeen() {
	clear(s.seen)
}

func (s *Session) SeenCount() int {
	return len(s.seen)
}

// Snapshot 复制一份不含已扫描集合的状态
func (s *Session) Snapshot() Session {
	return Session{
		Keywords:   slices.Clone(s.Keywords),
		Settings:   s.Settings,
		AutoSearch: s.AutoSearch,
		LastURL:    s.LastURL,
	}
}

// SearchURL 关键词的内容搜索地址,搜索框不可用时直接跳转
func SearchURL(keyword string) string {
	return feed.Origin + "/search/results/content/?keywords=" + strings.ReplaceAll(url.QueryEscape(keyword), "+", "%20") + "&origin=GLOBAL_SEARCH_HEADER"
}
