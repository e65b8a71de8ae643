package analysis

import "time"

// PageType 页面类型
type PageType string

const (
	JobListing    PageType = "job_listing"
	JobSearch     PageType = "job_search"
	Feed          PageType = "feed"
	PostDetail    PageType = "post_detail"
	Profile       PageType = "profile"
	SearchResults PageType = "search_results"
	PeopleSearch  PageType = "people_search"
	CompanyPage   PageType = "company_page"
	Messaging     PageType = "messaging"
	Unknown       PageType = "unknown"

	// All 仅用于目标的兼容页面集合,表示任意页面
	All PageType = "all"
)

func (p PageType) String() string {
	return string(p)
}

// Landmark 页面上检测到的一个数据区域
type Landmark struct {
	Type        string   `json:"type"`
	Count       int      `json:"count,omitempty"`
	Extractable []string `json:"extractable"`
}

// PageAnalysis 一次页面分析的结果,每次分析重新生成
type PageAnalysis struct {
	PageType            PageType   `json:"pageType"`
	URL                 string     `json:"url"`
	Elements            []Landmark `json:"extractableElements"`
	RecommendedStrategy string     `json:"recommendedStrategy"`
	AnalyzedAt          time.Time  `json:"analyzedAt"`
}

// Has 是否检测到指定类型的区域
func (a *PageAnalysis) Has(landmarkType string) bool {
	for _, l := range a.Elements {
		if l.Type == landmarkType {
			return true
		}
	}
	return false
}
