package analyzer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"go.uber.org/zap"
)

// Analyzer 识别页面类型并列出可提取的数据区域,不修改页面
type Analyzer struct {
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger.Named("analyzer"), now: time.Now}
}

// Analyze 分析当前页面,区域不存在时直接省略
func (a *Analyzer) Analyze(ctx context.Context, page types.Page) *analysis.PageAnalysis {
	rawURL := page.URL()
	pageType := DetectPageType(rawURL)
	result := &analysis.PageAnalysis{
		PageType:            pageType,
		URL:                 rawURL,
		Elements:            []analysis.Landmark{},
		RecommendedStrategy: RecommendedStrategy(pageType),
		AnalyzedAt:          a.now(),
	}

	for _, lm := range landmarks[pageType] {
		elements, err := page.QueryAll(ctx, lm.selector)
		if err != nil {
			a.logger.Debug("检测页面区域失败", zap.String("landmark", lm.kind), zap.Error(err))
			continue
		}
		if len(elements) == 0 {
			continue
		}
		found := analysis.Landmark{
			Type:        lm.kind,
			Extractable: append([]string(nil), lm.extractable...),
		}
		if lm.counted {
			found.Count = len(elements)
		}
		result.Elements = append(result.Elements, found)
	}

	a.logger.Debug("页面分析完成",
		zap.String("url", rawURL),
		zap.String("pageType", pageType.String()),
		zap.Int("landmarks", len(result.Elements)),
	)
	return result
}

// DetectPageType 只根据地址判断页面类型,按顺序第一个命中的规则生效
func DetectPageType(rawURL string) analysis.PageType {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if path == "" {
		path = "/"
	}

	switch {
	case strings.Contains(path, "/jobs/view/") || strings.Contains(path, "/jobs/collections/"):
		return analysis.JobListing
	case strings.Contains(path, "/jobs/search/") || path == "/jobs/":
		return analysis.JobSearch
	case path == "/feed/" || path == "/":
		return analysis.Feed
	case strings.Contains(path, "/posts/") || strings.Contains(rawURL, "/feed/update/"):
		return analysis.PostDetail
	case strings.Contains(path, "/in/"):
		return analysis.Profile
	case strings.Contains(path, "/search/results/content/"):
		return analysis.SearchResults
	case strings.Contains(path, "/search/results/people/"):
		return analysis.PeopleSearch
	case strings.Contains(path, "/company/"):
		return analysis.CompanyPage
	case strings.Contains(path, "/messaging/"):
		return analysis.Messaging
	default:
		return analysis.Unknown
	}
}
