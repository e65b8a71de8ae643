package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/htmldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDetectPageType(t *testing.T) {
	tests := []struct {
		url  string
		want analysis.PageType
	}{
		{"https://www.linkedin.com/jobs/view/12345", analysis.JobListing},
		{"/jobs/view/12345", analysis.JobListing},
		{"https://www.linkedin.com/jobs/collections/recommended/", analysis.JobListing},
		{"https://www.linkedin.com/jobs/search/?keywords=go", analysis.JobSearch},
		{"https://www.linkedin.com/jobs/", analysis.JobSearch},
		{"https://www.linkedin.com/feed/", analysis.Feed},
		{"https://www.linkedin.com/", analysis.Feed},
		{"https://www.linkedin.com", analysis.Feed},
		{"https://www.linkedin.com/feed/update/urn:li:activity:1/", analysis.PostDetail},
		{"https://www.linkedin.com/posts/jane_hiring-activity-1", analysis.PostDetail},
		{"https://www.linkedin.com/in/someone", analysis.Profile},
		{"/in/someone", analysis.Profile},
		{"https://www.linkedin.com/search/results/content/?keywords=hiring", analysis.SearchResults},
		{"https://www.linkedin.com/search/results/people/?keywords=cto", analysis.PeopleSearch},
		{"https://www.linkedin.com/company/acme/", analysis.CompanyPage},
		{"https://www.linkedin.com/messaging/thread/1/", analysis.Messaging},
		{"https://www.linkedin.com/learning/", analysis.Unknown},
		{"%%not a url", analysis.Unknown},
		{"", analysis.Feed},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPageType(tt.url))
		})
	}
}

func newAnalyzer(t *testing.T) *Analyzer {
	a := New(zaptest.NewLogger(t))
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a
}

func TestAnalyzeJobListing(t *testing.T) {
	t.Run("without applicant count", func(t *testing.T) {
		page, err := htmldoc.New("https://www.linkedin.com/jobs/view/12345", `<html><body>
			<h1 class="jobs-unified-top-card__job-title">Backend Engineer</h1>
		</body></html>`)
		require.NoError(t, err)

		got := newAnalyzer(t).Analyze(context.Background(), page)
		assert.Equal(t, analysis.JobListing, got.PageType)
		assert.Equal(t, "job_applicant_extraction", got.RecommendedStrategy)
		assert.False(t, got.Has("applicant_count"))
		require.Len(t, got.Elements, 1)
		assert.Equal(t, analysis.Landmark{
			Type:        "job_metadata",
			Extractable: []string{"job_title", "company_name", "location", "job_description"},
		}, got.Elements[0])
	})

	t.Run("with applicant count", func(t *testing.T) {
		page, err := htmldoc.New("https://www.linkedin.com/jobs/view/12345", `<html><body>
			<span class="jobs-unified-top-card__applicant-count">42 applicants</span>
		</body></html>`)
		require.NoError(t, err)

		got := newAnalyzer(t).Analyze(context.Background(), page)
		assert.True(t, got.Has("applicant_count"))
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.AnalyzedAt)
	})
}

func TestAnalyzeCountsRepeatedElements(t *testing.T) {
	page, err := htmldoc.New("https://www.linkedin.com/feed/", `<html><body>
		<div class="feed-shared-update-v2" data-urn="urn:li:activity:1"></div>
		<div class="feed-shared-update-v2" data-urn="urn:li:activity:2"></div>
		<div data-id="urn:li:activity:3"></div>
	</body></html>`)
	require.NoError(t, err)

	got := newAnalyzer(t).Analyze(context.Background(), page)
	require.Len(t, got.Elements, 1)
	assert.Equal(t, "posts", got.Elements[0].Type)
	assert.Equal(t, 3, got.Elements[0].Count)
}

func TestAnalyzePostDetailAndUnknown(t *testing.T) {
	page, err := htmldoc.New("https://www.linkedin.com/feed/update/urn:li:activity:1/", `<html><body>
		<div class="feed-shared-update-v2__description">Hiring!</div>
		<article class="comments-comment-item">one</article>
		<article class="comments-comment-item">two</article>
	</body></html>`)
	require.NoError(t, err)

	got := newAnalyzer(t).Analyze(context.Background(), page)
	assert.Equal(t, analysis.PostDetail, got.PageType)
	assert.True(t, got.Has("post_content"))
	assert.True(t, got.Has("comments"))
	assert.Equal(t, 2, got.Elements[1].Count)

	unknown, err := htmldoc.New("https://www.linkedin.com/messaging/", `<html><body><p>hi</p></body></html>`)
	require.NoError(t, err)
	msg := newAnalyzer(t).Analyze(context.Background(), unknown)
	assert.Equal(t, analysis.Messaging, msg.PageType)
	assert.Empty(t, msg.Elements)
	assert.Empty(t, msg.RecommendedStrategy)
}

func TestExtractionSelectors(t *testing.T) {
	assert.Equal(t, []string{`a[href^="mailto:"]`, `[data-test-id="email"]`}, ExtractionSelectors("email_link"))
	assert.Equal(t, []string{}, ExtractionSelectors("nope"))

	got := ExtractionSelectors("comments")
	got[0] = "mutated"
	assert.Equal(t, ".comments-comment-item", ExtractionSelectors("comments")[0])
}
