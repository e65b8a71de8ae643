package goal

import (
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRecommendGoal(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	tests := []struct {
		pageType analysis.PageType
		want     string
	}{
		{analysis.JobListing, JobApplicants},
		{analysis.Feed, CommentMining},
		{analysis.PostDetail, CommentMining},
		{analysis.SearchResults, CommentMining},
		{analysis.Profile, KeywordHunting},
		{analysis.PeopleSearch, PeopleDiscovery},
		{analysis.CompanyPage, PeopleDiscovery},
		{analysis.JobSearch, Custom},
		{analysis.Messaging, Custom},
		{analysis.Unknown, Custom},
	}
	for _, tt := range tests {
		t.Run(string(tt.pageType), func(t *testing.T) {
			got := e.RecommendGoal(&analysis.PageAnalysis{PageType: tt.pageType})
			assert.Equal(t, tt.want, got.ID)
		})
	}

	assert.Equal(t, Custom, e.RecommendGoal(nil).ID)
}

func TestTemplatesCatalogOrder(t *testing.T) {
	e := NewEngine(nil)
	var ids []string
	for _, g := range e.Templates() {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{JobApplicants, CommentMining, PostEngagement, PeopleDiscovery, CompanyIntel, KeywordHunting, Custom}, ids)

	templates := e.Templates()
	templates[0].Targets[0] = "mutated"
	again, _ := e.Template(JobApplicants)
	assert.Equal(t, "applicant_profiles", again.Targets[0])
}

func TestSetGoal(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return at }

	t.Run("unknown id keeps state", func(t *testing.T) {
		assert.False(t, e.SetGoal("nope", ""))
		_, ok := e.CurrentGoal()
		assert.False(t, ok)
	})

	t.Run("activates copy", func(t *testing.T) {
		require.True(t, e.SetGoal(CommentMining, "only recruiters"))
		current, ok := e.CurrentGoal()
		require.True(t, ok)
		assert.Equal(t, CommentMining, current.ID)
		assert.Equal(t, "only recruiters", current.CustomInstructions)
		assert.True(t, current.Active)
		assert.Equal(t, at, current.ActivatedAt)

		template, _ := e.Template(CommentMining)
		assert.False(t, template.Active)
		assert.Empty(t, template.CustomInstructions)
	})

	t.Run("unknown id does not replace current", func(t *testing.T) {
		assert.False(t, e.SetGoal("bogus", "x"))
		current, ok := e.CurrentGoal()
		require.True(t, ok)
		assert.Equal(t, CommentMining, current.ID)
	})

	e.ClearGoal()
	_, ok := e.CurrentGoal()
	assert.False(t, ok)
}

func TestGenerateStrategyDeterministic(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	a := &analysis.PageAnalysis{PageType: analysis.PostDetail, URL: "https://www.linkedin.com/feed/update/1/"}

	for _, g := range e.Templates() {
		t.Run(g.ID, func(t *testing.T) {
			first := e.GenerateStrategy(g, a)
			second := e.GenerateStrategy(g, a)
			if diff := cmp.Diff(first, second); diff != "" {
				t.Fatalf("strategy not deterministic (-first +second):\n%s", diff)
			}
			assert.NotEmpty(t, first.Steps)
			for _, step := range first.Steps {
				assert.True(t, step.Kind.Valid(), step.Name)
			}
		})
	}
}

func TestGenerateStrategyJobApplicants(t *testing.T) {
	e := NewEngine(nil)
	g, _ := e.Template(JobApplicants)
	s := e.GenerateStrategy(g, &analysis.PageAnalysis{PageType: analysis.JobListing})

	assert.Equal(t, JobApplicants, s.GoalID)
	assert.Equal(t, "Extract Job Applicants & Resumes", s.GoalName)
	assert.Equal(t, analysis.JobListing, s.PageType)
	require.Len(t, s.Steps, 5)

	first := s.Steps[0]
	assert.Equal(t, "detect_applicant_count", first.Name)
	assert.Equal(t, strategy.KindDetectCount, first.Kind)
	assert.False(t, first.Required)

	assert.Equal(t, ".job-details-applicant-list", s.Steps[1].WaitFor)
	assert.Equal(t, 10, s.Steps[2].ScrollCycles)
	assert.Equal(t, []string{"name", "headline", "profile_url", "resume_url", "application_date"}, s.Steps[3].Fields)
	assert.Equal(t, strategy.KindDownload, s.Steps[4].Kind)
}

func TestGenerateStrategyUnknownGoal(t *testing.T) {
	s := NewEngine(nil).GenerateStrategy(strategy.Goal{ID: "other", Name: "Other"}, nil)
	assert.Empty(t, s.Steps)
	assert.NotNil(t, s.Steps)
	assert.Equal(t, analysis.Unknown, s.PageType)
}

func TestAIPrompt(t *testing.T) {
	e := NewEngine(nil)
	g, _ := e.Template(CommentMining)
	a := &analysis.PageAnalysis{PageType: analysis.Feed}

	prompt := AIPrompt(g, a)
	assert.Contains(t, prompt, "**Current Goal**: Mine Comments for Contacts")
	assert.Contains(t, prompt, "**Page Type**: feed")
	assert.Contains(t, prompt, "**Target Data**: comment_authors, emails, phones, profiles")
	assert.Contains(t, prompt, "**Custom Instructions**: None")

	g.CustomInstructions = "fintech only"
	assert.Contains(t, AIPrompt(g, a), "**Custom Instructions**: fintech only")
	assert.Equal(t, AIPrompt(g, a), e.GenerateStrategy(g, a).AIPrompt)
}

func TestIsGoalCompatible(t *testing.T) {
	e := NewEngine(nil)
	assert.True(t, e.IsGoalCompatible(JobApplicants, analysis.JobListing))
	assert.False(t, e.IsGoalCompatible(JobApplicants, analysis.Feed))
	assert.True(t, e.IsGoalCompatible(Custom, analysis.Messaging))
	assert.False(t, e.IsGoalCompatible("missing", analysis.Feed))
}
