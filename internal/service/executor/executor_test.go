package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/htmldoc"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/goal"
	"github.com/LouYuanbo1/leadagent/internal/service/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() config.ExecutorConfig {
	return config.ExecutorConfig{StepDelay: time.Second, WaitTimeout: 50 * time.Millisecond, PollInterval: time.Millisecond}
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithSleep(noSleep), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewExecutor(testConfig(), zaptest.NewLogger(t), opts...)
}

func newPage(t *testing.T, url, html string) *htmldoc.Document {
	t.Helper()
	d, err := htmldoc.New(url, html)
	require.NoError(t, err)
	return d
}

func plan(steps ...strategy.Step) *strategy.Strategy {
	return &strategy.Strategy{GoalID: "test", GoalName: "Test", Steps: steps, AIPrompt: "prompt"}
}

const cardsPage = `<html><body>
  <div class="card"><h3>Ada Lovelace</h3><a href="/in/ada/">profile</a> ada@engines.io</div>
  <div class="card"><span class="entity-result__title-text">Grace Hopper</span><span class="entity-result__primary-subtitle">Admiral</span></div>
</body></html>`

func TestRequiredStepFailureHaltsExecution(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/search/results/people/", cardsPage)
	e := newExecutor(t)

	s := plan(
		strategy.Step{Name: "extract", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name", "profile_url"}},
		strategy.Step{Name: "click_missing", Kind: strategy.KindClick, Selectors: []string{".missing"}, Required: true},
		strategy.Step{Name: "company", Kind: strategy.KindExtractPage, Fields: []string{"company_name"}},
	)
	result := e.Execute(context.Background(), page, s)

	assert.False(t, result.Success)
	assert.Equal(t, strategy.StatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, ErrNotVisible)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Success)
	assert.False(t, result.Steps[1].Success)

	require.Len(t, result.Data, 2)
	assert.Equal(t, "Ada Lovelace", result.Data[0].Get("name"))
	assert.Equal(t, "https://www.linkedin.com/in/ada/", result.Data[0].Get("profile_url"))
	assert.Equal(t, []string{"ada@engines.io"}, result.Data[0].Emails)
	assert.Equal(t, "Grace Hopper", result.Data[1].Get("name"))
	assert.Equal(t, result.Data, e.Data())
	assert.Equal(t, strategy.StatusFailed, e.Status())

	e.ClearData()
	assert.Empty(t, e.Data())
}

func TestSecondExecutionIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := func(ctx context.Context, d time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	page := newPage(t, "https://www.linkedin.com/feed/", cardsPage)
	e := newExecutor(t, WithSleep(blocking))
	s := plan(strategy.Step{Name: "wait", Kind: strategy.KindWait, Duration: time.Millisecond})

	done := make(chan strategy.ExecutionResult, 1)
	go func() { done <- e.Execute(context.Background(), page, s) }()
	<-started
	assert.True(t, e.Running())

	second := e.Execute(context.Background(), page, plan(
		strategy.Step{Name: "extract", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
	))
	assert.False(t, second.Success)
	assert.ErrorIs(t, second.Err, ErrAlreadyRunning)
	assert.Empty(t, second.Steps)
	assert.Empty(t, second.Data)

	close(release)
	first := <-done
	assert.True(t, first.Success)
	assert.False(t, e.Running())
}

func TestOptionalStepFailureContinues(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/jobs/view/12345", `<html><body>
		<h1 class="jobs-unified-top-card__job-title">Go Engineer</h1>
		<a href="/files/resume.pdf" download="cv.pdf">resume</a>
	</body></html>`)
	engine := goal.NewEngine(zaptest.NewLogger(t))
	g, ok := engine.Template(goal.JobApplicants)
	require.True(t, ok)
	s := engine.GenerateStrategy(g, &analysis.PageAnalysis{PageType: analysis.JobListing})

	result := newExecutor(t).Execute(context.Background(), page, s)

	assert.True(t, result.Success)
	require.Len(t, result.Steps, 5)
	assert.Equal(t, "detect_applicant_count", result.Steps[0].Name)
	assert.False(t, result.Steps[0].Success)
	assert.True(t, result.Steps[2].Success)
	assert.True(t, result.Steps[4].Success)
	assert.Equal(t, 1, result.Steps[4].Count)
	assert.Equal(t, []htmldoc.DownloadRecord{{Href: "https://www.linkedin.com/files/resume.pdf", Filename: "cv.pdf"}}, page.Downloads())
	assert.Equal(t, 10, page.Scrolls())
	assert.Equal(t, 1, page.ScrollTops())
}

func TestStopHaltsAtStepBoundary(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/feed/", cardsPage)
	var e *Executor
	e = newExecutor(t, WithSleep(func(ctx context.Context, d time.Duration) error {
		e.Stop()
		return nil
	}))

	result := e.Execute(context.Background(), page, plan(
		strategy.Step{Name: "first", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
		strategy.Step{Name: "second", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
	))
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrStopped)
	assert.Len(t, result.Steps, 1)
	assert.Len(t, result.Data, 2)
}

func TestCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := newPage(t, "https://www.linkedin.com/feed/", cardsPage)
	result := newExecutor(t).Execute(ctx, page, plan(strategy.Step{Name: "wait", Kind: strategy.KindWait}))
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Empty(t, result.Steps)
}

func TestNavigateEndsExecution(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/company/acme/?trk=nav", `<html><body>
		<h1 class="org-top-card-summary__title">Acme</h1>
		<div class="card"><h3>x</h3></div>
	</body></html>`)
	result := newExecutor(t).Execute(context.Background(), page, plan(
		strategy.Step{Name: "company", Kind: strategy.KindExtractPage, Fields: []string{"company_name", "industry"}},
		strategy.Step{Name: "people", Kind: strategy.KindNavigate, URL: "/people/"},
		strategy.Step{Name: "after", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
	))

	assert.True(t, result.Success)
	assert.Equal(t, "https://www.linkedin.com/company/acme/people/", result.NavigatedTo)
	assert.Equal(t, []string{"https://www.linkedin.com/company/acme/people/"}, page.Navigations())
	assert.Len(t, result.Steps, 2)
	require.Len(t, result.Data, 1)
	assert.Equal(t, map[string]string{"company_name": "Acme"}, result.Data[0].Fields)
}

func TestNavigateFailure(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/company/acme/", `<html><body></body></html>`)
	page.OnNavigate = func(*htmldoc.Document, string) error { return errors.New("blocked") }
	result := newExecutor(t).Execute(context.Background(), page, plan(
		strategy.Step{Name: "people", Kind: strategy.KindNavigate, URL: "/people/", Required: true},
	))
	assert.False(t, result.Success)
	assert.Empty(t, result.NavigatedTo)
}

func TestClickSkipsHiddenAndWaits(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/jobs/view/1", `<html><body>
		<div hidden><button class="view">View hidden</button></div>
		<button class="view">View all</button>
	</body></html>`)
	page.OnClick = func(d *htmldoc.Document, el types.Element) {
		d.Append("body", `<ul class="job-details-applicant-list"><li>a</li></ul>`)
	}

	result := newExecutor(t).Execute(context.Background(), page, plan(
		strategy.Step{Name: "view", Kind: strategy.KindClick, Selectors: []string{".absent", ".view"}, WaitFor: ".job-details-applicant-list", Required: true},
	))
	require.True(t, result.Success, result.Err)
	assert.Equal(t, []string{"View all"}, page.ClickedTexts())
	assert.Equal(t, 1, page.ScrolledIntoView())
}

func TestLoadAll(t *testing.T) {
	html := `<html><body><button class="more">Load more comments</button></body></html>`

	t.Run("repeat until gone", func(t *testing.T) {
		page := newPage(t, "https://www.linkedin.com/feed/update/1/", html)
		clicks := 0
		page.OnClick = func(d *htmldoc.Document, el types.Element) {
			clicks++
			if clicks == 3 {
				d.Remove("button.more")
			}
		}
		result := newExecutor(t).Execute(context.Background(), page, plan(
			strategy.Step{Name: "load", Kind: strategy.KindLoadAll, Selectors: []string{"button.more"}, RepeatUntilGone: true},
		))
		require.True(t, result.Success)
		assert.Equal(t, 3, result.Steps[0].Count)
	})

	t.Run("bounded by attempts", func(t *testing.T) {
		page := newPage(t, "https://www.linkedin.com/feed/update/1/", html)
		result := newExecutor(t).Execute(context.Background(), page, plan(
			strategy.Step{Name: "load", Kind: strategy.KindLoadAll, Selectors: []string{"button.more"}, MaxAttempts: 4},
		))
		assert.Equal(t, 4, result.Steps[0].Count)
	})

	t.Run("single click without repeat", func(t *testing.T) {
		page := newPage(t, "https://www.linkedin.com/feed/update/1/", html)
		result := newExecutor(t).Execute(context.Background(), page, plan(
			strategy.Step{Name: "load", Kind: strategy.KindLoadAll, Selectors: []string{"button.more"}},
		))
		assert.Equal(t, 1, result.Steps[0].Count)
	})
}

func TestExtractComments(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/feed/update/urn:li:activity:9/", `<html><body>
		<article class="comments-comment-item">
			<a href="/in/bob/"><span class="comments-post-meta__name-text">Bob</span></a>
			<div class="comments-comment-item__main-content">Interested! bob@mail.io +1 555 123 4567</div>
			<time>2h</time>
		</article>
		<article class="comments-comment-item">
			<div class="comment-text">Nice post</div>
		</article>
	</body></html>`)

	result := newExecutor(t).Execute(context.Background(), page, plan(
		strategy.Step{Name: "comments", Kind: strategy.KindExtractComments, Selectors: []string{".comments-comment-item"}, Fields: []string{"author_name", "comment_text"}},
	))
	require.True(t, result.Success)
	require.Len(t, result.Data, 2)

	bob := result.Data[0]
	assert.Equal(t, "Bob", bob.Get("author_name"))
	assert.Equal(t, "https://www.linkedin.com/in/bob/", bob.Get("author_profile"))
	assert.Equal(t, "Interested! bob@mail.io +1 555 123 4567", bob.Get("comment_text"))
	assert.Equal(t, "2h", bob.Get("timestamp"))
	assert.Equal(t, []string{"bob@mail.io"}, bob.Emails)
	assert.NotEmpty(t, bob.Phones)
	assert.Equal(t, 0, bob.Index)
	assert.Equal(t, fixedNow, bob.Timestamp)

	other := result.Data[1]
	assert.Equal(t, "Nice post", other.Get("comment_text"))
	assert.Empty(t, other.Emails)
	assert.Equal(t, 1, other.Index)

	t.Run("no comments is a failure", func(t *testing.T) {
		empty := newPage(t, "https://www.linkedin.com/feed/update/1/", `<html><body></body></html>`)
		result := newExecutor(t).Execute(context.Background(), empty, plan(
			strategy.Step{Name: "comments", Kind: strategy.KindExtractComments, Selectors: []string{".comments-comment-item"}, Required: true},
		))
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, ErrNoElements)
	})
}

func TestExtractContactsAndSection(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/in/jane/", `<html><body>
		<p>Reach me: jane@acme.io</p>
		<section id="top-card-text-details-contact-info">
			<a href="mailto:jane.work@acme.io">Email</a>
			<a href="tel:+15551234567">Phone</a>
			<a data-test-id="website" href="https://jane.dev">site</a>
		</section>
	</body></html>`)

	result := newExecutor(t).Execute(context.Background(), page, plan(
		strategy.Step{Name: "contacts", Kind: strategy.KindExtractContacts},
		strategy.Step{Name: "section", Kind: strategy.KindExtractContactSection, Selectors: []string{"#top-card-text-details-contact-info"}, Fields: []string{"website"}},
	))
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Steps[0].Count)
	require.Len(t, result.Data, 1)
	assert.Equal(t, []string{"jane.work@acme.io"}, result.Data[0].Emails)
	assert.Equal(t, []string{"+15551234567"}, result.Data[0].Phones)
	assert.Equal(t, "https://jane.dev", result.Data[0].Get("website"))
}

type fakeAssessor struct {
	results []strategy.Assessment
	err     error
	prompt  string
	task    string
	seen    int
}

func (f *fakeAssessor) AssessRecords(ctx context.Context, records []entity.Record, prompt, task string) ([]strategy.Assessment, error) {
	f.prompt, f.task, f.seen = prompt, task, len(records)
	return f.results, f.err
}

func TestAssessAnnotatesPositionally(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/search/results/people/", cardsPage)
	assessor := &fakeAssessor{results: []strategy.Assessment{{Relevant: false, Priority: 20, Reason: "student"}}}
	e := newExecutor(t, WithAssessor(assessor))

	result := e.Execute(context.Background(), page, plan(
		strategy.Step{Name: "extract", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
		strategy.Step{Name: "assess", Kind: strategy.KindAssessAI},
	))
	require.True(t, result.Success)
	assert.Equal(t, "prompt", assessor.prompt)
	assert.Equal(t, "relevance_assessment", assessor.task)
	assert.Equal(t, 2, assessor.seen)

	require.NotNil(t, result.Data[0].AIRelevant)
	assert.False(t, *result.Data[0].AIRelevant)
	assert.Equal(t, 20, *result.Data[0].AIPriority)
	assert.Equal(t, "student", result.Data[0].AIReason)
	assert.Nil(t, result.Data[1].AIRelevant)

	t.Run("oracle failure keeps records", func(t *testing.T) {
		e := newExecutor(t, WithAssessor(&fakeAssessor{err: errors.New("unreachable")}))
		result := e.Execute(context.Background(), page, plan(
			strategy.Step{Name: "extract", Kind: strategy.KindExtractList, Selectors: []string{".card"}, Fields: []string{"name"}},
			strategy.Step{Name: "assess", Kind: strategy.KindAssessAI},
		))
		assert.True(t, result.Success)
		assert.False(t, result.Steps[1].Success)
		assert.Len(t, result.Data, 2)
	})

	t.Run("no assessor", func(t *testing.T) {
		result := newExecutor(t).Execute(context.Background(), page, plan(
			strategy.Step{Name: "assess", Kind: strategy.KindAssessAI, Required: true},
		))
		assert.ErrorIs(t, result.Err, ErrNoAssessor)
	})
}

func TestKeywordSteps(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/feed/", `<html><body>
		<div data-urn="urn:li:activity:7" class="feed-shared-update-v2">
			<span class="feed-shared-actor__name">Jane</span>
			<div class="feed-shared-text">We are hiring Go devs, mail jobs@acme.io</div>
		</div>
		<div data-urn="urn:li:activity:8" class="feed-shared-update-v2">
			<div class="feed-shared-text">Weekend photos</div>
		</div>
	</body></html>`)
	e := newExecutor(t, WithMatcher(matcher.New([]string{"hiring"}, matcher.Options{})))

	result := e.Execute(context.Background(), page, plan(
		strategy.Step{Name: "scan", Kind: strategy.KindMatchKeywords},
		strategy.Step{Name: "extract", Kind: strategy.KindExtractMatched, Fields: []string{"author", "content", "url", "keywords_matched"}},
	))
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Steps[0].Count)
	require.Len(t, result.Data, 1)

	rec := result.Data[0]
	assert.Equal(t, "urn:li:activity:7", rec.ID)
	assert.Equal(t, "Jane", rec.Get("author"))
	assert.Equal(t, "hiring", rec.Get("keywords_matched"))
	assert.Equal(t, []string{"jobs@acme.io"}, rec.Emails)

	t.Run("without matcher is a no-op", func(t *testing.T) {
		result := newExecutor(t).Execute(context.Background(), page, plan(
			strategy.Step{Name: "scan", Kind: strategy.KindMatchKeywords},
			strategy.Step{Name: "extract", Kind: strategy.KindExtractMatched},
		))
		assert.True(t, result.Success)
		assert.Empty(t, result.Data)
	})
}

type fakePlanner struct {
	goal string
	plan *strategy.AIStrategy
	err  error
}

func (f *fakePlanner) Plan(ctx context.Context, page types.Page, userGoal string) (*strategy.AIStrategy, error) {
	f.goal = userGoal
	return f.plan, f.err
}

func (f *fakePlanner) Extract(ctx context.Context, page types.Page, s *strategy.AIStrategy) ([]entity.Record, error) {
	rec := entity.NewRecord(0, fixedNow)
	rec.Set("name", "from plan")
	return []entity.Record{rec}, nil
}

func TestAIPlanAndExecute(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/learning/", `<html><body></body></html>`)
	planner := &fakePlanner{plan: &strategy.AIStrategy{PageType: "unknown", DataAvailable: []strategy.DataField{{Field: "name"}}}}
	s := plan(
		strategy.Step{Name: "plan", Kind: strategy.KindAIPlan},
		strategy.Step{Name: "run", Kind: strategy.KindAIExecute},
	)
	s.Instructions = "find instructors"

	result := newExecutor(t, WithPlanner(planner)).Execute(context.Background(), page, s)
	require.True(t, result.Success)
	assert.Equal(t, "find instructors", planner.goal)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "from plan", result.Data[0].Get("name"))

	t.Run("plan failure leaves nothing to execute", func(t *testing.T) {
		failing := &fakePlanner{err: errors.New("bad json")}
		result := newExecutor(t, WithPlanner(failing)).Execute(context.Background(), page, s)
		assert.True(t, result.Success)
		assert.False(t, result.Steps[0].Success)
		assert.False(t, result.Steps[1].Success)
		assert.Contains(t, result.Steps[1].Error, ErrNoPlan.Error())
		assert.Equal(t, "Test", (&strategy.Strategy{GoalName: "Test"}).UserGoal())
	})
}

func TestDetectCount(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/jobs/view/1", `<html><body>
		<span class="jobs-unified-top-card__applicant-count">Over 1,234 applicants</span>
	</body></html>`)
	e := newExecutor(t)
	r := &run{page: page, strategy: plan(), records: []entity.Record{}}
	res := e.detectCount(context.Background(), r, strategy.Step{Selectors: []string{".jobs-unified-top-card__applicant-count"}})
	require.True(t, res.Success)
	assert.Equal(t, 1234, res.Value["count"])
}

func TestUnknownKindFails(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/feed/", cardsPage)
	result := newExecutor(t).Execute(context.Background(), page, plan(strategy.Step{Name: "bogus", Kind: strategy.KindUnknown}))
	assert.True(t, result.Success)
	assert.False(t, result.Steps[0].Success)
	assert.Contains(t, result.Steps[0].Error, ErrUnknownKind.Error())
}
