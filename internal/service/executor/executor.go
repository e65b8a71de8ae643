package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/contact"
	"github.com/LouYuanbo1/leadagent/internal/service/matcher"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("extraction already in progress")
	ErrStopped        = errors.New("extraction stopped")
	ErrNoSelector     = errors.New("step has no selector")
	ErrNotFound       = errors.New("element not found")
	ErrNotVisible     = errors.New("element not found or not visible")
	ErrNoElements     = errors.New("no elements found")
	ErrNoAssessor     = errors.New("ai assessor not configured")
	ErrNoPlanner      = errors.New("ai planner not configured")
	ErrNoPlan         = errors.New("no ai strategy generated")
	ErrUnknownKind    = errors.New("unknown step kind")
)

// Assessor 对已提取的记录做相关性评估,结果按下标与记录对应
type Assessor interface {
	AssessRecords(ctx context.Context, records []entity.Record, prompt, task string) ([]strategy.Assessment, error)
}

// Planner 由模型生成并执行页面提取策略
type Planner interface {
	Plan(ctx context.Context, page types.Page, userGoal string) (*strategy.AIStrategy, error)
	Extract(ctx context.Context, page types.Page, s *strategy.AIStrategy) ([]entity.Record, error)
}

// KeywordMatcher 关键词匹配
type KeywordMatcher interface {
	Match(text string) matcher.Result
}

type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 可被 ctx 取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(*Executor)

func WithAssessor(a Assessor) Option { return func(e *Executor) { e.assessor = a } }

func WithPlanner(p Planner) Option { return func(e *Executor) { e.planner = p } }

func WithMatcher(m KeywordMatcher) Option { return func(e *Executor) { e.matcher = m } }

func WithSleep(sleep SleepFunc) Option { return func(e *Executor) { e.sleep = sleep } }

func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// Executor 按顺序执行策略步骤,同一时间只允许一个执行
type Executor struct {
	cfg      config.ExecutorConfig
	logger   *zap.Logger
	contacts *contact.Extractor
	fields   *FieldExtractor
	assessor Assessor
	planner  Planner
	matcher  KeywordMatcher
	sleep    SleepFunc
	now      func() time.Time

	running atomic.Bool
	stopped atomic.Bool

	mu     sync.Mutex
	status strategy.Status
	data   []entity.Record
}

func NewExecutor(cfg config.ExecutorConfig, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	contacts := contact.NewExtractor()
	e := &Executor{
		cfg:      cfg,
		logger:   logger.Named("executor"),
		contacts: contacts,
		fields:   NewFieldExtractor(contacts),
		sleep:    Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run 一次执行过程中的可变状态
type run struct {
	strategy    *strategy.Strategy
	page        types.Page
	records     []entity.Record
	matched     []matchedPost
	plan        *strategy.AIStrategy
	navigatedTo string
}

// Execute 执行策略
// 已有执行在进行时立即返回失败结果,必需步骤失败时返回失败结果并带上已提取的数据
func (e *Executor) Execute(ctx context.Context, page types.Page, s *strategy.Strategy) strategy.ExecutionResult {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("已有提取任务在执行")
		return strategy.ExecutionResult{
			Success: false,
			Status:  strategy.StatusFailed,
			Data:    []entity.Record{},
			Err:     ErrAlreadyRunning,
		}
	}
	defer e.running.Store(false)
	e.stopped.Store(false)
	e.setState(strategy.StatusRunning, nil)

	r := &run{strategy: s, page: page, records: []entity.Record{}}
	result := strategy.ExecutionResult{Steps: []strategy.StepReport{}}
	e.logger.Info("开始执行策略", zap.String("goal", s.GoalName), zap.Int("steps", len(s.Steps)))

	var failure error
	for _, step := range s.Steps {
		if e.stopped.Load() {
			failure = ErrStopped
			break
		}
		if err := ctx.Err(); err != nil {
			failure = fmt.Errorf("%w: %w", ErrStopped, err)
			break
		}

		e.logger.Debug("执行步骤", zap.String("step", step.Name), zap.Stringer("kind", step.Kind))
		res := e.executeStep(ctx, r, step)

		report := strategy.StepReport{Name: step.Name, Kind: step.Kind, Success: res.Success, Count: res.Count}
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		result.Steps = append(result.Steps, report)

		if !res.Success {
			e.logger.Warn("步骤失败", zap.String("step", step.Name), zap.Bool("required", step.Required), zap.Error(res.Err))
			if step.Required {
				failure = fmt.Errorf("required step %q failed: %w", step.Name, res.Err)
				break
			}
		}

		if r.navigatedTo != "" {
			break
		}

		delay := step.WaitAfter
		if delay <= 0 {
			delay = e.cfg.StepDelay
		}
		if err := e.sleep(ctx, delay); err != nil {
			failure = fmt.Errorf("%w: %w", ErrStopped, err)
			break
		}
	}

	result.Data = r.records
	result.Count = len(r.records)
	result.NavigatedTo = r.navigatedTo
	if failure != nil {
		result.Status = strategy.StatusFailed
		result.Err = failure
		e.logger.Error("策略执行失败", zap.Error(failure), zap.Int("records", result.Count))
	} else {
		result.Success = true
		result.Status = strategy.StatusSucceeded
		e.logger.Info("策略执行完成", zap.Int("records", result.Count))
	}
	e.setState(result.Status, r.records)
	return result
}

// Stop 请求停止,正在执行的步骤会执行完,下一个步骤开始前退出
func (e *Executor) Stop() {
	e.stopped.Store(true)
}

func (e *Executor) Running() bool {
	return e.running.Load()
}

func (e *Executor) Status() strategy.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Data 最近一次执行提取到的记录
func (e *Executor) Data() []entity.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entity.Record(nil), e.data...)
}

func (e *Executor) ClearData() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = nil
}

func (e *Executor) setState(status strategy.Status, data []entity.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	if data != nil {
		e.data = append([]entity.Record(nil), data...)
	}
}

func (e *Executor) executeStep(ctx context.Context, r *run, step strategy.Step) (res strategy.StepResult) {
	defer func() {
		if p := recover(); p != nil {
			res = strategy.Fail(fmt.Errorf("step %q panicked: %v", step.Name, p))
		}
	}()

	switch step.Kind {
	case strategy.KindDetectCount:
		return e.detectCount(ctx, r, step)
	case strategy.KindClick:
		return e.click(ctx, r, step)
	case strategy.KindExpand:
		return e.expand(ctx, r, step)
	case strategy.KindScroll:
		return e.scroll(ctx, r, step)
	case strategy.KindScrollTo:
		return e.scrollTo(ctx, r, step)
	case strategy.KindLoadAll:
		return e.loadAll(ctx, r, step)
	case strategy.KindWait:
		return e.wait(ctx, step)
	case strategy.KindExtractList:
		return e.extractList(ctx, r, step)
	case strategy.KindExtractComments:
		return e.extractComments(ctx, r, step)
	case strategy.KindExtractPage:
		return e.extractPage(ctx, r, step)
	case strategy.KindExtractContacts:
		return e.extractContacts(ctx, r)
	case strategy.KindExtractContactSection:
		return e.extractContactSection(ctx, r, step)
	case strategy.KindDownload:
		return e.download(ctx, r, step)
	case strategy.KindNavigate:
		return e.navigate(ctx, r, step)
	case strategy.KindAssessAI:
		return e.assess(ctx, r, step)
	case strategy.KindMatchKeywords:
		return e.matchKeywords(ctx, r, step)
	case strategy.KindExtractMatched:
		return e.extractMatched(r, step)
	case strategy.KindAIPlan:
		return e.aiPlan(ctx, r, step)
	case strategy.KindAIExecute:
		return e.aiExecute(ctx, r)
	default:
		return strategy.Fail(fmt.Errorf("%w: %s", ErrUnknownKind, step.Kind))
	}
}
