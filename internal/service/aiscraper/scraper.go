package aiscraper

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/contact"
	"github.com/LouYuanbo1/leadagent/internal/service/executor"
	"go.uber.org/zap"
)

const (
	visibleTextSize = 2000
	defaultWait     = time.Second
	defaultMaxItems = 100
)

var (
	ErrNoOracle      = errors.New("strategy oracle not configured")
	ErrEmptyResponse = errors.New("AI analysis failed")
	ErrUnknownAction = errors.New("unknown action")
)

// Oracle 根据提示词返回模型的原始回复
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PageContext 发送给模型的页面快照
type PageContext struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	VisibleText string    `json:"visibleText"`
	Size        int       `json:"htmlSize"`
	CapturedAt  time.Time `json:"timestamp"`
}

// StepOutcome 一个准备步骤的执行结果
type StepOutcome struct {
	Step    strategy.ExtractionStep `json:"step"`
	Success bool                    `json:"success"`
	Error   string                  `json:"error,omitempty"`
}

// ExtractionResult 执行模型策略的结果
type ExtractionResult struct {
	Success  bool                 `json:"success"`
	Data     []entity.Record      `json:"data"`
	Count    int                  `json:"count"`
	Steps    []StepOutcome        `json:"steps"`
	Strategy *strategy.AIStrategy `json:"strategy"`
}

type Option func(*Scraper)

func WithSleep(sleep executor.SleepFunc) Option { return func(s *Scraper) { s.sleep = sleep } }

func WithClock(now func() time.Time) Option { return func(s *Scraper) { s.now = now } }

// Scraper 让模型读取页面 html 生成提取策略,再按策略在页面上取数
type Scraper struct {
	cfg      config.ExecutorConfig
	oracle   Oracle
	logger   *zap.Logger
	contacts *contact.Extractor
	sleep    executor.SleepFunc
	now      func() time.Time

	mu   sync.Mutex
	last *strategy.AIStrategy
}

var _ executor.Planner = (*Scraper)(nil)

func NewScraper(cfg config.ExecutorConfig, oracle Oracle, logger *zap.Logger, opts ...Option) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = time.Second
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultMaxItems
	}
	s := &Scraper{
		cfg:      cfg,
		oracle:   oracle,
		logger:   logger.Named("aiscraper"),
		contacts: contact.NewExtractor(),
		sleep:    executor.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture 抓取清理后的页面 html 与可见文本
func (s *Scraper) Capture(ctx context.Context, page types.Page) (*PageContext, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取页面html失败: %w", err)
	}
	text, err := page.VisibleText(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取页面文本失败: %w", err)
	}
	cleaned := CleanHTML(raw)
	return &PageContext{
		URL:         page.URL(),
		Title:       page.Title(),
		HTML:        cleaned,
		VisibleText: truncateRunes(text, visibleTextSize),
		Size:        len(cleaned),
		CapturedAt:  s.now(),
	}, nil
}

// GenerateStrategy 请求模型生成策略,任何失败都返回错误而不是空策略
func (s *Scraper) GenerateStrategy(ctx context.Context, userGoal string, pc *PageContext) (*strategy.AIStrategy, error) {
	if s.oracle == nil {
		return nil, ErrNoOracle
	}
	s.logger.Info("请求模型生成提取策略",
		zap.String("goal", userGoal), zap.Int("html_size", pc.Size), zap.String("url", pc.URL))

	raw, err := s.oracle.Generate(ctx, BuildPrompt(userGoal, pc))
	if err != nil {
		return nil, fmt.Errorf("生成提取策略失败: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	plan, err := ParseAIResponse(raw)
	if err != nil {
		s.logger.Warn("模型回复解析失败", zap.Error(err), zap.Int("raw_len", len(raw)))
		return nil, err
	}

	s.mu.Lock()
	s.last = plan
	s.mu.Unlock()
	s.logger.Info("模型生成提取策略完成",
		zap.String("page_type", plan.PageType),
		zap.Int("fields", len(plan.DataAvailable)),
		zap.Int("steps", len(plan.ExtractionSteps)))
	return plan, nil
}

// Plan 抓取页面并生成策略
func (s *Scraper) Plan(ctx context.Context, page types.Page, userGoal string) (*strategy.AIStrategy, error) {
	pc, err := s.Capture(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.GenerateStrategy(ctx, userGoal, pc)
}

// Extract 执行策略并返回提取到的记录
func (s *Scraper) Extract(ctx context.Context, page types.Page, plan *strategy.AIStrategy) ([]entity.Record, error) {
	result, err := s.ExecuteStrategy(ctx, page, plan)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// LastStrategy 最近一次成功生成的策略
func (s *Scraper) LastStrategy() *strategy.AIStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// ExecuteStrategy 先执行准备步骤,必需步骤失败时停止后续步骤,然后按字段提取
func (s *Scraper) ExecuteStrategy(ctx context.Context, page types.Page, plan *strategy.AIStrategy) (*ExtractionResult, error) {
	if plan == nil {
		return nil, executor.ErrNoPlan
	}
	result := &ExtractionResult{Strategy: plan, Data: []entity.Record{}, Steps: []StepOutcome{}}

	for _, step := range plan.ExtractionSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.runStep(ctx, page, step)
		outcome := StepOutcome{Step: step, Success: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			s.logger.Warn("准备步骤失败",
				zap.Int("step", step.Step), zap.String("action", step.Action), zap.Error(err))
		}
		result.Steps = append(result.Steps, outcome)
		if err != nil && step.Required {
			s.logger.Warn("必需步骤失败,跳过剩余步骤", zap.Int("step", step.Step))
			break
		}

		wait := s.cfg.StepDelay
		if step.WaitAfterMs > 0 {
			wait = time.Duration(step.WaitAfterMs) * time.Millisecond
		}
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	result.Data = s.extractFields(ctx, page, plan.DataAvailable)
	result.Count = len(result.Data)
	result.Success = true
	s.logger.Info("模型策略执行完成", zap.Int("count", result.Count))
	return result, nil
}

func (s *Scraper) runStep(ctx context.Context, page types.Page, step strategy.ExtractionStep) error {
	switch step.Action {
	case "click":
		el, ok := types.QueryFirst(ctx, page, step.Selector)
		if !ok {
			return executor.ErrNotFound
		}
		if !el.Visible() {
			return errors.New("element not visible")
		}
		return el.Click()
	case "scroll":
		el, ok := types.QueryFirst(ctx, page, step.Selector)
		if !ok {
			return executor.ErrNotFound
		}
		return el.ScrollIntoView()
	case "wait":
		wait := defaultWait
		if step.WaitAfterMs > 0 {
			wait = time.Duration(step.WaitAfterMs) * time.Millisecond
		}
		return s.sleep(ctx, wait)
	case "extract":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, step.Action)
	}
}

// extractFields 第 i 个匹配元素的值写入第 i 条记录,没有任何值的下标不产生记录
func (s *Scraper) extractFields(ctx context.Context, page types.Page, fields []strategy.DataField) []entity.Record {
	byIndex := map[int]*entity.Record{}
	sourceURL := page.URL()
	now := s.now()

	for _, field := range fields {
		if !field.Found || field.Selector == "" {
			continue
		}
		elements, err := page.QueryAll(ctx, field.Selector)
		if err != nil {
			s.logger.Debug("字段选择器查询失败", zap.String("field", field.Field), zap.Error(err))
			continue
		}
		for i, el := range elements {
			if i >= s.cfg.MaxItems {
				break
			}
			value := strings.TrimSpace(readValue(el, field))
			if value == "" {
				continue
			}
			rec, ok := byIndex[i]
			if !ok {
				r := entity.NewRecord(i, now)
				r.ID = fmt.Sprintf("item-%d", i)
				r.SourceURL = sourceURL
				rec = &r
				byIndex[i] = rec
			}
			rec.Set(field.Field, value)
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	records := make([]entity.Record, 0, len(indexes))
	for _, i := range indexes {
		rec := byIndex[i]
		var parts []string
		for _, v := range rec.Fields {
			parts = append(parts, v)
		}
		slices.Sort(parts)
		found := s.contacts.ExtractAll(strings.Join(parts, "\n"))
		rec.Emails, rec.Phones = found.Emails, found.Phones
		records = append(records, *rec)
	}
	return records
}

func readValue(el types.Element, field strategy.DataField) string {
	switch field.ExtractionMethod {
	case strategy.MethodAttribute:
		v, _ := el.Attr(field.AttributeName)
		return v
	case strategy.MethodInnerHTML:
		v, err := el.InnerHTML()
		if err != nil {
			return ""
		}
		return v
	default:
		return el.Text()
	}
}
