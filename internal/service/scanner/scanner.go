package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/kv"
	"github.com/LouYuanbo1/leadagent/internal/service/aiscraper"
	"github.com/LouYuanbo1/leadagent/internal/service/analyzer"
	"github.com/LouYuanbo1/leadagent/internal/service/contact"
	"github.com/LouYuanbo1/leadagent/internal/service/executor"
	"github.com/LouYuanbo1/leadagent/internal/service/goal"
	"github.com/LouYuanbo1/leadagent/internal/service/matcher"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"github.com/LouYuanbo1/leadagent/internal/service/oracle"
	"github.com/LouYuanbo1/leadagent/internal/service/settings"
	"go.uber.org/zap"
)

var (
	ErrScanInProgress    = errors.New("scan already in progress")
	ErrExtractionRunning = errors.New("extraction in progress")
	ErrNoScraper         = errors.New("ai scraper not configured")
)

// LeadSaver 线索存储,id 已存在时返回 false
type LeadSaver interface {
	Add(ctx context.Context, lead *model.Lead) (bool, error)
}

// Enqueuer 新线索交给导出队列
type Enqueuer interface {
	Enqueue(ctx context.Context, lead *model.Lead)
}

type RelevanceChecker interface {
	Assess(ctx context.Context, lead *model.Lead, profile, modelID string) oracle.Relevance
}

// StrategyRunner 策略执行器
type StrategyRunner interface {
	Execute(ctx context.Context, page types.Page, s *strategy.Strategy) strategy.ExecutionResult
	Running() bool
	Stop()
}

// AIScraper 由模型生成并执行提取策略
type AIScraper interface {
	Plan(ctx context.Context, page types.Page, userGoal string) (*strategy.AIStrategy, error)
	ExecuteStrategy(ctx context.Context, page types.Page, plan *strategy.AIStrategy) (*aiscraper.ExtractionResult, error)
}

// Deps 扫描器的协作者,Exporter/Relevance/AIScraper 可以为 nil
// Matcher 为 nil 时扫描器自建一个,与执行器共用时配置变更对两者同时生效
type Deps struct {
	Matcher   *matcher.Matcher
	Settings  *settings.Manager
	Leads     LeadSaver
	Exporter  Enqueuer
	Relevance RelevanceChecker
	Analyzer  *analyzer.Analyzer
	Goals     *goal.Engine
	Executor  StrategyRunner
	AIScraper AIScraper
	Bus       notify.Publisher
}

type Option func(*Scanner)

func WithSleep(sleep executor.SleepFunc) Option { return func(s *Scanner) { s.sleep = sleep } }

func WithClock(now func() time.Time) Option { return func(s *Scanner) { s.now = now } }

// Scanner 持续扫描信息流中的帖子,并调度自动搜索与智能提取
type Scanner struct {
	cfg       config.ScannerConfig
	settings  *settings.Manager
	leads     LeadSaver
	exporter  Enqueuer
	relevance RelevanceChecker
	analyzer  *analyzer.Analyzer
	goals     *goal.Engine
	executor  StrategyRunner
	scraper   AIScraper
	bus       notify.Publisher
	logger    *zap.Logger

	matcher  *matcher.Matcher
	contacts *contact.Extractor
	sleep    executor.SleepFunc
	now      func() time.Time

	mu      sync.Mutex
	session *Session

	scanning atomic.Bool
	kick     chan struct{}
}

func NewScanner(cfg config.ScannerConfig, deps Deps, logger *zap.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ObserveInterval <= 0 {
		cfg.ObserveInterval = time.Second
	}
	if cfg.NavigationSettle <= 0 {
		cfg.NavigationSettle = 1500 * time.Millisecond
	}
	if cfg.SearchInputWait <= 0 {
		cfg.SearchInputWait = 4 * time.Second
	}
	bus := deps.Bus
	if bus == nil {
		bus = notify.Nop{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analyzer.New(logger)
	}
	if deps.Goals == nil {
		deps.Goals = goal.NewEngine(logger)
	}
	if deps.Matcher == nil {
		deps.Matcher = matcher.New(nil, matcher.Options{})
	}
	s := &Scanner{
		cfg:       cfg,
		settings:  deps.Settings,
		leads:     deps.Leads,
		exporter:  deps.Exporter,
		relevance: deps.Relevance,
		analyzer:  deps.Analyzer,
		goals:     deps.Goals,
		executor:  deps.Executor,
		scraper:   deps.AIScraper,
		bus:       bus,
		logger:    logger.Named("scanner"),
		matcher:   deps.Matcher,
		contacts:  contact.NewExtractor(),
		sleep:     executor.Sleep,
		now:       time.Now,
		session:   NewSession(),
		kick:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 从配置存储读取关键词、设置与自动搜索状态
func (s *Scanner) Load(ctx context.Context) error {
	keywords, err := s.settings.Keywords(ctx)
	if err != nil {
		return fmt.Errorf("读取关键词失败: %w", err)
	}
	current, err := s.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("读取设置失败: %w", err)
	}
	var state AutoSearchState
	if _, err := s.settings.Load(ctx, settings.KeyAutoSearchState, &state); err != nil {
		s.logger.Warn("自动搜索状态无法读取", zap.Error(err))
		state = AutoSearchState{}
	}

	s.mu.Lock()
	s.session.Keywords = keywords
	s.session.Settings = current
	s.session.AutoSearch = state
	s.mu.Unlock()

	s.matcher.SetKeywords(keywords)
	s.matcher.SetOptions(matcher.Options{CaseSensitive: current.CaseSensitive, WholeWord: current.WholeWord})
	s.logger.Info("扫描器已加载", zap.Int("keywords", len(keywords)), zap.Bool("autoSearch", state.Running))
	return nil
}

// Session 当前状态的快照
func (s *Scanner) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Snapshot()
}

// Run 扫描主循环,直到 ctx 结束
// 新帖子轮询、定时扫描、自动搜索与配置变更都在同一个 goroutine 中处理,扫描不会重入
func (s *Scanner) Run(ctx context.Context, page types.Page) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	changes, err := s.settings.Store().Watch(ctx)
	if err != nil {
		return fmt.Errorf("订阅配置变更失败: %w", err)
	}

	snap := s.Session()
	interval := snap.Settings.ScanInterval()
	periodic := time.NewTicker(interval)
	defer periodic.Stop()
	observe := time.NewTicker(s.cfg.ObserveInterval)
	defer observe.Stop()
	auto := time.NewTimer(time.Hour)
	auto.Stop()
	defer auto.Stop()

	if snap.Settings.AutoSearchEnabled && !snap.AutoSearch.Running {
		if err := s.StartAutoSearch(ctx); err != nil {
			s.logger.Warn("启动自动搜索失败", zap.Error(err))
		}
	} else if snap.AutoSearch.Running {
		auto.Reset(0)
	}

	s.mu.Lock()
	s.session.LastURL = page.URL()
	s.mu.Unlock()
	s.publishStatus("started", snap.Keywords)
	if snap.Settings.IntelligentMode {
		if _, err := s.Intelligent(ctx, page, "", "", snap.Settings.AutopilotEnabled); err != nil {
			s.logger.Warn("智能模式启动失败", zap.Error(err))
		}
	}
	s.runScanIfReady(ctx, page)

	for {
		select {
		case <-ctx.Done():
			s.publishStatus("stopped", nil)
			return ctx.Err()

		case cs, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if next := s.applyChanges(ctx, cs); next > 0 && next != interval {
				interval = next
				periodic.Reset(interval)
			}

		case <-observe.C:
			s.observe(ctx, page)

		case <-periodic.C:
			s.runScanIfReady(ctx, page)

		case <-auto.C:
			if delay, ok := s.autoSearchStep(ctx, page); ok {
				auto.Reset(delay)
			}

		case <-s.kick:
			if s.Session().AutoSearch.Running {
				auto.Reset(0)
			} else {
				auto.Stop()
			}
		}
	}
}

// applyChanges 应用配置变更,返回新的扫描间隔
func (s *Scanner) applyChanges(ctx context.Context, cs kv.ChangeSet) time.Duration {
	var interval time.Duration
	if change, ok := cs[settings.KeyKeywords]; ok {
		var keywords []string
		if len(change.NewValue) > 0 {
			if err := json.Unmarshal(change.NewValue, &keywords); err != nil {
				s.logger.Warn("关键词变更无法解析", zap.Error(err))
			}
		}
		if keywords == nil {
			keywords = []string{}
		}
		s.mu.Lock()
		s.session.Keywords = keywords
		s.session.ResetSeen()
		s.mu.Unlock()
		s.matcher.SetKeywords(keywords)
		s.logger.Info("关键词已更新", zap.Strings("keywords", keywords))
	}

	if change, ok := cs[settings.KeySettings]; ok {
		next, err := config.MergeSettings(change.NewValue)
		if err != nil {
			s.logger.Warn("设置变更无法解析,使用默认值", zap.Error(err))
		}
		s.mu.Lock()
		prev := s.session.Settings
		s.session.Settings = next
		s.mu.Unlock()
		s.matcher.SetOptions(matcher.Options{CaseSensitive: next.CaseSensitive, WholeWord: next.WholeWord})
		interval = next.ScanInterval()

		if next.AutoSearchEnabled != prev.AutoSearchEnabled {
			var err error
			if next.AutoSearchEnabled {
				err = s.StartAutoSearch(ctx)
			} else {
				err = s.StopAutoSearch(ctx)
			}
			if err != nil {
				s.logger.Warn("切换自动搜索失败", zap.Error(err))
			}
		}
	}
	return interval
}

// runScanIfReady 没有关键词,或手动模式且自动搜索未运行时跳过
func (s *Scanner) runScanIfReady(ctx context.Context, page types.Page) {
	snap := s.Session()
	if len(snap.Keywords) == 0 {
		return
	}
	if snap.Settings.ScanMode == config.ScanModeManual && !snap.AutoSearch.Running {
		return
	}
	if _, err := s.Scan(ctx, page); err != nil && !errors.Is(err, ErrScanInProgress) && !errors.Is(err, ErrExtractionRunning) {
		s.logger.Warn("定时扫描失败", zap.Error(err))
	}
}

// observe 检查地址变化与新出现的帖子
func (s *Scanner) observe(ctx context.Context, page types.Page) {
	current := page.URL()
	s.mu.Lock()
	changed := current != s.session.LastURL
	s.session.LastURL = current
	snap := s.session.Snapshot()
	s.mu.Unlock()

	if changed {
		s.logger.Debug("页面地址变化", zap.String("url", current))
		s.handlePageChange(ctx, page, snap)
	}
	if len(snap.Keywords) == 0 || snap.Settings.ScanMode != config.ScanModeAuto {
		return
	}
	if _, err := s.Scan(ctx, page); err != nil && !errors.Is(err, ErrScanInProgress) && !errors.Is(err, ErrExtractionRunning) {
		s.logger.Warn("扫描新帖子失败", zap.Error(err))
	}
}

func (s *Scanner) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scanner) publishStatus(status string, keywords []string) {
	s.bus.Publish(notify.EventScanStatus, map[string]any{"status": status, "keywords": keywords})
}

func (s *Scanner) notify(title, message string) {
	s.bus.Publish(notify.EventNotification, notify.Notification{Title: title, Message: message})
}
