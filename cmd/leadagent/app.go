package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/leadagent/internal/infra/embedding"
	"github.com/LouYuanbo1/leadagent/internal/infra/llm"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/es"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/kv"
	"github.com/LouYuanbo1/leadagent/internal/infra/sheets"
	"github.com/LouYuanbo1/leadagent/internal/service/aiscraper"
	"github.com/LouYuanbo1/leadagent/internal/service/executor"
	"github.com/LouYuanbo1/leadagent/internal/service/export"
	"github.com/LouYuanbo1/leadagent/internal/service/matcher"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"github.com/LouYuanbo1/leadagent/internal/service/oracle"
	"github.com/LouYuanbo1/leadagent/internal/service/scanner"
	"github.com/LouYuanbo1/leadagent/internal/service/settings"
	"go.uber.org/zap"
)

// app 命令共用的服务集合
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store     kv.Store
	bus       *notify.Bus
	settings  *settings.Manager
	leads     persistence.LeadStore
	searcher  persistence.Searcher
	completer llm.Completer
	exporter  *export.Exporter
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := kv.InitStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化配置存储失败: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store, bus: notify.NewBus(logger)}
	a.settings = settings.NewManager(store, a.bus, logger)

	if err := a.initLeads(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// 语言模型不可用时只关闭相关性判断与 AI 提取
	completer, err := llm.InitCompleter(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("语言模型不可用", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	} else {
		a.completer = completer
	}

	var sink sheets.Sink
	client, err := sheets.NewClient(cfg.Sheets, logger)
	switch {
	case err == nil:
		sink = client
	case errors.Is(err, sheets.ErrNotConfigured):
		logger.Info("未配置表格,导出不可用")
	default:
		a.Close()
		return nil, fmt.Errorf("初始化表格客户端失败: %w", err)
	}
	a.exporter = export.NewExporter(sink, a.leads, a.settings, a.settings, a.bus, cfg.Export, logger)
	return a, nil
}

func (a *app) initLeads(ctx context.Context) error {
	if a.cfg.Leads.Kind != "elasticsearch" {
		kvLeads := persistence.NewKVLeadStore(a.store, a.logger)
		a.leads, a.searcher = kvLeads, kvLeads
		return nil
	}
	client, err := es.InitTypedEsClient[*model.Lead](a.cfg.Leads, a.logger)
	if err != nil {
		return fmt.Errorf("初始化Elasticsearch客户端失败: %w", err)
	}
	var embedder embedding.Embedder
	if a.cfg.Leads.Embed {
		if embedder, err = embedding.InitEmbedder(ctx, a.cfg.Embedder); err != nil {
			return err
		}
	}
	leadStore, err := es.InitLeadStore(ctx, client, embedder, a.logger)
	if err != nil {
		return fmt.Errorf("创建线索索引失败: %w", err)
	}
	a.leads, a.searcher = leadStore, leadStore
	return nil
}

// newScanner 每次调用返回独立的扫描器,共享存储、导出队列与事件总线
func (a *app) newScanner(ctx context.Context, opts ...scanner.Option) (*scanner.Scanner, error) {
	keywords, err := a.settings.Keywords(ctx)
	if err != nil {
		return nil, err
	}
	current, err := a.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	// 扫描器与执行器共用同一个匹配器,关键词与选项的变更同时生效
	shared := matcher.New(keywords, matcher.Options{CaseSensitive: current.CaseSensitive, WholeWord: current.WholeWord})
	deps := scanner.Deps{
		Matcher:  shared,
		Settings: a.settings,
		Leads:    a.leads,
		Exporter: a.exporter,
		Bus:      a.bus,
	}
	execOpts := []executor.Option{executor.WithMatcher(shared)}
	if a.completer != nil {
		scraper := aiscraper.NewScraper(a.cfg.Executor, oracle.NewStrategyOracle(a.completer, a.cfg.LLM.Model), a.logger)
		deps.Relevance = oracle.NewRelevanceOracle(a.completer, a.logger)
		deps.AIScraper = scraper
		execOpts = append(execOpts,
			executor.WithAssessor(oracle.NewBatchAssessor(a.completer, a.cfg.LLM.Model, a.logger)),
			executor.WithPlanner(scraper))
	}
	deps.Executor = executor.NewExecutor(a.cfg.Executor, a.logger, execOpts...)
	return scanner.NewScanner(a.cfg.Scanner, deps, a.logger, opts...), nil
}

// openTab 启动浏览器并打开 url,返回的 cleanup 依次关闭标签页与浏览器
func openTab(ctx context.Context, cfg config.BrowserConfig, url string, logger *zap.Logger) (chrome.Tab, func(), error) {
	browser, err := chrome.InitBrowser(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化浏览器失败: %w", err)
	}
	tab, err := browser.OpenPage(ctx, url)
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("打开页面失败: %w", err)
	}
	if err := tab.WaitUntilLoaded(ctx, cfg.LoadTimeout); err != nil {
		logger.Warn("页面加载超时,继续处理已渲染的内容", zap.String("url", url), zap.Error(err))
	}
	cleanup := func() {
		if err := tab.Close(); err != nil {
			logger.Debug("关闭标签页失败", zap.Error(err))
		}
		if err := browser.Close(); err != nil {
			logger.Warn("关闭浏览器失败", zap.Error(err))
		}
	}
	return tab, cleanup, nil
}

// chatModel 为问答图选择聊天模型,agent.chat_model 非空时覆盖 llm.model
func (a *app) chatModel(ctx context.Context) (llm.Completer, error) {
	if a.cfg.Agent.ChatModel == "" || a.cfg.Agent.ChatModel == a.cfg.LLM.Model {
		if a.completer == nil {
			return nil, errors.New("语言模型未配置")
		}
		return a.completer, nil
	}
	cfg := a.cfg.LLM
	cfg.Model = a.cfg.Agent.ChatModel
	return llm.InitCompleter(ctx, cfg)
}

// watchEvents 把总线事件写入日志,直到 ctx 结束
func (a *app) watchEvents(ctx context.Context) {
	events, unsubscribe := a.bus.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case notify.EventNewLead:
				if lead, ok := ev.Payload.(*model.Lead); ok {
					a.logger.Info("发现新线索", zap.String("id", lead.ID), zap.String("author", lead.AuthorName), zap.Strings("keywords", lead.KeywordsMatched))
					continue
				}
				a.logger.Info("发现新线索")
			case notify.EventNotification:
				if n, ok := ev.Payload.(notify.Notification); ok {
					a.logger.Info(n.Title, zap.String("message", n.Message))
				}
			default:
				a.logger.Debug("事件", zap.String("type", string(ev.Type)), zap.Any("payload", ev.Payload))
			}
		}
	}
}

func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("关闭配置存储失败", zap.Error(err))
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
