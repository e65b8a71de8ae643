package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/feed"
	"github.com/LouYuanbo1/leadagent/internal/service/scanner"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPageNotReady = errors.New("no posts rendered on page")
	ErrNoKeywords   = errors.New("no keywords to hunt")
)

// TabOpener 标签页来源,Size 为最多同时打开的标签页数
type TabOpener interface {
	Size() int
	OpenPage(ctx context.Context, url string) (chrome.Tab, error)
}

// Sweeper 在一个标签页上扫描帖子,每个标签页使用独立实例
type Sweeper interface {
	Load(ctx context.Context) error
	Sweep(ctx context.Context, page types.Page) (scanner.ScanResult, error)
}

// KeywordResult 单个关键词的搜索结果
type KeywordResult struct {
	Keyword string        `json:"keyword"`
	Scanned int           `json:"scanned"`
	Leads   []*model.Lead `json:"leads"`
	Error   string        `json:"error,omitempty"`
}

type HuntResult struct {
	Keywords []KeywordResult `json:"keywords"`
	Leads    int             `json:"leads"`
}

// Hunter 在多个标签页中并行搜索关键词
type Hunter struct {
	cfg        config.ParallelConfig
	tabs       TabOpener
	newSweeper func() Sweeper
	logger     *zap.Logger
}

func NewHunter(cfg config.ParallelConfig, tabs TabOpener, newSweeper func() Sweeper, logger *zap.Logger) *Hunter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retries < 1 {
		cfg.Retries = 3
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	return &Hunter{cfg: cfg, tabs: tabs, newSweeper: newSweeper, logger: logger.Named("hunter")}
}

// Hunt 每个关键词打开一个搜索结果页并扫描,单个关键词失败不影响其他关键词
// 结果按关键词顺序返回,所有失败汇总为一个错误
func (h *Hunter) Hunt(ctx context.Context, keywords []string) (*HuntResult, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	result := &HuntResult{Keywords: make([]KeywordResult, len(keywords))}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(max(1, h.tabs.Size()))
	for i, keyword := range keywords {
		g.Go(func() error {
			res, err := h.huntKeyword(ctx, keyword)
			kr := KeywordResult{Keyword: keyword, Scanned: res.Scanned, Leads: res.Leads}
			if kr.Leads == nil {
				kr.Leads = []*model.Lead{}
			}
			if err != nil {
				kr.Error = err.Error()
				mu.Lock()
				errs = append(errs, fmt.Errorf("关键词 %q: %w", keyword, err))
				mu.Unlock()
			}
			result.Keywords[i] = kr
			return nil
		})
	}
	_ = g.Wait()

	for _, kr := range result.Keywords {
		result.Leads += len(kr.Leads)
	}
	h.logger.Info("并行搜索完成", zap.Int("keywords", len(keywords)), zap.Int("leads", result.Leads), zap.Int("errors", len(errs)))
	if len(errs) > 0 {
		return result, fmt.Errorf("%d errors occurred: %w", len(errs), errors.Join(errs...))
	}
	return result, nil
}

func (h *Hunter) huntKeyword(ctx context.Context, keyword string) (scanner.ScanResult, error) {
	url := scanner.SearchURL(keyword)
	tab, err := h.tabs.OpenPage(ctx, url)
	if err != nil {
		return scanner.ScanResult{}, fmt.Errorf("打开搜索页失败: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			h.logger.Debug("归还标签页失败", zap.Error(err))
		}
	}()
	if err := tab.WaitUntilLoaded(ctx, h.cfg.LoadTimeout); err != nil {
		h.logger.Warn("页面加载超时,继续扫描", zap.String("keyword", keyword), zap.Error(err))
	}

	sweeper := h.newSweeper()
	if err := sweeper.Load(ctx); err != nil {
		return scanner.ScanResult{}, err
	}

	attempt := 0
	sweep := func() (scanner.ScanResult, error) {
		attempt++
		if len(feed.CollectPosts(ctx, tab)) == 0 {
			h.logger.Debug("搜索结果尚未渲染", zap.String("keyword", keyword), zap.Int("attempt", attempt))
			return scanner.ScanResult{}, ErrPageNotReady
		}
		res, err := sweeper.Sweep(ctx, tab)
		if err != nil {
			return res, backoff.Permanent(err)
		}
		return res, nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(h.cfg.RetryDelay), uint64(h.cfg.Retries-1)),
		ctx,
	)
	res, err := backoff.RetryWithData(sweep, b)
	if err != nil {
		return res, err
	}
	h.logger.Info("关键词搜索完成", zap.String("keyword", keyword), zap.Int("scanned", res.Scanned), zap.Int("leads", len(res.Leads)))
	return res, nil
}
