package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

var ErrNoResponse = errors.New("no response received")

type collyCollector struct {
	colly  *colly.Collector
	cookie string
	now    func() time.Time
	logger *zap.Logger
}

// InitCollyCollector 按配置创建 colly 收集器,Cookie 用于携带登录态
func InitCollyCollector(cfg config.CollectorConfig, logger *zap.Logger) (SnapshotCollector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []colly.CollectorOption
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	c := colly.NewCollector(opts...)
	c.IgnoreRobotsTxt = cfg.IgnoreRobotsTxt
	c.AllowURLRevisit = true

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: max(1, cfg.Parallelism),
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("设置抓取限速失败: %w", err)
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.EnableCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("创建 cookie jar 失败: %w", err)
		}
		c.SetCookieJar(jar)
	}
	logger.Info("colly 收集器已创建",
		zap.Int("parallelism", max(1, cfg.Parallelism)),
		zap.Duration("delay", cfg.Delay),
		zap.Duration("randomDelay", cfg.RandomDelay),
		zap.Bool("cookieJar", cfg.EnableCookieJar))
	return &collyCollector{colly: c, cookie: cfg.Cookie, now: time.Now, logger: logger.Named("collector")}, nil
}

// Fetch 抓取一个页面,非 2xx 状态码返回错误
// 每次抓取使用克隆的收集器,回调互不干扰,限速与 cookie 共享
func (cc *collyCollector) Fetch(ctx context.Context, url string) (*types.Snapshot, error) {
	c := cc.colly.Clone()
	c.Context = ctx

	var (
		snapshot *types.Snapshot
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		if cc.cookie != "" {
			r.Headers.Set("Cookie", cc.cookie)
		}
		cc.logger.Debug("开始抓取", zap.String("url", r.URL.String()))
	})
	c.OnResponse(func(r *colly.Response) {
		snapshot = &types.Snapshot{
			URL:       r.Request.URL.String(),
			Status:    r.StatusCode,
			Body:      r.Body,
			FetchedAt: cc.now(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("抓取 %s 失败, 状态码 %d: %w", url, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("抓取 %s 失败: %w", url, err)
	})

	err := c.Visit(url)
	c.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("访问URL失败: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, url)
	}
	cc.logger.Info("抓取完成", zap.String("url", snapshot.URL), zap.Int("status", snapshot.Status), zap.Int("bytes", len(snapshot.Body)))
	return snapshot, nil
}
