package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/htmldoc"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/analyzer"
	"github.com/LouYuanbo1/leadagent/param"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	feedURL      = "https://www.linkedin.com/feed/"
	flushTimeout = 30 * time.Second
)

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func pageURL(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return feedURL
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	p := &param.Scan{}
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "打开浏览器,持续扫描动态流或搜索结果页中的新帖子",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.URL = pageURL(args)
			if !p.IsValid() {
				return fmt.Errorf("无效的扫描参数: %s", p.URL)
			}
			ctx := cmd.Context()
			if p.Duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, p.Duration)
				defer cancel()
			}

			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.newScanner(ctx)
			if err != nil {
				return err
			}
			tab, cleanup, err := openTab(ctx, opts.cfg.Browser, p.URL, opts.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.watchEvents(gctx)
				return nil
			})
			g.Go(func() error { return a.exporter.Run(gctx) })
			g.Go(func() error { return s.Run(gctx, tab) })
			err = g.Wait()

			// 退出前导出队列中剩余的线索
			if a.exporter.Queued() > 0 {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), flushTimeout)
				defer cancel()
				if res, ferr := a.exporter.Export(flushCtx); ferr != nil {
					opts.logger.Warn("退出前导出失败", zap.Error(ferr))
				} else {
					opts.logger.Info("退出前导出完成", zap.Int("count", res.Count))
				}
			}
			if err != nil && !isShutdown(err) {
				return err
			}
			session := s.Session()
			opts.logger.Info("扫描结束", zap.Int("seen", session.SeenCount()), zap.String("lastURL", session.LastURL))
			return nil
		},
	}
	cmd.Flags().DurationVarP(&p.Duration, "duration", "d", 0, "扫描时长,0 表示直到中断")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var static bool
	cmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "分析页面类型、结构与可提取的数据",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := pageURL(args)

			var page types.Page
			if static {
				c, err := collector.InitCollyCollector(opts.cfg.Collector, opts.logger)
				if err != nil {
					return err
				}
				snap, err := c.Fetch(ctx, url)
				if err != nil {
					return err
				}
				doc, err := htmldoc.FromSnapshot(snap)
				if err != nil {
					return err
				}
				page = doc
			} else {
				tab, cleanup, err := openTab(ctx, opts.cfg.Browser, url, opts.logger)
				if err != nil {
					return err
				}
				defer cleanup()
				page = tab
			}
			return printJSON(cmd.OutOrStdout(), analyzer.New(opts.logger).Analyze(ctx, page))
		},
	}
	cmd.Flags().BoolVar(&static, "static", false, "使用 colly 静态抓取,不启动浏览器")
	return cmd
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	p := &param.Extract{}
	cmd := &cobra.Command{
		Use:   "extract [url]",
		Short: "按目标模板生成提取策略,--execute 时执行并保存线索",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.URL = pageURL(args)
			if !p.IsValid() {
				return fmt.Errorf("无效的提取参数: %s", p.URL)
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.newScanner(ctx)
			if err != nil {
				return err
			}
			if err := s.Load(ctx); err != nil {
				return err
			}
			tab, cleanup, err := openTab(ctx, opts.cfg.Browser, p.URL, opts.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := s.Intelligent(ctx, tab, p.GoalID, p.Instructions, p.Execute)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&p.GoalID, "goal", "g", "", "目标模板 id,为空时使用推荐目标")
	cmd.Flags().StringVar(&p.Instructions, "instructions", "", "附加给目标的自定义说明")
	cmd.Flags().BoolVar(&p.Execute, "execute", false, "生成策略后立即执行")
	return cmd
}

func newAIExtractCmd(opts *rootOptions) *cobra.Command {
	p := &param.AIExtract{}
	cmd := &cobra.Command{
		Use:   "ai-extract <goal> [url]",
		Short: "由语言模型根据页面结构生成并执行提取策略",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Goal = args[0]
			p.URL = pageURL(args[1:])
			if !p.IsValid() {
				return fmt.Errorf("无效的 AI 提取参数: %q %s", p.Goal, p.URL)
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.newScanner(ctx)
			if err != nil {
				return err
			}
			if err := s.Load(ctx); err != nil {
				return err
			}
			tab, cleanup, err := openTab(ctx, opts.cfg.Browser, p.URL, opts.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, leads, err := s.AIExtract(ctx, tab, p.Goal)
			if err != nil {
				return err
			}
			opts.logger.Info("AI 提取完成", zap.Int("records", res.Count), zap.Int("leads", len(leads)))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	return cmd
}
