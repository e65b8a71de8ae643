package main

import (
	"context"
	"fmt"
	"strings"

	crawlerparallel "github.com/LouYuanbo1/leadagent/internal/infra/crawler/parallel"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/parallel"
	"github.com/LouYuanbo1/leadagent/internal/service/scanner"
	"github.com/LouYuanbo1/leadagent/param"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHuntCmd(opts *rootOptions) *cobra.Command {
	p := &param.Hunt{}
	var exportAfter bool
	cmd := &cobra.Command{
		Use:   "hunt [keyword...]",
		Short: "在多个标签页中并行搜索关键词并扫描结果",
		Long:  "hunt 为每个关键词打开一个搜索结果页并扫描帖子,未给出关键词时使用已保存的关键词。",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			p.Keywords = args
			if len(p.Keywords) == 0 {
				if p.Keywords, err = a.settings.Keywords(ctx); err != nil {
					return err
				}
			}
			if p.PoolSize == 0 {
				p.PoolSize = opts.cfg.Parallel.PoolSize
			}
			if !p.IsValid() {
				return fmt.Errorf("无效的搜索参数: keywords=%q pool=%d", strings.Join(p.Keywords, ","), p.PoolSize)
			}

			pool, err := crawlerparallel.InitRodTabPool(opts.cfg.Browser, p.PoolSize, opts.logger)
			if err != nil {
				return fmt.Errorf("初始化标签页池失败: %w", err)
			}
			defer func() {
				if err := pool.Close(); err != nil {
					opts.logger.Warn("关闭标签页池失败", zap.Error(err))
				}
			}()

			// 所有标签页共享线索存储,同一帖子只保存一次
			newSweeper := func() parallel.Sweeper {
				s, err := a.newScanner(ctx)
				if err != nil {
					return failedSweeper{err: err}
				}
				return s
			}
			hunter := parallel.NewHunter(opts.cfg.Parallel, pool, newSweeper, opts.logger)
			result, huntErr := hunter.Hunt(ctx, p.Keywords)
			if result != nil {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}

			if exportAfter && a.exporter.Queued() > 0 {
				res, err := a.exporter.Export(context.WithoutCancel(ctx))
				if err != nil {
					opts.logger.Error("导出失败", zap.Error(err))
				} else {
					opts.logger.Info("导出完成", zap.Int("count", res.Count))
				}
			}
			return huntErr
		},
	}
	cmd.Flags().IntVarP(&p.PoolSize, "pool", "p", 0, "同时打开的标签页数,0 使用 parallel.pool_size")
	cmd.Flags().BoolVar(&exportAfter, "export", false, "搜索结束后导出新线索")
	return cmd
}

// failedSweeper 扫描器创建失败时占位,错误记录在对应关键词的结果中
type failedSweeper struct{ err error }

func (f failedSweeper) Load(context.Context) error { return f.err }

func (f failedSweeper) Sweep(context.Context, types.Page) (scanner.ScanResult, error) {
	return scanner.ScanResult{}, f.err
}
