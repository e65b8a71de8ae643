package main

import (
	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions 所有子命令共享的全局参数,配置与 logger 在 PersistentPreRunE 中初始化
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "leadagent",
		Short:         "在 LinkedIn 动态中发现招聘线索",
		Long:          "leadagent 扫描 LinkedIn 动态与搜索结果,按关键词匹配帖子,提取联系方式并导出到表格。",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(appConfig, opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logger.Level = opts.logLevel
			}
			observability.InitializeLogger(cfg.Logger)
			opts.cfg = cfg
			opts.logger = observability.GetLogger()
			opts.logger.Debug("配置加载完成",
				zap.String("config", opts.configPath),
				zap.String("browser", cfg.Browser.Driver),
				zap.String("store", cfg.Store.Kind),
				zap.String("leads", cfg.Leads.Kind),
				zap.String("llm", cfg.LLM.Provider))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "外部配置文件,合并到嵌入的 appconfig.json 之上")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别: debug, info, warn, error")

	cmd.AddCommand(
		newScanCmd(opts),
		newAnalyzeCmd(opts),
		newExtractCmd(opts),
		newAIExtractCmd(opts),
		newHuntCmd(opts),
		newExportCmd(opts),
		newAskCmd(opts),
		newKeywordsCmd(opts),
	)
	return cmd
}
