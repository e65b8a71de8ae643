package main

import (
	"fmt"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/infra/llm"
	"github.com/LouYuanbo1/leadagent/internal/service/agent"
	"github.com/LouYuanbo1/leadagent/param"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		stream bool
		topK   int
	)
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "基于已保存的线索回答问题,以 \"chat:\" 开头时直接对话",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			completer, err := a.chatModel(ctx)
			if err != nil {
				return err
			}
			chatModel := llm.ChatModel(completer)
			if native, ok := completer.(llm.LLM); ok {
				chatModel = native.Model()
			}
			if topK <= 0 {
				topK = opts.cfg.Agent.TopK
			}
			leadAgent, err := agent.InitLeadAgent(ctx, chatModel, a.searcher, param.DefaultAgent(topK), opts.logger)
			if err != nil {
				return fmt.Errorf("初始化问答图失败: %w", err)
			}

			question := strings.Join(args, " ")
			if stream {
				if err := leadAgent.Stream(ctx, question, cmd.OutOrStdout()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout())
				return err
			}
			answer, err := leadAgent.Ask(ctx, question)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "流式输出回答")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "检索的线索数,0 使用 agent.top_k")
	return cmd
}
