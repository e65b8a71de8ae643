package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/infra/persistence"
	"github.com/LouYuanbo1/leadagent/param"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

var ErrNoAnswer = errors.New("no answer from chat model")

// State 图的本地状态
type State struct {
	Searcher  persistence.Searcher
	TopK      int
	Retrieved int
	Logger    *zap.Logger
}

// LeadAgent 基于已保存线索回答问题
type LeadAgent struct {
	graph  compose.Runnable[map[string]any, map[string]any]
	logger *zap.Logger
}

func InitLeadAgent(
	ctx context.Context,
	chatModel model.BaseChatModel,
	searcher persistence.Searcher,
	p *param.Agent,
	logger *zap.Logger,
) (*LeadAgent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !p.IsValid() {
		return nil, errors.New("invalid agent param")
	}
	graph, err := initAgentGraph(ctx, chatModel, searcher, p, logger.Named("agent"))
	if err != nil {
		return nil, fmt.Errorf("创建流程图失败: %w", err)
	}
	return &LeadAgent{graph: graph, logger: logger.Named("agent")}, nil
}

// initAgentGraph 意图检测后分为检索模式与聊天模式两条路径,最后汇合到聊天模型节点
func initAgentGraph(
	ctx context.Context,
	chatModel model.BaseChatModel,
	searcher persistence.Searcher,
	p *param.Agent,
	logger *zap.Logger,
) (compose.Runnable[map[string]any, map[string]any], error) {
	genState := func(ctx context.Context) *State {
		return &State{Searcher: searcher, TopK: p.TopK, Logger: logger}
	}
	graph := compose.NewGraph[map[string]any, map[string]any](compose.WithGenLocalState(genState))

	if err := graph.AddLambdaNode("intentDetection", IntentDetection()); err != nil {
		return nil, err
	}
	if err := graph.AddLambdaNode("retriever", Retriever()); err != nil {
		return nil, err
	}
	if err := graph.AddChatTemplateNode("searchModePrompt", p.Prompt[param.PromptSearchMode]); err != nil {
		return nil, err
	}
	if err := graph.AddChatTemplateNode("chatModePrompt", p.Prompt[param.PromptChatMode]); err != nil {
		return nil, err
	}
	if err := graph.AddChatModelNode("llm", chatModel, compose.WithOutputKey("finalResponse")); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(compose.START, "intentDetection"); err != nil {
		return nil, err
	}
	err := graph.AddBranch("intentDetection", compose.NewGraphBranch(BranchCondition, map[string]bool{
		"retriever":      true,
		"chatModePrompt": true,
	}))
	if err != nil {
		return nil, err
	}
	for _, edge := range [][2]string{
		{"retriever", "searchModePrompt"},
		{"searchModePrompt", "llm"},
		{"chatModePrompt", "llm"},
		{"llm", compose.END},
	} {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("添加边 %s -> %s 失败: %w", edge[0], edge[1], err)
		}
	}
	return graph.Compile(ctx)
}

// Ask 返回完整回答
func (a *LeadAgent) Ask(ctx context.Context, query string) (string, error) {
	result, err := a.graph.Invoke(ctx, map[string]any{"query": query})
	if err != nil {
		return "", fmt.Errorf("执行流程图失败: %w", err)
	}
	if msg, ok := result["finalResponse"].(*schema.Message); ok && msg != nil {
		return msg.Content, nil
	}
	return "", ErrNoAnswer
}

// Stream 把回答逐段写入 w
func (a *LeadAgent) Stream(ctx context.Context, query string, w io.Writer) error {
	reader, err := a.graph.Stream(ctx, map[string]any{"query": query})
	if err != nil {
		return fmt.Errorf("执行流程图失败: %w", err)
	}
	defer reader.Close()

	var written strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.logger.Warn("接收回答失败", zap.Error(err))
			return err
		}
		if msg, ok := chunk["finalResponse"].(*schema.Message); ok && msg != nil {
			written.WriteString(msg.Content)
			if _, err := io.WriteString(w, msg.Content); err != nil {
				return err
			}
		}
	}
	if written.Len() == 0 {
		return ErrNoAnswer
	}
	_, err = io.WriteString(w, "\n")
	return err
}
