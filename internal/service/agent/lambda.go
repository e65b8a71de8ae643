package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

// chatPrefixes 以这些前缀开头的问题不检索线索,直接交给模型
var chatPrefixes = []string{"聊天模式", "chat:"}

// IntentDetection 意图检测节点,默认检索线索,问题以聊天前缀开头时切换为聊天模式并去掉前缀
func IntentDetection() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state map[string]any) (map[string]any, error) {
		query, ok := state["query"].(string)
		if !ok {
			return nil, errors.New("query not found in state")
		}
		state["isSearchMode"] = true
		for _, prefix := range chatPrefixes {
			if strings.HasPrefix(strings.ToLower(query), prefix) {
				state["isSearchMode"] = false
				state["query"] = strings.TrimSpace(query[len(prefix):])
				break
			}
		}
		return state, nil
	})
}

// BranchCondition 检索模式进入 retriever 节点,否则进入 chatModePrompt 节点
func BranchCondition(ctx context.Context, state map[string]any) (string, error) {
	isSearchMode, ok := state["isSearchMode"].(bool)
	if !ok {
		return "", errors.New("isSearchMode not found in state")
	}
	if isSearchMode {
		return "retriever", nil
	}
	return "chatModePrompt", nil
}

// Retriever 检索节点,取回与问题最相关的线索写入 referenceDocs
func Retriever() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state map[string]any) (map[string]any, error) {
		query, ok := state["query"].(string)
		if !ok {
			return nil, errors.New("query not found in state")
		}
		err := compose.ProcessState[*State](ctx, func(ctx context.Context, s *State) error {
			leads, err := s.Searcher.Search(ctx, query, s.TopK)
			if err != nil {
				return fmt.Errorf("检索线索失败: %w", err)
			}
			var builder strings.Builder
			builder.WriteString("参考线索(JSON格式):\n\n")
			if len(leads) == 0 {
				builder.WriteString("(none)\n")
			}
			for i, lead := range leads {
				raw, err := json.Marshal(lead)
				if err != nil {
					return err
				}
				fmt.Fprintf(&builder, "线索%d:\n%s\n\n", i+1, raw)
			}
			state["referenceDocs"] = builder.String()
			s.Retrieved = len(leads)
			s.Logger.Debug("检索到线索", zap.String("query", query), zap.Int("count", len(leads)))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return state, nil
	})
}
