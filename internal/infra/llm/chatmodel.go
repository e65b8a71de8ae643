package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel 返回可放入 eino 图的聊天模型
// ollama 后端直接使用原生模型,其它后端包装为一次性补全
func ChatModel(c Completer) model.BaseChatModel {
	if l, ok := c.(LLM); ok {
		return l.Model()
	}
	return &completerChatModel{completer: c}
}

type completerChatModel struct {
	completer Completer
}

func (m *completerChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)
	req := Request{Temperature: options.Temperature}
	if options.Model != nil {
		req.Model = *options.Model
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	req.System, req.Prompt = flatten(input)

	content, err := m.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

func (m *completerChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// flatten 系统消息合并为 system,其余消息只有一条用户消息时原样作为 prompt,否则按角色拼接
func flatten(input []*schema.Message) (system, prompt string) {
	var systems []string
	var rest []*schema.Message
	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			systems = append(systems, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	system = strings.Join(systems, "\n\n")

	if len(rest) == 1 && rest[0].Role == schema.User {
		return system, rest[0].Content
	}
	var b strings.Builder
	for i, msg := range rest {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return system, b.String()
}
