package param

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

type PromptType string

const (
	PromptSearchMode PromptType = "searchMode"
	PromptChatMode   PromptType = "chatMode"
)

type Agent struct {
	// TopK 检索模式下取回的线索数量
	TopK   int
	Prompt map[PromptType]*prompt.DefaultChatTemplate
}

func (a *Agent) IsValid() bool {
	return a.TopK > 0 && a.Prompt[PromptSearchMode] != nil && a.Prompt[PromptChatMode] != nil
}

// DefaultAgent 线索问答使用的默认提示词
func DefaultAgent(topK int) *Agent {
	return &Agent{
		TopK: topK,
		Prompt: map[PromptType]*prompt.DefaultChatTemplate{
			PromptSearchMode: prompt.FromMessages(schema.FString,
				schema.SystemMessage(`You are a sales research assistant. Answer questions about LinkedIn leads that were captured from posts.
Only use the reference leads below. If they do not answer the question, say so.
Cite leads by author name and include emails or phone numbers when they are relevant.

{referenceDocs}`),
				schema.UserMessage("{query}"),
			),
			PromptChatMode: prompt.FromMessages(schema.FString,
				schema.SystemMessage("You are a concise sales research assistant helping with LinkedIn prospecting."),
				schema.UserMessage("{query}"),
			),
		},
	}
}
