package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/cloudwego/eino/components/model"
)

var (
	ErrNoAPIKey      = errors.New("llm api key not configured")
	ErrEmptyResponse = errors.New("empty llm response")
)

// Request 一次补全请求,Model 为空时使用配置中的模型
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature *float32
	MaxTokens   int
	// JSON 要求模型只返回 json 对象
	JSON bool
}

// Completer 把语言模型当作只收发文本的外部服务
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// LLM 可以直接作为 eino 图中聊天模型节点的后端
type LLM interface {
	Completer
	Model() model.BaseChatModel
}

// Temperature 返回温度参数指针
func Temperature(t float32) *float32 {
	return &t
}

// InitCompleter 按 provider 创建补全后端,配置了 rps 时附加限流
func InitCompleter(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openrouter":
		if cfg.BaseURL == "" {
			cfg.BaseURL = OpenRouterBaseURL
		}
		c, err = NewOpenAI(cfg)
	case "openai":
		c, err = NewOpenAI(cfg)
	case "anthropic":
		c, err = NewAnthropic(cfg)
	case "ollama":
		c, err = NewOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: openrouter, openai, anthropic, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RPS > 0 {
		c = NewRateLimited(c, cfg.RPS, cfg.Burst)
	}
	return c, nil
}
