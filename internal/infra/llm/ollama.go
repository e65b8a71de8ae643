package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultOllamaModel = "qwen3:8b"

// Ollama 本地模型后端,同时可作为 eino 图里的聊天模型
type Ollama struct {
	chat        *ollama.ChatModel
	temperature float32
}

var _ LLM = (*Ollama)(nil)

func NewOllama(ctx context.Context, cfg config.LLMConfig) (*Ollama, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		host := cfg.Host
		if host == "" {
			host = "http://localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 11434
		}
		baseURL = host + ":" + strconv.Itoa(port)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	chat, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化ollama模型失败: %w", err)
	}
	return &Ollama{chat: chat, temperature: cfg.Temperature}, nil
}

func (o *Ollama) Model() model.BaseChatModel {
	return o.chat
}

func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	system := strings.TrimSpace(req.System)
	if req.JSON && !strings.Contains(strings.ToLower(system), "json") {
		system = strings.TrimSpace(system + "\nOnly return valid JSON.")
	}
	var input []*schema.Message
	if system != "" {
		input = append(input, schema.SystemMessage(system))
	}
	input = append(input, schema.UserMessage(req.Prompt))

	temperature := o.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	opts := []model.Option{model.WithTemperature(temperature)}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	msg, err := o.chat.Generate(ctx, input, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama生成失败: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(msg.Content), nil
}
