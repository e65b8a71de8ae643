package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/leadagent/internal/infra/llm"
	"github.com/LouYuanbo1/leadagent/internal/service/aiscraper"
)

var ErrNotConfigured = errors.New("llm not configured")

const strategySystem = "You are a web scraping expert. Only return valid JSON."

// StrategyOracle 生成提取策略的模型,任何失败都交给调用方处理
type StrategyOracle struct {
	completer llm.Completer
	model     string
}

var _ aiscraper.Oracle = (*StrategyOracle)(nil)

func NewStrategyOracle(completer llm.Completer, model string) *StrategyOracle {
	return &StrategyOracle{completer: completer, model: model}
}

func (o *StrategyOracle) Generate(ctx context.Context, prompt string) (string, error) {
	if o.completer == nil {
		return "", ErrNotConfigured
	}
	raw, err := o.completer.Complete(ctx, llm.Request{
		System:      strategySystem,
		Prompt:      prompt,
		Model:       o.model,
		Temperature: llm.Temperature(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("AI analysis failed: %w", err)
	}
	return raw, nil
}
