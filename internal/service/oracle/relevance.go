package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/llm"
	"go.uber.org/zap"
)

const (
	DefaultModel = "openrouter/openai/gpt-4o-mini"

	relevanceSystem = "You are an assistant that qualifies LinkedIn posts as sales leads. Only return valid JSON."

	relevanceTemplate = `
Company / Lead Profile:
%s

LinkedIn Post:
Author: %s
Content:
%s

Emails: %s
Phones: %s

Decide if this post represents a promising lead that matches the profile. Respond as JSON with keys "relevant" (boolean), "reason" (string under 200 chars), and optional "score" (0-1).`
)

// Relevance 相关性判断结果
type Relevance struct {
	Relevant bool     `json:"relevant"`
	Reason   string   `json:"reason"`
	Score    *float64 `json:"score,omitempty"`
}

// RelevanceOracle 判断线索是否符合公司画像
// 模型不可用、返回为空或无法解析时一律视为相关
type RelevanceOracle struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewRelevanceOracle completer 为 nil 表示未配置密钥
func NewRelevanceOracle(completer llm.Completer, logger *zap.Logger) *RelevanceOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelevanceOracle{completer: completer, logger: logger.Named("relevance")}
}

func (o *RelevanceOracle) Assess(ctx context.Context, lead *model.Lead, profile, modelID string) Relevance {
	if o.completer == nil {
		return Relevance{Relevant: true, Reason: "OpenRouter key not configured; skipping AI check"}
	}
	if modelID == "" {
		modelID = DefaultModel
	}

	content, err := o.completer.Complete(ctx, llm.Request{
		System:      relevanceSystem,
		Prompt:      RelevancePrompt(lead, profile),
		Model:       modelID,
		Temperature: llm.Temperature(0.2),
		JSON:        true,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return Relevance{Relevant: true, Reason: "Empty AI response; defaulting to relevant"}
		}
		o.logger.Warn("相关性判断失败", zap.Error(err))
		return Relevance{Relevant: true, Reason: fmt.Sprintf("AI error: %v", err)}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Relevance{Relevant: true, Reason: "Empty AI response; defaulting to relevant"}
	}

	var parsed struct {
		Relevant *bool    `json:"relevant"`
		Reason   string   `json:"reason"`
		Score    *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		o.logger.Warn("相关性回复无法解析", zap.String("content", content))
		return Relevance{Relevant: true, Reason: "AI response not parseable; defaulting to relevant"}
	}

	r := Relevance{
		Relevant: parsed.Relevant == nil || *parsed.Relevant,
		Reason:   parsed.Reason,
		Score:    parsed.Score,
	}
	if r.Reason == "" {
		r.Reason = "Qualified by AI"
	}
	return r
}

// RelevancePrompt 渲染相关性判断提示词
func RelevancePrompt(lead *model.Lead, profile string) string {
	if profile == "" {
		profile = "Not provided"
	}
	author, content := "Unknown", "No content"
	var emails, phones []string
	if lead != nil {
		if lead.AuthorName != "" {
			author = lead.AuthorName
		}
		if lead.PostContent != "" {
			content = lead.PostContent
		}
		emails, phones = lead.Emails, lead.Phones
	}
	return strings.TrimSpace(fmt.Sprintf(relevanceTemplate, profile, author, content, joinOrNone(emails), joinOrNone(phones)))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
