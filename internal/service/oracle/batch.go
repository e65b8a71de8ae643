package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/llm"
	"github.com/LouYuanbo1/leadagent/internal/service/executor"
	"go.uber.org/zap"
)

const batchSystem = "You are an intelligent data extraction assistant for LinkedIn lead generation. Only return valid JSON."

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// BatchAssessor 一次请求评估策略已提取的全部记录,结果按下标对应
type BatchAssessor struct {
	completer llm.Completer
	model     string
	logger    *zap.Logger
}

var _ executor.Assessor = (*BatchAssessor)(nil)

func NewBatchAssessor(completer llm.Completer, model string, logger *zap.Logger) *BatchAssessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchAssessor{completer: completer, model: model, logger: logger.Named("assessor")}
}

type assessedItem struct {
	Relevant *bool    `json:"relevant"`
	Priority int      `json:"priority"`
	Reason   string   `json:"reason"`
	Score    *float64 `json:"score"`
}

// AssessRecords 模型不可用或回复无法解析时返回错误,已提取的记录由调用方保留
func (a *BatchAssessor) AssessRecords(ctx context.Context, records []entity.Record, prompt, task string) ([]strategy.Assessment, error) {
	if a.completer == nil {
		return nil, ErrNotConfigured
	}
	if len(records) == 0 {
		return []strategy.Assessment{}, nil
	}

	payload, err := BatchPrompt(records, prompt, task)
	if err != nil {
		return nil, err
	}
	raw, err := a.completer.Complete(ctx, llm.Request{
		System:      batchSystem,
		Prompt:      payload,
		Model:       a.model,
		Temperature: llm.Temperature(0.2),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("批量评估请求失败: %w", err)
	}

	items, err := parseBatch(raw)
	if err != nil {
		a.logger.Warn("批量评估回复无法解析", zap.Error(err), zap.Int("raw_len", len(raw)))
		return nil, err
	}
	if len(items) != len(records) {
		a.logger.Warn("评估结果数量与记录不一致",
			zap.Int("records", len(records)), zap.Int("results", len(items)))
	}

	out := make([]strategy.Assessment, 0, len(items))
	for _, item := range items {
		as := strategy.Assessment{
			Relevant: item.Relevant == nil || *item.Relevant,
			Priority: max(0, min(100, item.Priority)),
			Reason:   item.Reason,
		}
		if item.Score != nil {
			as.Score = *item.Score
		}
		out = append(out, as)
	}
	return out, nil
}

// BatchPrompt 在目标提示词之后附加任务与记录
func BatchPrompt(records []entity.Record, prompt, task string) (string, error) {
	type item struct {
		Index  int               `json:"index"`
		Fields map[string]string `json:"fields"`
		Emails []string          `json:"emails,omitempty"`
		Phones []string          `json:"phones,omitempty"`
	}
	items := make([]item, len(records))
	for i, r := range records {
		items[i] = item{Index: i, Fields: r.Fields, Emails: r.Emails, Phones: r.Phones}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\n**Task**: ")
	b.WriteString(task)
	b.WriteString("\n\n**Records**:\n")
	b.Write(data)
	b.WriteString("\n\nAssess every record in order. Return a JSON object {\"results\": [...]} with exactly one entry per record, ")
	b.WriteString("each having \"relevant\" (boolean), \"priority\" (0-100) and \"reason\" (string).")
	return b.String(), nil
}

// parseBatch 接受 {"results": [...]} 或直接返回的数组
func parseBatch(raw string) ([]assessedItem, error) {
	raw = strings.TrimSpace(raw)
	var items []assessedItem
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("解析评估结果失败: %w", err)
		}
		return items, nil
	}
	obj := jsonObject.FindString(raw)
	if obj == "" {
		return nil, fmt.Errorf("解析评估结果失败: no json object in response")
	}
	var wrapped struct {
		Results []assessedItem `json:"results"`
	}
	if err := json.Unmarshal([]byte(obj), &wrapped); err != nil {
		return nil, fmt.Errorf("解析评估结果失败: %w", err)
	}
	if wrapped.Results == nil {
		return nil, fmt.Errorf("解析评估结果失败: missing results")
	}
	return wrapped.Results, nil
}
