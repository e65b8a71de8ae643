package strategy

import (
	"slices"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
)

// Step 策略中的一个步骤,加入策略后不再修改
type Step struct {
	Name            string        `json:"name"`
	Kind            Kind          `json:"kind"`
	Description     string        `json:"description,omitempty"`
	Selectors       []string      `json:"selectors,omitempty"`
	WaitFor         string        `json:"waitFor,omitempty"`
	URL             string        `json:"url,omitempty"`
	Fields          []string      `json:"fields,omitempty"`
	ScrollCycles    int           `json:"scrollCycles,omitempty"`
	ScrollDelay     time.Duration `json:"scrollDelay,omitempty"`
	MaxAttempts     int           `json:"maxAttempts,omitempty"`
	RepeatUntilGone bool          `json:"repeatUntilGone,omitempty"`
	OpenInNewTab    bool          `json:"openInNewTab,omitempty"`
	Required        bool          `json:"required,omitempty"`
	WaitAfter       time.Duration `json:"waitAfter,omitempty"`
	Duration        time.Duration `json:"duration,omitempty"`
	Task            string        `json:"task,omitempty"`
}

// Selector 返回第一个候选选择器
func (s Step) Selector() string {
	if len(s.Selectors) == 0 {
		return ""
	}
	return s.Selectors[0]
}

// Goal 一个命名的提取目标
type Goal struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	CompatiblePages    []analysis.PageType `json:"compatiblePages"`
	Targets            []string            `json:"extractionTargets"`
	Actions            []string            `json:"actions"`
	CustomInstructions string              `json:"customInstructions,omitempty"`
	Active             bool                `json:"active"`
	ActivatedAt        time.Time           `json:"activatedAt,omitzero"`
}

// CompatibleWith 目标是否适用于该页面类型
func (g *Goal) CompatibleWith(pageType analysis.PageType) bool {
	return slices.Contains(g.CompatiblePages, pageType) || slices.Contains(g.CompatiblePages, analysis.All)
}

// Strategy 针对一个页面的执行计划
type Strategy struct {
	GoalID       string            `json:"goalId"`
	GoalName     string            `json:"goalName"`
	PageType     analysis.PageType `json:"pageType"`
	Steps        []Step            `json:"steps"`
	AIPrompt     string            `json:"aiPrompt"`
	Instructions string            `json:"instructions,omitempty"`
}

// UserGoal 交给模型生成策略时使用的目标描述
func (s *Strategy) UserGoal() string {
	if s.Instructions != "" {
		return s.Instructions
	}
	return s.GoalName
}
