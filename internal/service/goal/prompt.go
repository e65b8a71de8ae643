package goal

import (
	"fmt"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
)

const aiPromptTemplate = `You are an intelligent data extraction assistant. Your task is to help extract relevant information from LinkedIn pages.

**Current Goal**: %s
**Goal Description**: %s
**Page Type**: %s
**Target Data**: %s

**Custom Instructions**: %s

Analyze the provided content and determine:
1. Is this content relevant to the goal?
2. What specific data should be extracted?
3. What is the quality/priority of this lead (0-100)?

Return a JSON response with:
{
  "relevant": boolean,
  "reason": "explanation",
  "priority": number (0-100),
  "extractionTargets": ["field1", "field2"],
  "suggestedFields": {
    "field_name": "extracted_value"
  }
}`

// AIPrompt 渲染相关性评估使用的提示词
func AIPrompt(goal strategy.Goal, a *analysis.PageAnalysis) string {
	instructions := goal.CustomInstructions
	if instructions == "" {
		instructions = "None"
	}
	pageType := analysis.Unknown
	if a != nil {
		pageType = a.PageType
	}
	return fmt.Sprintf(aiPromptTemplate,
		goal.Name,
		goal.Description,
		pageType,
		strings.Join(goal.Targets, ", "),
		instructions,
	)
}
