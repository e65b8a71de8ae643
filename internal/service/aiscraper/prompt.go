package aiscraper

import (
	"fmt"
	"strings"
)

// 模板中用 ''' 代替代码块围栏
var strategyPromptTemplate = strings.ReplaceAll(`You are a web scraping expert. Analyze this LinkedIn page and generate an extraction strategy.

**User's Goal:**
%s

**Page URL:**
%s

**Page Title:**
%s

**Visible Content Preview:**
%s

**HTML Structure:**
'''html
%s
'''

**Your Task:**
Analyze the HTML and determine:
1. What type of LinkedIn page this is (job listing, feed, profile, search results, etc.)
2. What data can be extracted to fulfill the user's goal
3. Specific CSS selectors or XPath to target those elements
4. Step-by-step extraction instructions

**Return your response as a JSON object with this exact structure:**
'''json
{
  "pageType": "job_listing | feed | profile | search_results | post | company | other",
  "confidence": 0.95,
  "dataAvailable": [
    {
      "field": "email",
      "selector": ".contact-info email",
      "extractionMethod": "textContent | attribute | innerHTML",
      "attributeName": "href",
      "found": true,
      "estimatedCount": 5
    }
  ],
  "extractionSteps": [
    {
      "step": 1,
      "action": "click | scroll | wait | extract",
      "description": "Click 'See more' button to expand content",
      "selector": ".see-more-button",
      "required": false,
      "waitAfterMs": 1000
    }
  ],
  "recommendations": "Additional suggestions or warnings",
  "limitations": "What cannot be extracted or requires user action"
}
'''

**Important:**
- Be precise with CSS selectors (inspect the actual HTML provided)
- Consider dynamic content loading
- Handle multiple items (lists, search results)
- Account for LinkedIn's anti-scraping measures
- Suggest scroll/click actions if content is hidden
- Be realistic about what can be extracted

Return ONLY valid JSON, no other text.`, "'''", "```")

// BuildPrompt 渲染策略生成提示词
func BuildPrompt(userGoal string, pc *PageContext) string {
	return fmt.Sprintf(strategyPromptTemplate, userGoal, pc.URL, pc.Title, pc.VisibleText, pc.HTML)
}
