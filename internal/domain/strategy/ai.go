package strategy

// ExtractionMethod 字段取值方式
type ExtractionMethod string

const (
	MethodText      ExtractionMethod = "textContent"
	MethodAttribute ExtractionMethod = "attribute"
	MethodInnerHTML ExtractionMethod = "innerHTML"
)

// DataField 模型给出的可提取字段
type DataField struct {
	Field            string           `json:"field"`
	Selector         string           `json:"selector"`
	ExtractionMethod ExtractionMethod `json:"extractionMethod"`
	AttributeName    string           `json:"attributeName,omitempty"`
	Found            bool             `json:"found"`
	EstimatedCount   int              `json:"estimatedCount"`
}

// ExtractionStep 模型给出的准备步骤,Action 为 click/scroll/wait/extract
type ExtractionStep struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Required    bool   `json:"required"`
	WaitAfterMs int    `json:"waitAfterMs,omitempty"`
}

// AIStrategy 由语言模型根据页面 html 生成的提取策略
type AIStrategy struct {
	PageType        string           `json:"pageType"`
	Confidence      float64          `json:"confidence"`
	DataAvailable   []DataField      `json:"dataAvailable"`
	ExtractionSteps []ExtractionStep `json:"extractionSteps"`
	Recommendations string           `json:"recommendations,omitempty"`
	Limitations     string           `json:"limitations,omitempty"`
}
