package model

import (
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/google/uuid"
)

const LeadIndex = "linkedin_leads"

// LeadSource 线索来源
type LeadSource string

const (
	SourceKeyword     LeadSource = "keyword"
	SourceIntelligent LeadSource = "intelligent"
	SourceAIScrape    LeadSource = "ai_scrape"
)

// Lead 导出到表格的线索,同时也是 es 中的文档
type Lead struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	PostURL         string            `json:"postUrl"`
	AuthorName      string            `json:"authorName"`
	AuthorProfile   string            `json:"authorProfile,omitempty"`
	PostContent     string            `json:"postContent"`
	KeywordsMatched []string          `json:"keywordMatched"`
	Emails          []string          `json:"emails"`
	Phones          []string          `json:"phones"`
	Exported        bool              `json:"exported"`
	ExportedAt      *time.Time        `json:"exportedAt,omitempty"`
	Source          LeadSource        `json:"source"`
	GoalID          string            `json:"goalId,omitempty"`
	GoalName        string            `json:"goalName,omitempty"`
	PageType        string            `json:"pageType,omitempty"`
	AIRelevant      *bool             `json:"aiRelevant,omitempty"`
	AIPriority      *int              `json:"aiPriority,omitempty"`
	AIReason        string            `json:"aiReason,omitempty"`
	AIScore         *float64          `json:"aiScore,omitempty"`
	ExtractedFields map[string]string `json:"extractedFields,omitempty"`
	Embedding       []float32         `json:"embedding,omitempty"`
}

// LeadPatch 部分更新,nil 字段不修改
type LeadPatch struct {
	Exported   *bool      `json:"exported,omitempty"`
	ExportedAt *time.Time `json:"exportedAt,omitempty"`
}

// Apply 将 patch 合并到 lead 上
func (p LeadPatch) Apply(l *Lead) {
	if p.Exported != nil {
		l.Exported = *p.Exported
	}
	if p.ExportedAt != nil {
		at := *p.ExportedAt
		l.ExportedAt = &at
	}
}

// StableLeadID 由稳定的来源信息生成确定性的 id,重复扫描同一来源不会产生新的线索
func StableLeadID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "\x1f"))).String()
}

func (l *Lead) GetID() string {
	return l.ID
}

func (l *Lead) GetIndex() string {
	return LeadIndex
}

// TypeMapping dims 不大于 0 时使用 DefaultDims
func (l *Lead) TypeMapping(dims int) *types.TypeMapping {
	if dims <= 0 {
		dims = DefaultDims
	}
	return LeadMapping(dims)
}

// LeadMapping 线索索引的 mapping,dims 为向量维度
func LeadMapping(dims int) *types.TypeMapping {
	embedding := types.NewDenseVectorProperty()
	embedding.Dims = &dims
	index := true
	embedding.Index = &index

	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":             types.NewKeywordProperty(),
			"timestamp":      types.NewDateProperty(),
			"postUrl":        types.NewKeywordProperty(),
			"authorName":     types.NewTextProperty(),
			"authorProfile":  types.NewKeywordProperty(),
			"postContent":    types.NewTextProperty(),
			"keywordMatched": types.NewKeywordProperty(),
			"emails":         types.NewKeywordProperty(),
			"phones":         types.NewKeywordProperty(),
			"exported":       types.NewBooleanProperty(),
			"exportedAt":     types.NewDateProperty(),
			"source":         types.NewKeywordProperty(),
			"goalId":         types.NewKeywordProperty(),
			"goalName":       types.NewKeywordProperty(),
			"pageType":       types.NewKeywordProperty(),
			"aiReason":       types.NewTextProperty(),
			"embedding":      embedding,
		},
	}
}

// GetEmbeddingString 用于生成向量的文本
func (l *Lead) GetEmbeddingString() string {
	var b strings.Builder
	b.WriteString(l.AuthorName)
	b.WriteString("\n")
	b.WriteString(l.PostContent)
	if len(l.KeywordsMatched) > 0 {
		b.WriteString("\nkeywords: ")
		b.WriteString(strings.Join(l.KeywordsMatched, ", "))
	}
	if l.GoalName != "" {
		b.WriteString("\ngoal: ")
		b.WriteString(l.GoalName)
	}
	return b.String()
}

func (l *Lead) SetEmbedding(embedding []float32) {
	l.Embedding = embedding
}

// HasContacts 是否提取到了联系方式
func (l *Lead) HasContacts() bool {
	return len(l.Emails) > 0 || len(l.Phones) > 0
}
