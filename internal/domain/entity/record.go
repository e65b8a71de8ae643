package entity

import (
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
)

// Record 策略执行过程中提取到的一条原始记录
// Fields 保存按字段名提取的文本,Emails/Phones 为校验后的联系方式
type Record struct {
	ID         string            `json:"id,omitempty"`
	Index      int               `json:"_index"`
	Timestamp  time.Time         `json:"_timestamp"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
	Fields     map[string]string `json:"fields"`
	Emails     []string          `json:"emails,omitempty"`
	Phones     []string          `json:"phones,omitempty"`
	AIRelevant *bool             `json:"_aiRelevant,omitempty"`
	AIPriority *int              `json:"_aiPriority,omitempty"`
	AIReason   string            `json:"_aiReason,omitempty"`
}

func NewRecord(index int, now time.Time) Record {
	return Record{Index: index, Timestamp: now, Fields: make(map[string]string)}
}

// Get 返回字段值,不存在时返回空串
func (r *Record) Get(field string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[field]
}

func (r *Record) Set(field, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[field] = value
}

// Provenance 记录转换为线索时附带的来源信息
type Provenance struct {
	Source    model.LeadSource
	GoalID    string
	GoalName  string
	PageType  string
	SourceURL string
	Now       time.Time
}

// ToDocument 将策略提取的记录映射为线索
// 线索 id 由目标、来源地址、作者与正文确定,重复提取同一条记录得到相同的 id
func (r *Record) ToDocument(prov Provenance) *model.Lead {
	profile := firstNonEmpty(r.Get("profile_url"), r.Get("author_profile"))
	postURL := firstNonEmpty(profile, prov.SourceURL)
	author := firstNonEmpty(r.Get("name"), r.Get("author_name"), r.Get("author"), "Unknown")
	content := firstNonEmpty(r.Get("comment_text"), r.Get("headline"), r.Get("content"))

	extracted := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		if v != "" {
			extracted[k] = v
		}
	}

	ts := prov.Now
	if ts.IsZero() {
		ts = r.Timestamp
	}
	return &model.Lead{
		ID:              model.StableLeadID(prov.GoalID, prov.SourceURL, profile, author, content),
		Timestamp:       ts,
		PostURL:         postURL,
		AuthorName:      author,
		AuthorProfile:   profile,
		PostContent:     content,
		KeywordsMatched: []string{"intelligent_extraction"},
		Emails:          nonNil(r.Emails),
		Phones:          nonNil(r.Phones),
		Source:          prov.Source,
		GoalID:          prov.GoalID,
		GoalName:        prov.GoalName,
		PageType:        prov.PageType,
		AIRelevant:      r.AIRelevant,
		AIPriority:      r.AIPriority,
		AIReason:        r.AIReason,
		ExtractedFields: extracted,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
