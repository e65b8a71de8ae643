package entity

import (
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
)

// Post 从信息流中解析出的一条帖子
type Post struct {
	ID            string
	URL           string
	AuthorName    string
	AuthorProfile string
	Content       string
	Keywords      []string
	Emails        []string
	Phones        []string
	Timestamp     time.Time
}

// ToDocument 关键词命中的帖子转换为线索,id 直接使用帖子 id
func (p *Post) ToDocument(prov Provenance) *model.Lead {
	ts := prov.Now
	if ts.IsZero() {
		ts = p.Timestamp
	}
	return &model.Lead{
		ID:              p.ID,
		Timestamp:       ts,
		PostURL:         p.URL,
		AuthorName:      p.AuthorName,
		AuthorProfile:   p.AuthorProfile,
		PostContent:     p.Content,
		KeywordsMatched: nonNil(p.Keywords),
		Emails:          nonNil(p.Emails),
		Phones:          nonNil(p.Phones),
		Source:          model.SourceKeyword,
		PageType:        prov.PageType,
	}
}
