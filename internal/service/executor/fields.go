package executor

import (
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/contact"
)

// FieldSelector 字段的一个候选选择器,Attr 非空时读取属性而不是文本
type FieldSelector struct {
	Selector string
	Attr     string
}

func text(selector string) FieldSelector { return FieldSelector{Selector: selector} }
func href(selector string) FieldSelector { return FieldSelector{Selector: selector, Attr: "href"} }

// 字段名到候选选择器的映射,按顺序取第一个非空值
var fieldTable = map[string][]FieldSelector{
	"name":           {text(".entity-result__title-text"), text(`[data-test-id="profile-name"]`), text(".actor-name"), text("h2"), text("h3")},
	"headline":       {text(".entity-result__primary-subtitle"), text(`[data-test-id="profile-headline"]`), text(".actor-headline")},
	"title":          {text(".entity-result__primary-subtitle"), text(`[data-test-id="profile-headline"]`), text(".actor-headline")},
	"profile_url":    {href(`a[href*="/in/"]`), href(`a[href*="/company/"]`)},
	"location":       {text(".entity-result__secondary-subtitle"), text(`[data-test-id="location"]`), text(".actor-location")},
	"author_name":    {text(".comments-post-meta__name-text"), text(".actor-name")},
	"author_profile": {href(`a[href*="/in/"]`)},
	"comment_text":   {text(".comments-comment-item__main-content"), text(".comment-text")},
	"timestamp":      {text(".comments-comment-item__timestamp"), text("time")},
	"email":          {href(`a[href^="mailto:"]`), text(`[data-test-id="email"]`)},
	"phone":          {href(`a[href^="tel:"]`), text(`[data-test-id="phone"]`)},
	"company_name":   {text(".org-top-card-summary__title"), text(`[data-test-id="company-name"]`)},
	"website":        {href(`a[data-test-id="website"]`), href(`a[href*="http"]`)},
	"job_title":      {text(".jobs-unified-top-card__job-title"), text(`[data-test-id="job-title"]`)},
	"resume_url":     {href(`a[href*="resume"]`), href("a[download]")},
}

// FieldSelectors 返回字段的候选选择器,未知字段返回空切片
func FieldSelectors(field string) []FieldSelector {
	return append([]FieldSelector{}, fieldTable[field]...)
}

// FieldExtractor 按字段表从元素中取值,取不到邮箱/电话时退回到全文提取
type FieldExtractor struct {
	contacts *contact.Extractor
}

func NewFieldExtractor(contacts *contact.Extractor) *FieldExtractor {
	if contacts == nil {
		contacts = contact.NewExtractor()
	}
	return &FieldExtractor{contacts: contacts}
}

func (f *FieldExtractor) Extract(el types.Element, field string) string {
	for _, candidate := range fieldTable[field] {
		for _, found := range el.QueryAll(candidate.Selector) {
			var value string
			if candidate.Attr != "" {
				value, _ = found.Attr(candidate.Attr)
			} else {
				value = found.InnerText()
			}
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}

	switch field {
	case "email":
		if emails := f.contacts.ExtractEmails(el.InnerText()); len(emails) > 0 {
			return emails[0]
		}
	case "phone":
		if phones := f.contacts.ExtractPhones(el.InnerText()); len(phones) > 0 {
			return phones[0]
		}
	}
	return ""
}
