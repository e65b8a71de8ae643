package sheets

import (
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
)

const (
	HeaderRange      = "A1:H1"
	MaxContentLength = 500
	StatusNew        = "New"
)

// Headers 表头,与 LeadRow 的列顺序一致
var Headers = []string{
	"Timestamp",
	"Post URL",
	"Author",
	"Keywords Matched",
	"Post Content",
	"Emails",
	"Phone Numbers",
	"Status",
}

// LeadRow 线索转为一行,正文截断到 500 个字符
func LeadRow(l *model.Lead) []string {
	return []string{
		l.Timestamp.UTC().Format(time.RFC3339Nano),
		l.PostURL,
		l.AuthorName,
		strings.Join(l.KeywordsMatched, ", "),
		truncate(l.PostContent, MaxContentLength),
		strings.Join(l.Emails, ", "),
		strings.Join(l.Phones, ", "),
		StatusNew,
	}
}

func LeadRows(leads []*model.Lead) [][]string {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, LeadRow(l))
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
