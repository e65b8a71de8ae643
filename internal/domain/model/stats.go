package model

import "time"

// Stats 扫描与导出的累计统计,保存在配置存储的 stats 键下
type Stats struct {
	TotalLeads    int        `json:"totalLeads"`
	EmailsFound   int        `json:"emailsFound"`
	PhonesFound   int        `json:"phonesFound"`
	ExportedCount int        `json:"exportedCount"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
}
