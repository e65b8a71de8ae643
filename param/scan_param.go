package param

import (
	"net/url"
	"time"
)

// Scan 扫描命令的参数,Duration 为 0 时一直运行到被中断
type Scan struct {
	URL      string        `json:"url"`
	Duration time.Duration `json:"duration"`
}

func (s *Scan) IsValid() bool {
	return validURL(s.URL) && s.Duration >= 0
}

// Extract 智能提取的参数,GoalID 为空时使用推荐目标
type Extract struct {
	URL          string `json:"url"`
	GoalID       string `json:"goal_id"`
	Instructions string `json:"instructions"`
	Execute      bool   `json:"execute"`
}

func (e *Extract) IsValid() bool {
	return validURL(e.URL)
}

// AIExtract 由模型生成提取策略的参数
type AIExtract struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
}

func (a *AIExtract) IsValid() bool {
	return validURL(a.URL) && a.Goal != ""
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
