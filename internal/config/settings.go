package config

import (
	"encoding/json"
	"time"
)

// ScanMode 扫描模式
type ScanMode string

const (
	ScanModeAuto   ScanMode = "auto"
	ScanModeManual ScanMode = "manual"
)

// Settings 运行期可修改的设置,保存在配置存储的 settings 键下
// 字段名与存储中的 json 结构保持一致
type Settings struct {
	CaseSensitive       bool     `json:"caseSensitive"`
	WholeWord           bool     `json:"wholeWord"`
	AutoSync            bool     `json:"autoSync"`
	ScanMode            ScanMode `json:"scanMode"`
	EnableNotifications bool     `json:"enableNotifications"`
	HighlightPosts      bool     `json:"highlightPosts"`
	ScanComments        bool     `json:"scanComments"`
	ScanIntervalMs      int      `json:"scanIntervalMs"`
	AutoSearchEnabled   bool     `json:"autoSearchEnabled"`
	AutoSearchDelay     int      `json:"autoSearchDelay"`
	AutoScrollEnabled   bool     `json:"autoScrollEnabled"`
	AutoScrollCycles    int      `json:"autoScrollCycles"`
	AutoScrollDelay     int      `json:"autoScrollDelay"`
	AIRelevanceEnabled  bool     `json:"aiRelevanceEnabled"`
	CompanyProfile      string   `json:"companyProfile"`
	OpenRouterModel     string   `json:"openRouterModel"`
	IntelligentMode     bool     `json:"intelligentMode"`
	CurrentGoalID       string   `json:"currentGoalId"`
	AutopilotEnabled    bool     `json:"autopilotEnabled"`
}

// DefaultSettings 返回默认设置
func DefaultSettings() Settings {
	return Settings{
		CaseSensitive:       false,
		WholeWord:           false,
		AutoSync:            true,
		ScanMode:            ScanModeAuto,
		EnableNotifications: true,
		HighlightPosts:      true,
		ScanComments:        false,
		ScanIntervalMs:      15000,
		AutoSearchEnabled:   false,
		AutoSearchDelay:     20000,
		AutoScrollEnabled:   true,
		AutoScrollCycles:    6,
		AutoScrollDelay:     1500,
		AIRelevanceEnabled:  false,
		CompanyProfile:      "",
		OpenRouterModel:     "openrouter/openai/gpt-4o-mini",
		IntelligentMode:     false,
		CurrentGoalID:       "",
		AutopilotEnabled:    false,
	}
}

// MergeSettings 将存储中的设置覆盖到默认值之上,缺失的字段保留默认值
func MergeSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

func (s Settings) ScanInterval() time.Duration {
	if s.ScanIntervalMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.ScanIntervalMs) * time.Millisecond
}

func (s Settings) AutoSearchInterval() time.Duration {
	return time.Duration(max(0, s.AutoSearchDelay)) * time.Millisecond
}

func (s Settings) AutoScrollInterval() time.Duration {
	return time.Duration(max(0, s.AutoScrollDelay)) * time.Millisecond
}
