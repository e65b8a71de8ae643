package param

import "strings"

// Hunt 并行搜索的参数
type Hunt struct {
	Keywords []string `json:"keywords"`
	PoolSize int      `json:"pool_size"`
}

func (h *Hunt) IsValid() bool {
	if h.PoolSize < 0 || len(h.Keywords) == 0 {
		return false
	}
	for _, k := range h.Keywords {
		if strings.TrimSpace(k) == "" {
			return false
		}
	}
	return true
}
