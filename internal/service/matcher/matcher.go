package matcher

import (
	"regexp"
	"strings"
	"sync"
)

// Options 匹配选项
type Options struct {
	CaseSensitive bool `json:"caseSensitive"`
	WholeWord     bool `json:"wholeWord"`
}

// Result 匹配结果,Keywords 按配置顺序排列
type Result struct {
	Matched  bool     `json:"matched"`
	Keywords []string `json:"keywords"`
}

// Match 一次命中的位置信息,Position 为字节偏移
type Match struct {
	Keyword  string `json:"keyword"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
	Matched  string `json:"matched"`
}

// Matcher 关键词匹配器,可以在使用过程中原地修改关键词与选项
type Matcher struct {
	mu       sync.RWMutex
	keywords []string
	options  Options
	patterns map[string]*regexp.Regexp
}

func New(keywords []string, options Options) *Matcher {
	m := &Matcher{}
	m.SetKeywords(keywords)
	m.SetOptions(options)
	return m
}

func (m *Matcher) SetKeywords(keywords []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keywords = append([]string(nil), keywords...)
	m.patterns = nil
}

func (m *Matcher) SetOptions(options Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = options
	m.patterns = nil
}

func (m *Matcher) Keywords() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.keywords...)
}

func (m *Matcher) Options() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.options
}

// Match 返回文本中出现的所有关键词
func (m *Matcher) Match(text string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text == "" || len(m.keywords) == 0 {
		return Result{Matched: false, Keywords: []string{}}
	}

	haystack := m.fold(text)
	matched := []string{}
	for _, keyword := range m.keywords {
		if keyword == "" {
			continue
		}
		if m.options.WholeWord {
			if m.pattern(keyword).MatchString(haystack) {
				matched = append(matched, keyword)
			}
			continue
		}
		if strings.Contains(haystack, m.fold(keyword)) {
			matched = append(matched, keyword)
		}
	}
	return Result{Matched: len(matched) > 0, Keywords: matched}
}

// FindAllMatches 返回每个关键词的所有命中位置
func (m *Matcher) FindAllMatches(text string) []Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := []Match{}
	if text == "" || len(m.keywords) == 0 {
		return matches
	}

	haystack := m.fold(text)
	for _, keyword := range m.keywords {
		if keyword == "" {
			continue
		}
		needle := m.fold(keyword)
		if m.options.WholeWord {
			for _, loc := range m.pattern(keyword).FindAllStringIndex(haystack, -1) {
				matches = append(matches, m.newMatch(text, keyword, loc[0], loc[1]-loc[0]))
			}
			continue
		}
		for index := 0; index < len(haystack); {
			pos := strings.Index(haystack[index:], needle)
			if pos < 0 {
				break
			}
			pos += index
			matches = append(matches, m.newMatch(text, keyword, pos, len(needle)))
			index = pos + len(needle)
		}
	}
	return matches
}

func (m *Matcher) newMatch(text, keyword string, pos, length int) Match {
	matched := ""
	if pos+length <= len(text) {
		matched = text[pos : pos+length]
	}
	return Match{Keyword: keyword, Position: pos, Length: length, Matched: matched}
}

func (m *Matcher) fold(s string) string {
	if m.options.CaseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// pattern 返回关键词的整词匹配正则,调用方持有写锁
func (m *Matcher) pattern(keyword string) *regexp.Regexp {
	if m.patterns == nil {
		m.patterns = make(map[string]*regexp.Regexp, len(m.keywords))
	}
	if re, ok := m.patterns[keyword]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(m.fold(keyword)) + `\b`)
	m.patterns[keyword] = re
	return re
}
