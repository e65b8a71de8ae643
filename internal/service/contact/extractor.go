package contact

import (
	"regexp"
	"slices"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// 依次匹配: 美式号码 (123) 456-7890 / 国际格式 +12 345 678 90 / 连续 10-15 位数字
	phoneRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`\+?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
		regexp.MustCompile(`\b\d{10,15}\b`),
	}

	whitespace = regexp.MustCompile(`\s+`)
	nonDigit   = regexp.MustCompile(`\D`)
)

// 常见的占位邮箱,小写后包含即过滤
var emailDenylist = []string{
	"example.com",
	"test.com",
	"domain.com",
	"email.com",
	"yourcompany.com",
	"youremail.com",
	"company.com",
	"noreply@",
	"no-reply@",
}

// 常见的占位号码,按纯数字比较
var phoneDenylist = []string{
	"1234567890",
	"0000000000",
	"1111111111",
}

// Contacts 提取结果,按首次出现的顺序去重
type Contacts struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// Empty 是否没有任何联系方式
func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0
}

// Kind 联系方式类型
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// Extractor 从任意文本中提取并校验邮箱与电话,无状态,可并发使用
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractAll 同时提取邮箱与电话,空文本返回空切片
func (e *Extractor) ExtractAll(text string) Contacts {
	return Contacts{
		Emails: e.ExtractEmails(text),
		Phones: e.ExtractPhones(text),
	}
}

// ExtractEmails 提取邮箱
func (e *Extractor) ExtractEmails(text string) []string {
	result := []string{}
	if text == "" {
		return result
	}
	for _, email := range unique(emailRegex.FindAllString(text, -1)) {
		if e.Accept(KindEmail, email) {
			result = append(result, email)
		}
	}
	return result
}

// ExtractPhones 提取电话,保留原始格式,仅规整空白
func (e *Extractor) ExtractPhones(text string) []string {
	result := []string{}
	if text == "" {
		return result
	}
	var phones []string
	for _, re := range phoneRegexes {
		for _, m := range re.FindAllString(text, -1) {
			phones = append(phones, CleanPhone(m))
		}
	}
	for _, phone := range unique(phones) {
		if e.Accept(KindPhone, phone) {
			result = append(result, phone)
		}
	}
	return result
}

// Accept 对单个已解析的值做与文本提取相同的校验,链接中的 mailto:/tel: 也走这里
func (e *Extractor) Accept(kind Kind, value string) bool {
	switch kind {
	case KindEmail:
		return !isDenylistedEmail(value) && IsValidEmail(value)
	case KindPhone:
		return !slices.Contains(phoneDenylist, digitsOnly(value)) && IsValidPhone(value)
	default:
		return false
	}
}

// IsValidEmail 结构校验: 长度 6-254,恰好一个 @,本地部分 1-64,域名至少 4 个字符且包含点,顶级域至少 2 个字符
func IsValidEmail(email string) bool {
	if len(email) < 6 || len(email) > 254 {
		return false
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	if local == "" || len(local) > 64 {
		return false
	}
	if len(domain) < 4 || !strings.Contains(domain, ".") {
		return false
	}
	tld := domain[strings.LastIndex(domain, ".")+1:]
	return len(tld) >= 2
}

// IsValidPhone 数字位数在 10-15 之间,且不是同一个数字的重复
func IsValidPhone(phone string) bool {
	digits := digitsOnly(phone)
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	return strings.Count(digits, digits[:1]) != len(digits)
}

// CleanPhone 去除首尾空白,连续空白压缩为一个空格
func CleanPhone(phone string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(phone), " ")
}

func isDenylistedEmail(email string) bool {
	lower := strings.ToLower(email)
	for _, pattern := range emailDenylist {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
