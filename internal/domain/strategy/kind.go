package strategy

import "fmt"

// Kind 步骤类型,执行器对其做穷举分派
type Kind int

const (
	KindUnknown Kind = iota
	KindDetectCount
	KindClick
	KindExpand
	KindScroll
	KindScrollTo
	KindLoadAll
	KindWait
	KindExtractList
	KindExtractComments
	KindExtractPage
	KindExtractContacts
	KindExtractContactSection
	KindDownload
	KindNavigate
	KindAssessAI
	KindMatchKeywords
	KindExtractMatched
	KindAIPlan
	KindAIExecute
)

var kindNames = [...]string{
	KindUnknown:               "unknown",
	KindDetectCount:           "detect_count",
	KindClick:                 "click",
	KindExpand:                "expand",
	KindScroll:                "scroll",
	KindScrollTo:              "scroll_to",
	KindLoadAll:               "load_all",
	KindWait:                  "wait",
	KindExtractList:           "extract_list",
	KindExtractComments:       "extract_comments",
	KindExtractPage:           "extract_page",
	KindExtractContacts:       "extract_contacts",
	KindExtractContactSection: "extract_contact_section",
	KindDownload:              "download",
	KindNavigate:              "navigate",
	KindAssessAI:              "assess_ai",
	KindMatchKeywords:         "match_keywords",
	KindExtractMatched:        "extract_matched",
	KindAIPlan:                "ai_plan",
	KindAIExecute:             "ai_execute",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k > KindUnknown && int(k) < len(kindNames)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid step kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind 按名称解析步骤类型
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name && Kind(i) != KindUnknown {
			return Kind(i), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown step kind %q", name)
}
