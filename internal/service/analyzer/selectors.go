package analyzer

// 各类数据的候选选择器,按优先级排列
var extractionSelectors = map[string][]string{
	"comments":         {".comments-comment-item", `[data-test-id="comment"]`, ".comment-item", `article[data-id*="comment"]`},
	"comment_author":   {".comments-post-meta__name-text", `[data-test-id="comment-author"]`, ".comment-author"},
	"comment_content":  {".comments-comment-item__main-content", `[data-test-id="comment-content"]`, ".comment-text"},
	"job_cards":        {".job-card-container", ".jobs-search-results__list-item", "[data-job-id]"},
	"applicant_button": {`button[aria-label*="applicant" i]`, `button[aria-label*="application" i]`, ".job-details-jobs-unified-top-card__applicants-button"},
	"profile_cards":    {".entity-result", ".reusable-search__result-container", `[data-test-id="search-result"]`},
	"profile_name":     {".entity-result__title-text", `[data-test-id="profile-name"]`, ".actor-name"},
	"profile_headline": {".entity-result__primary-subtitle", `[data-test-id="profile-headline"]`},
	"contact_section":  {"#top-card-text-details-contact-info", `[data-test-id="contact-info"]`, ".pv-contact-info"},
	"email_link":       {`a[href^="mailto:"]`, `[data-test-id="email"]`},
	"phone_link":       {`a[href^="tel:"]`, `[data-test-id="phone"]`},
}

// ExtractionSelectors 返回数据类型的候选选择器,未知类型返回空切片
func ExtractionSelectors(dataType string) []string {
	selectors, ok := extractionSelectors[dataType]
	if !ok {
		return []string{}
	}
	return append([]string(nil), selectors...)
}
