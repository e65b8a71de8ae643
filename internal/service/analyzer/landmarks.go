package analyzer

import "github.com/LouYuanbo1/leadagent/internal/domain/analysis"

// landmark 一种页面区域的检测规则
// counted 为 true 时报告匹配元素的数量
type landmark struct {
	kind        string
	selector    string
	counted     bool
	extractable []string
}

var landmarks = map[analysis.PageType][]landmark{
	analysis.JobListing: {
		{kind: "applicant_count", selector: ".jobs-unified-top-card__applicant-count", extractable: []string{"applicant_count", "applicant_list"}},
		{kind: "applicant_access", selector: `button[aria-label*="applicant" i], button[aria-label*="application" i]`, extractable: []string{"applicant_profiles", "resumes"}},
		{kind: "job_metadata", selector: ".jobs-unified-top-card__job-title, .jobs-unified-top-card__company-name", extractable: []string{"job_title", "company_name", "location", "job_description"}},
	},
	analysis.JobSearch: {
		{kind: "job_listings", selector: ".job-card-container, .jobs-search-results__list-item", counted: true, extractable: []string{"job_list", "bulk_job_data"}},
	},
	analysis.Feed: {
		{kind: "posts", selector: `[data-id^="urn:li:activity"], .feed-shared-update-v2`, counted: true, extractable: []string{"post_content", "post_authors", "post_engagement", "comments"}},
	},
	analysis.PostDetail: {
		{kind: "post_content", selector: `.feed-shared-update-v2__description, [data-test-id="main-feed-activity-card__commentary"]`, extractable: []string{"author", "content", "engagement"}},
		{kind: "comments", selector: `.comments-comment-item, [data-test-id="comment"]`, counted: true, extractable: []string{"comment_authors", "comment_content", "comment_contacts"}},
		{kind: "expandable_comments", selector: `button[aria-label*="more comment" i]`, extractable: []string{"all_comments"}},
	},
	analysis.Profile: {
		{kind: "contact_info", selector: `#top-card-text-details-contact-info, [data-test-id="top-card-text-details-contact-info"]`, extractable: []string{"email", "phone", "website", "social_links"}},
		{kind: "about", selector: `.pv-about-section, [data-test-id="about-section"]`, extractable: []string{"bio", "contact_info_from_bio"}},
		{kind: "experience", selector: `.experience-section, [data-test-id="experience-section"]`, extractable: []string{"work_history", "companies"}},
	},
	analysis.SearchResults: {
		{kind: "search_results", selector: `.search-results__list li, [data-test-id="search-result"]`, counted: true, extractable: []string{"result_posts", "result_authors", "result_content"}},
	},
	analysis.PeopleSearch: {
		{kind: "people_results", selector: ".entity-result, .reusable-search__result-container", counted: true, extractable: []string{"profiles", "names", "titles", "companies", "locations"}},
	},
	analysis.CompanyPage: {
		{kind: "company_info", selector: `.org-top-card, [data-test-id="org-top-card"]`, extractable: []string{"company_name", "website", "industry", "size", "location"}},
		{kind: "employees", selector: `.org-people-bar, [data-test-id="org-people-bar"]`, extractable: []string{"employee_list", "employee_count"}},
		{kind: "company_posts", selector: `[data-id^="urn:li:activity"]`, counted: true, extractable: []string{"post_content", "engagement"}},
	},
}

// 每种页面推荐的策略名称
var recommendedStrategies = map[analysis.PageType]string{
	analysis.JobListing:    "job_applicant_extraction",
	analysis.JobSearch:     "job_listing_extraction",
	analysis.Feed:          "post_based_lead_generation",
	analysis.PostDetail:    "comment_contact_extraction",
	analysis.Profile:       "profile_contact_extraction",
	analysis.SearchResults: "content_based_extraction",
	analysis.PeopleSearch:  "people_list_extraction",
	analysis.CompanyPage:   "company_contact_extraction",
}

// RecommendedStrategy 返回页面类型对应的推荐策略名称,没有时返回空串
func RecommendedStrategy(pageType analysis.PageType) string {
	return recommendedStrategies[pageType]
}
