package goal

import (
	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
)

const (
	JobApplicants   = "job_applicants"
	CommentMining   = "comment_mining"
	PostEngagement  = "post_engagement"
	PeopleDiscovery = "people_discovery"
	CompanyIntel    = "company_intel"
	KeywordHunting  = "keyword_hunting"
	Custom          = "custom"
)

// catalog 内置目标,声明顺序即推荐顺序
func catalog() []strategy.Goal {
	return []strategy.Goal{
		{
			ID:              JobApplicants,
			Name:            "Extract Job Applicants & Resumes",
			Description:     "Download applicant profiles and resumes from job listings",
			CompatiblePages: []analysis.PageType{analysis.JobListing},
			Targets:         []string{"applicant_profiles", "resumes", "contact_info"},
			Actions:         []string{"navigate_to_applicants", "download_resumes", "extract_contacts"},
		},
		{
			ID:              CommentMining,
			Name:            "Mine Comments for Contacts",
			Description:     "Extract emails and contacts from post comments",
			CompatiblePages: []analysis.PageType{analysis.PostDetail, analysis.Feed, analysis.SearchResults},
			Targets:         []string{"comment_authors", "emails", "phones", "profiles"},
			Actions:         []string{"expand_comments", "extract_comment_contacts", "save_profiles"},
		},
		{
			ID:              PostEngagement,
			Name:            "Target Audience from Posts",
			Description:     "Find people engaging with relevant posts",
			CompatiblePages: []analysis.PageType{analysis.Feed, analysis.SearchResults, analysis.PostDetail},
			Targets:         []string{"likers", "commenters", "sharers", "profiles"},
			Actions:         []string{"identify_engagers", "extract_profiles", "assess_relevance"},
		},
		{
			ID:              PeopleDiscovery,
			Name:            "Discover People by Criteria",
			Description:     "Find and extract profiles matching your criteria",
			CompatiblePages: []analysis.PageType{analysis.PeopleSearch, analysis.CompanyPage},
			Targets:         []string{"profiles", "contact_info", "job_titles", "companies"},
			Actions:         []string{"scan_profiles", "extract_details", "filter_by_criteria"},
		},
		{
			ID:              CompanyIntel,
			Name:            "Company Intelligence Gathering",
			Description:     "Extract company employees and decision makers",
			CompatiblePages: []analysis.PageType{analysis.CompanyPage, analysis.PeopleSearch},
			Targets:         []string{"employees", "executives", "contact_info"},
			Actions:         []string{"find_employees", "identify_decision_makers", "extract_contacts"},
		},
		{
			ID:              KeywordHunting,
			Name:            "Keyword-Based Lead Generation",
			Description:     "Find leads based on keywords in posts/profiles",
			CompatiblePages: []analysis.PageType{analysis.Feed, analysis.SearchResults, analysis.Profile},
			Targets:         []string{"posts", "profiles", "contact_info"},
			Actions:         []string{"search_keywords", "match_content", "extract_leads"},
		},
		{
			ID:              Custom,
			Name:            "Custom Goal",
			Description:     "Define your own extraction goal",
			CompatiblePages: []analysis.PageType{analysis.All},
			Targets:         []string{},
			Actions:         []string{},
		},
	}
}
