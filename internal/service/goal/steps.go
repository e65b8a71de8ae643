package goal

import (
	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
)

// generator 根据页面分析生成步骤序列,必须是纯函数
type generator func(a *analysis.PageAnalysis) []strategy.Step

var generators = map[string]generator{
	JobApplicants:   jobApplicantSteps,
	CommentMining:   commentMiningSteps,
	PostEngagement:  postEngagementSteps,
	PeopleDiscovery: peopleDiscoverySteps,
	CompanyIntel:    companyIntelSteps,
	KeywordHunting:  keywordHuntingSteps,
	Custom:          customSteps,
}

func jobApplicantSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "detect_applicant_count",
			Kind:        strategy.KindDetectCount,
			Description: "Check number of applicants",
			Selectors:   []string{".jobs-unified-top-card__applicant-count"},
		},
		{
			Name:        "click_view_applicants",
			Kind:        strategy.KindClick,
			Description: "Click to view applicants",
			Selectors:   []string{`button[aria-label*="applicant" i]`},
			WaitFor:     ".job-details-applicant-list",
		},
		{
			Name:         "scroll_applicant_list",
			Kind:         strategy.KindScroll,
			Description:  "Scroll through applicant list",
			ScrollCycles: 10,
		},
		{
			Name:        "extract_applicant_data",
			Kind:        strategy.KindExtractList,
			Description: "Extract applicant profiles",
			Fields:      []string{"name", "headline", "profile_url", "resume_url", "application_date"},
		},
		{
			Name:        "download_resumes",
			Kind:        strategy.KindDownload,
			Description: "Download available resumes",
			Selectors:   []string{`a[href*="resume"], a[download]`},
		},
	}
}

func commentMiningSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "expand_post_content",
			Kind:        strategy.KindExpand,
			Description: "Expand post to full content",
			Selectors:   []string{"button.feed-shared-inline-show-more-text__see-more-less-toggle"},
		},
		{
			Name:        "scroll_to_comments",
			Kind:        strategy.KindScrollTo,
			Description: "Scroll to comments section",
			Selectors:   []string{".comments-comments-list"},
		},
		{
			Name:            "load_all_comments",
			Kind:            strategy.KindLoadAll,
			Description:     "Click to load all comments",
			Selectors:       []string{`button[aria-label*="more comment" i]`},
			RepeatUntilGone: true,
		},
		{
			Name:        "extract_comments",
			Kind:        strategy.KindExtractComments,
			Description: "Extract comment data",
			Selectors:   []string{".comments-comment-item"},
			Fields:      []string{"author_name", "author_profile", "comment_text", "timestamp"},
		},
		{
			Name:        "extract_contacts_from_comments",
			Kind:        strategy.KindExtractContacts,
			Description: "Find emails and phones in comments",
		},
		{
			Name:        "analyze_comment_relevance",
			Kind:        strategy.KindAssessAI,
			Description: "Use AI to assess comment relevance",
			Task:        "relevance_assessment",
		},
	}
}

func postEngagementSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "identify_post",
			Kind:        strategy.KindDetectCount,
			Description: "Identify target post",
			Selectors:   []string{`[data-id^="urn:li:activity"]`},
		},
		{
			Name:        "click_reactions",
			Kind:        strategy.KindClick,
			Description: "View people who reacted",
			Selectors:   []string{`button[aria-label*="reaction" i], button.reactions-react-button`},
		},
		{
			Name:        "extract_reactors",
			Kind:        strategy.KindExtractList,
			Description: "Extract profiles of people who reacted",
			Fields:      []string{"name", "headline", "profile_url"},
		},
		{
			Name:        "extract_commenters",
			Kind:        strategy.KindExtractList,
			Description: "Extract commenter profiles",
			Selectors:   []string{".comments-comment-item"},
			Fields:      []string{"author_name", "author_profile", "comment_text"},
		},
		{
			Name:        "assess_engagement_quality",
			Kind:        strategy.KindAssessAI,
			Description: "Use AI to rate lead quality based on engagement",
			Task:        "relevance_assessment",
		},
	}
}

func peopleDiscoverySteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:         "scroll_results",
			Kind:         strategy.KindScroll,
			Description:  "Scroll through search results",
			ScrollCycles: 10,
		},
		{
			Name:        "extract_profile_cards",
			Kind:        strategy.KindExtractList,
			Description: "Extract profile card data",
			Selectors:   []string{".entity-result, .reusable-search__result-container"},
			Fields:      []string{"name", "headline", "location", "profile_url", "mutual_connections"},
		},
		{
			Name:         "click_profiles",
			Kind:         strategy.KindClick,
			Description:  "Visit individual profiles for detailed info",
			OpenInNewTab: true,
		},
		{
			Name:        "extract_contact_info",
			Kind:        strategy.KindExtractContactSection,
			Description: "Extract contact information from profiles",
			Selectors:   []string{"#top-card-text-details-contact-info"},
			Fields:      []string{"email", "phone", "website"},
		},
	}
}

func companyIntelSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "extract_company_info",
			Kind:        strategy.KindExtractPage,
			Description: "Extract company details",
			Fields:      []string{"company_name", "website", "industry", "size", "headquarters"},
		},
		{
			Name:        "navigate_to_people",
			Kind:        strategy.KindNavigate,
			Description: "Go to company people page",
			URL:         "/people/",
		},
		{
			Name:        "filter_by_role",
			Kind:        strategy.KindAssessAI,
			Description: "Filter employees by role (e.g., decision makers)",
			Task:        "role_filter",
		},
		{
			Name:        "extract_employee_list",
			Kind:        strategy.KindExtractList,
			Description: "Extract employee profiles",
			Fields:      []string{"name", "title", "profile_url", "tenure"},
		},
	}
}

func keywordHuntingSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "scan_content",
			Kind:        strategy.KindMatchKeywords,
			Description: "Scan page content for keywords",
		},
		{
			Name:        "extract_matched_content",
			Kind:        strategy.KindExtractMatched,
			Description: "Extract content with keyword matches",
			Fields:      []string{"author", "content", "url", "keywords_matched"},
		},
		{
			Name:        "extract_contacts",
			Kind:        strategy.KindExtractContacts,
			Description: "Extract contact information",
		},
		{
			Name:        "assess_relevance",
			Kind:        strategy.KindAssessAI,
			Description: "Use AI to assess lead quality",
			Task:        "relevance_assessment",
		},
	}
}

func customSteps(_ *analysis.PageAnalysis) []strategy.Step {
	return []strategy.Step{
		{
			Name:        "analyze_with_ai",
			Kind:        strategy.KindAIPlan,
			Description: "Analyze page structure and determine extraction strategy",
			Task:        "strategy_generation",
		},
		{
			Name:        "execute_ai_strategy",
			Kind:        strategy.KindAIExecute,
			Description: "Execute AI-generated extraction strategy",
		},
	}
}
