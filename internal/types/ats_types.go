package types

import "time"

// ExtractedLinks 从简历文本中提取出的外部链接和联系方式
// 每个分类最多保留一个值（首次匹配优先），缺失用空字符串表示
type ExtractedLinks struct {
	GitHub      string   `json:"github,omitempty"`
	LinkedIn    string   `json:"linkedin,omitempty"`
	Portfolio   string   `json:"portfolio,omitempty"`
	HuggingFace string   `json:"huggingface,omitempty"`
	LeetCode    string   `json:"leetcode,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Other       []string `json:"other,omitempty"`
}

// ParsedDocument 简历解析流水线的输出，上传时生成一次，之后不可变
type ParsedDocument struct {
	RawText  string            `json:"raw_text"`
	Links    ExtractedLinks    `json:"extracted_links"`
	Skills   []string          `json:"skills"`
	Sections map[string]string `json:"sections"`
}

// ScoreBreakdown ATS评分的分项得分，均为[0,100]
// LinkVerification 仅在混入了GitHub得分时才有值
type ScoreBreakdown struct {
	SkillsMatch         float64 `json:"skills_match"`
	ExperienceRelevance float64 `json:"experience_relevance"`
	ProjectQuality      float64 `json:"project_quality"`
	CulturalFit         float64 `json:"cultural_fit"`
	LinkVerification    float64 `json:"link_verification,omitempty"`
}

// ScoreFeedback 评分附带的文字反馈
type ScoreFeedback struct {
	Strengths  string `json:"strengths"`
	Weaknesses string `json:"weaknesses"`
	Overall    string `json:"overall"`
}

// ATSScore 一次简历-岗位评分的完整结果，按(ResumeID, JobID)缓存
type ATSScore struct {
	ScoreID       string         `json:"score_id,omitempty"`
	ResumeID      string         `json:"resume_id"`
	JobID         string         `json:"job_id"`
	OverallScore  float64        `json:"overall_score"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	Feedback      ScoreFeedback  `json:"feedback"`
	Suggestions   []string       `json:"suggestions"`
	MatchedSkills []string       `json:"matched_skills"`
	MissingSkills []string       `json:"missing_skills"`
	TokensUsed    int            `json:"tokens_used"`
	EstimatedCost float64        `json:"estimated_cost"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RepoSummary GitHub仓库摘要，仅保留评分用到的字段
type RepoSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	Language    string `json:"language,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// GitHubAnalysis GitHub档案分析结果，按用户名缓存，24小时新鲜期
type GitHubAnalysis struct {
	Username       string         `json:"username"`
	Name           string         `json:"name,omitempty"`
	Bio            string         `json:"bio,omitempty"`
	Location       string         `json:"location,omitempty"`
	Company        string         `json:"company,omitempty"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	ProfileURL     string         `json:"profile_url,omitempty"`
	Followers      int            `json:"followers"`
	Following      int            `json:"following"`
	PublicRepos    int            `json:"public_repos"`
	AccountCreated string         `json:"account_created,omitempty"`
	Languages      map[string]int `json:"languages"`
	TopRepos       []RepoSummary  `json:"top_repos"`
	TotalStars     int            `json:"total_stars"`
	TotalForks     int            `json:"total_forks"`
	GithubScore    int            `json:"github_score"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}

// LinkAnalysis 简历链接核验结果（供 /analysis/links 接口返回）
type LinkAnalysis struct {
	Links     ExtractedLinks  `json:"links"`
	GitHub    *GitHubAnalysis `json:"github,omitempty"`
	LinkScore int             `json:"link_score"`
}
