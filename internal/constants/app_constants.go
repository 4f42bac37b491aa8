package constants

import "time"

const (
	// GithubAnalysisFreshness GitHub档案分析的新鲜窗口，超过后惰性重算
	GithubAnalysisFreshness = 24 * time.Hour
	// ATSScoreFreshness ATS评分的新鲜窗口
	ATSScoreFreshness = 7 * 24 * time.Hour

	// Redis键格式
	KeyATSScoreCache       = "ats:score:%s:%s"    // resume_id, job_id
	KeyGithubAnalysisCache = "github:analysis:%s" // username
	RawFileMD5SetKey       = "resumes:file_md5s"  // 原始文件MD5去重集合
)

const (
	// ResumeStatusPending 等待解析
	ResumeStatusPending = "PENDING"
	// ResumeStatusParsed 解析完成
	ResumeStatusParsed = "PARSED"
	// ResumeStatusFailed 解析失败
	ResumeStatusFailed = "FAILED"
)
