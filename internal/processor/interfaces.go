package processor

import (
	"context"
	"time"

	"resumease-go/internal/storage"
	"resumease-go/internal/storage/models"
	"resumease-go/internal/types"
)

//
// 存储相关接口
//

// MetadataStore 元数据存储接口（MySQL实现）
// 只声明处理层用到的方法，便于测试时注入假实现
type MetadataStore interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
	GetResumeByFileMD5(ctx context.Context, fileMD5 string) (*models.Resume, error)
	UpdateResumeStatus(ctx context.Context, resumeID string, status string) error
	UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByID(ctx context.Context, jobID string) (*models.Job, error)

	UpsertATSScore(ctx context.Context, score *models.ATSScore) error
	GetATSScore(ctx context.Context, resumeID, jobID string) (*models.ATSScore, error)
	GetATSScoreByID(ctx context.Context, scoreID string) (*models.ATSScore, error)
	ListATSScoresByResume(ctx context.Context, resumeID string) ([]models.ATSScore, error)

	UpsertGithubAnalysis(ctx context.Context, analysis *models.GithubAnalysis) error
	GetGithubAnalysis(ctx context.Context, username string) (*models.GithubAnalysis, error)
}

// HotCache 热路径缓存接口（Redis实现）
type HotCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	AddRawFileMD5(ctx context.Context, md5Hex string) error
	CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error)
}

//
// 分析与评分接口
//

// ProfileAnalyzer GitHub档案分析接口
type ProfileAnalyzer interface {
	AnalyzeProfile(ctx context.Context, username string) (*types.GitHubAnalysis, error)
}

// RelevanceScorer 简历-岗位相关性评分接口
type RelevanceScorer interface {
	Score(ctx context.Context, resumeText, jobDescription string, requiredSkills []string, githubScore *float64) (*types.ATSScore, error)
}

// EventSink 领域事件发布接口
type EventSink interface {
	PublishResumeParsed(ctx context.Context, event *storage.ResumeParsedEvent) error
	PublishScoreComputed(ctx context.Context, event *storage.ScoreComputedEvent) error
}
