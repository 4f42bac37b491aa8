package handler

import (
	"context"
	"errors"
	"strings"

	"resumease-go/internal/processor"
	"resumease-go/internal/storage/models"
	"resumease-go/internal/types"
)

// 请求参数校验错误，路由层映射为400
var (
	ErrMissingResumeID    = errors.New("resume_id不能为空")
	ErrMissingJobID       = errors.New("job_id不能为空")
	ErrMissingUsername    = errors.New("username不能为空")
	ErrMissingJobTitle    = errors.New("job_title不能为空")
	ErrMissingJobDescText = errors.New("description不能为空")
)

// ATSScorer ATS评分与分析能力，由processor.ATSService实现
type ATSScorer interface {
	GetOrComputeATSScore(ctx context.Context, resumeID, jobID string) (*types.ATSScore, bool, error)
	GetScoreByID(ctx context.Context, scoreID string) (*types.ATSScore, error)
	ListScoreHistory(ctx context.Context, resumeID string) ([]*types.ATSScore, error)
	GetOrComputeGithubAnalysis(ctx context.Context, username string) (*types.GitHubAnalysis, bool, error)
	AnalyzeResumeLinks(ctx context.Context, resumeID string) (*types.LinkAnalysis, error)
	RegisterJob(ctx context.Context, input *processor.JobInput) (*models.Job, error)
}

// ATSHandler ATS评分处理器
type ATSHandler struct {
	svc ATSScorer
}

// NewATSHandler 创建ATS评分处理器
func NewATSHandler(svc ATSScorer) *ATSHandler {
	return &ATSHandler{svc: svc}
}

// ScoreRequest 评分请求体
type ScoreRequest struct {
	ResumeID string `json:"resume_id"`
	JobID    string `json:"job_id"`
}

// ScoreResponse 评分响应体，FromCache标明结果是否来自缓存
type ScoreResponse struct {
	*types.ATSScore
	FromCache bool `json:"from_cache"`
}

// HandleScore 对指定简历和岗位执行（或复用）ATS评分
func (h *ATSHandler) HandleScore(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	if strings.TrimSpace(req.ResumeID) == "" {
		return nil, ErrMissingResumeID
	}
	if strings.TrimSpace(req.JobID) == "" {
		return nil, ErrMissingJobID
	}
	score, fromCache, err := h.svc.GetOrComputeATSScore(ctx, req.ResumeID, req.JobID)
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{ATSScore: score, FromCache: fromCache}, nil
}

// HandleGetScore 按评分ID查询，(nil, nil)表示不存在
func (h *ATSHandler) HandleGetScore(ctx context.Context, scoreID string) (*types.ATSScore, error) {
	return h.svc.GetScoreByID(ctx, scoreID)
}

// HandleScoreHistory 查询简历的历史评分
func (h *ATSHandler) HandleScoreHistory(ctx context.Context, resumeID string) ([]*types.ATSScore, error) {
	if strings.TrimSpace(resumeID) == "" {
		return nil, ErrMissingResumeID
	}
	return h.svc.ListScoreHistory(ctx, resumeID)
}

// GithubAnalysisResponse GitHub分析响应体
type GithubAnalysisResponse struct {
	*types.GitHubAnalysis
	FromCache bool `json:"from_cache"`
}

// HandleGithubAnalysis 触发（或复用）GitHub档案分析
func (h *ATSHandler) HandleGithubAnalysis(ctx context.Context, username string) (*GithubAnalysisResponse, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrMissingUsername
	}
	analysis, fromCache, err := h.svc.GetOrComputeGithubAnalysis(ctx, username)
	if err != nil {
		return nil, err
	}
	return &GithubAnalysisResponse{GitHubAnalysis: analysis, FromCache: fromCache}, nil
}

// CreateJobRequest 创建岗位请求体
type CreateJobRequest struct {
	JobTitle       string   `json:"job_title"`
	Department     string   `json:"department"`
	Location       string   `json:"location"`
	Description    string   `json:"description"`
	RequiredSkills []string `json:"required_skills"`
}

// CreateJobResponse 创建岗位响应体
type CreateJobResponse struct {
	JobID    string `json:"job_id"`
	JobTitle string `json:"job_title"`
	Status   string `json:"status"`
}

// HandleCreateJob 创建岗位记录供评分引用
func (h *ATSHandler) HandleCreateJob(ctx context.Context, req *CreateJobRequest) (*CreateJobResponse, error) {
	if strings.TrimSpace(req.JobTitle) == "" {
		return nil, ErrMissingJobTitle
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, ErrMissingJobDescText
	}
	job, err := h.svc.RegisterJob(ctx, &processor.JobInput{
		JobTitle:       req.JobTitle,
		Department:     req.Department,
		Location:       req.Location,
		Description:    req.Description,
		RequiredSkills: req.RequiredSkills,
	})
	if err != nil {
		return nil, err
	}
	return &CreateJobResponse{JobID: job.JobID, JobTitle: job.JobTitle, Status: job.Status}, nil
}

// HandleLinkAnalysis 核验简历中提取的外部链接
func (h *ATSHandler) HandleLinkAnalysis(ctx context.Context, resumeID string) (*types.LinkAnalysis, error) {
	if strings.TrimSpace(resumeID) == "" {
		return nil, ErrMissingResumeID
	}
	return h.svc.AnalyzeResumeLinks(ctx, resumeID)
}
