package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumease-go/internal/analyzer"
	"resumease-go/internal/constants"
	"resumease-go/internal/parser"
	"resumease-go/internal/storage"
	"resumease-go/internal/storage/models"
	"resumease-go/internal/tracing"
	"resumease-go/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// 定义tracer
var tracer = otel.Tracer("processor")

// ATSService ATS评分服务，负责GitHub分析和简历-岗位评分的
// 取-算-存流程：Redis热缓存 → MySQL落库记录 → 按需重算。
// 同一键的并发重算通过singleflight合并为一次。
type ATSService struct {
	meta    MetadataStore
	cache   HotCache
	objects storage.ObjectStorage
	events  EventSink
	github  ProfileAnalyzer
	engine  RelevanceScorer
	logger  *zerolog.Logger

	flight singleflight.Group

	// 新鲜度判定用的时钟，测试时可替换
	now func() time.Time
}

// NewATSService 创建ATS评分服务实例
func NewATSService(
	storageManager *storage.Storage,
	github *analyzer.GitHubProfileScorer,
	engine RelevanceScorer,
	logger *zerolog.Logger,
) (*ATSService, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, errors.New("ATS服务需要MySQL存储")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	svc := &ATSService{
		meta:   storageManager.MySQL,
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
	// 可选依赖缺失时保持接口字段为nil，调用处逐一判空
	if github != nil {
		svc.github = github
	}
	if storageManager.Redis != nil {
		svc.cache = storageManager.Redis
	}
	if storageManager.MinIO != nil {
		svc.objects = storageManager.MinIO
	}
	if storageManager.Events != nil {
		svc.events = storageManager.Events
	}
	return svc, nil
}

// githubFlightResult singleflight内部的返回载体
type githubFlightResult struct {
	analysis  *types.GitHubAnalysis
	fromCache bool
}

// GetOrComputeGithubAnalysis 获取GitHub档案分析。
// 24小时内的旧结果直接复用；过期或缺失则重新抓取并覆盖落库。
// 返回值第二项表示结果是否来自缓存。分析失败的结果不落库。
func (s *ATSService) GetOrComputeGithubAnalysis(ctx context.Context, username string) (*types.GitHubAnalysis, bool, error) {
	ctx, span := tracer.Start(ctx, "ATSService.GetOrComputeGithubAnalysis")
	defer span.End()
	span.SetAttributes(attribute.String("github.username", username))

	if s.github == nil {
		return nil, false, errors.New("GitHub分析器未初始化")
	}

	cacheKey := fmt.Sprintf(constants.KeyGithubAnalysisCache, username)
	if s.cache != nil {
		var cached types.GitHubAnalysis
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			if s.now().Sub(cached.AnalyzedAt) < constants.GithubAnalysisFreshness {
				return &cached, true, nil
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("username", username).Msg("读取GitHub分析缓存失败，回退数据库")
		}
	}

	v, err, shared := s.flight.Do("github:"+username, func() (interface{}, error) {
		return s.refreshGithubAnalysis(ctx, username, cacheKey)
	})
	if err != nil {
		var upstream *analyzer.UpstreamError
		switch {
		case errors.Is(err, analyzer.ErrProfileNotFound):
			// 用户不存在属于业务常态，不按错误上报
		case errors.As(err, &upstream):
			tracing.RecordHTTPError(span, err, upstream.StatusCode)
		default:
			tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		}
		return nil, false, err
	}
	result := v.(*githubFlightResult)
	if shared {
		s.logger.Debug().Str("username", username).Msg("GitHub分析请求被singleflight合并")
	}
	return result.analysis, result.fromCache, nil
}

// refreshGithubAnalysis 执行慢路径：查库判新鲜，过期则抓取并覆盖
func (s *ATSService) refreshGithubAnalysis(ctx context.Context, username, cacheKey string) (*githubFlightResult, error) {
	row, err := s.meta.GetGithubAnalysis(ctx, username)
	if err != nil {
		return nil, newDatabaseError("", "get_github_analysis", err.Error())
	}
	if row != nil && s.now().Sub(row.AnalyzedAt) < constants.GithubAnalysisFreshness {
		var analysis types.GitHubAnalysis
		unmarshalErr := json.Unmarshal(row.AnalysisJSON, &analysis)
		if unmarshalErr == nil {
			s.backfillCache(ctx, cacheKey, &analysis, constants.GithubAnalysisFreshness)
			return &githubFlightResult{analysis: &analysis, fromCache: true}, nil
		}
		s.logger.Warn().Err(unmarshalErr).Str("username", username).Msg("数据库中的GitHub分析JSON损坏，重新抓取")
	}

	analysis, err := s.github.AnalyzeProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	analysisJSON, err := models.ToJSON(analysis)
	if err != nil {
		return nil, fmt.Errorf("序列化GitHub分析结果失败: %w", err)
	}
	record := &models.GithubAnalysis{
		Username:     username,
		AnalysisJSON: analysisJSON,
		GithubScore:  analysis.GithubScore,
		AnalyzedAt:   analysis.AnalyzedAt,
	}
	if err := s.meta.UpsertGithubAnalysis(ctx, record); err != nil {
		// 结果已算出，落库失败降级为告警，下次请求会重算
		s.logger.Warn().Err(err).Str("username", username).Msg("GitHub分析落库失败")
	} else {
		s.backfillCache(ctx, cacheKey, analysis, constants.GithubAnalysisFreshness)
	}
	return &githubFlightResult{analysis: analysis, fromCache: false}, nil
}

// scoreFlightResult singleflight内部的返回载体
type scoreFlightResult struct {
	score     *types.ATSScore
	fromCache bool
}

// GetOrComputeATSScore 获取简历对岗位的ATS评分。
// 7天内的旧评分直接复用；过期或缺失则重算并覆盖同(resume_id, job_id)的记录。
// 评分失败不落库也不缓存。
func (s *ATSService) GetOrComputeATSScore(ctx context.Context, resumeID, jobID string) (*types.ATSScore, bool, error) {
	ctx, span := tracer.Start(ctx, "ATSService.GetOrComputeATSScore")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.String("job.id", jobID),
	)

	if s.engine == nil {
		return nil, false, errors.New("评分引擎未初始化")
	}

	resume, err := s.meta.GetResumeByID(ctx, resumeID)
	if err != nil {
		return nil, false, newDatabaseError(resumeID, "get_resume", err.Error())
	}
	if resume == nil {
		return nil, false, &ProcessError{ResumeID: resumeID, Op: "score", BaseErr: ErrResumeNotFound}
	}
	job, err := s.meta.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, false, newDatabaseError(resumeID, "get_job", err.Error())
	}
	if job == nil {
		return nil, false, &ProcessError{ResumeID: resumeID, Op: "score", BaseErr: ErrJobNotFound, Detail: jobID}
	}

	cacheKey := fmt.Sprintf(constants.KeyATSScoreCache, resumeID, jobID)
	if s.cache != nil {
		var cached types.ATSScore
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			if s.now().Sub(cached.CreatedAt) < constants.ATSScoreFreshness {
				return &cached, true, nil
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("读取ATS评分缓存失败，回退数据库")
		}
	}

	v, err, _ := s.flight.Do("score:"+resumeID+":"+jobID, func() (interface{}, error) {
		return s.refreshATSScore(ctx, resume, job, cacheKey)
	})
	if err != nil {
		if errors.Is(err, ErrDatabaseFailed) {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
		} else {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		}
		return nil, false, err
	}
	result := v.(*scoreFlightResult)
	return result.score, result.fromCache, nil
}

// refreshATSScore 执行慢路径：查库判新鲜，过期则重新评分并覆盖
func (s *ATSService) refreshATSScore(ctx context.Context, resume *models.Resume, job *models.Job, cacheKey string) (*scoreFlightResult, error) {
	row, err := s.meta.GetATSScore(ctx, resume.ResumeID, job.JobID)
	if err != nil {
		return nil, newDatabaseError(resume.ResumeID, "get_ats_score", err.Error())
	}
	if row != nil && s.now().Sub(row.CreatedAt) < constants.ATSScoreFreshness {
		score, err := scoreFromModel(row)
		if err == nil {
			s.backfillCache(ctx, cacheKey, score, constants.ATSScoreFreshness)
			return &scoreFlightResult{score: score, fromCache: true}, nil
		}
		s.logger.Warn().Err(err).Str("score_id", row.ScoreID).Msg("数据库中的评分JSON损坏，重新评分")
	}

	githubScore := s.cachedGithubScore(ctx, resume)

	var requiredSkills []string
	if len(job.RequiredSkillsJSON) > 0 {
		if err := json.Unmarshal(job.RequiredSkillsJSON, &requiredSkills); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("岗位必备技能JSON损坏，按空列表处理")
		}
	}

	score, err := s.engine.Score(ctx, resume.ParsedText, job.JobDescriptionText, requiredSkills, githubScore)
	if err != nil {
		return nil, newScoreError(resume.ResumeID, err.Error())
	}
	score.ScoreID = uuid.NewString()
	score.ResumeID = resume.ResumeID
	score.JobID = job.JobID
	score.CreatedAt = s.now()

	record, err := scoreToModel(score)
	if err != nil {
		return nil, fmt.Errorf("序列化评分结果失败: %w", err)
	}
	if err := s.meta.UpsertATSScore(ctx, record); err != nil {
		return nil, newDatabaseError(resume.ResumeID, "upsert_ats_score", err.Error())
	}
	s.backfillCache(ctx, cacheKey, score, constants.ATSScoreFreshness)

	if s.events != nil {
		event := &storage.ScoreComputedEvent{
			ScoreID:      score.ScoreID,
			ResumeID:     score.ResumeID,
			JobID:        score.JobID,
			OverallScore: score.OverallScore,
			TokensUsed:   score.TokensUsed,
			ComputedAt:   score.CreatedAt,
		}
		if err := s.events.PublishScoreComputed(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("score_id", score.ScoreID).Msg("发布评分完成事件失败")
		}
	}

	s.logger.Info().
		Str("resume_id", score.ResumeID).
		Str("job_id", score.JobID).
		Float64("overall_score", score.OverallScore).
		Int("tokens_used", score.TokensUsed).
		Msg("ATS评分已重算并落库")
	return &scoreFlightResult{score: score, fromCache: false}, nil
}

// cachedGithubScore 从简历链接解析GitHub用户名并查询已落库的分析得分。
// 只读已有记录，不触发抓取，也不做新鲜度判断：评分混入的是
// 上一次分析的结果，档案分析有自己独立的刷新入口。
func (s *ATSService) cachedGithubScore(ctx context.Context, resume *models.Resume) *float64 {
	if len(resume.ExtractedLinksJSON) == 0 {
		return nil
	}
	var links types.ExtractedLinks
	if err := json.Unmarshal(resume.ExtractedLinksJSON, &links); err != nil || links.GitHub == "" {
		return nil
	}
	username := parser.ExtractGithubUsername(links.GitHub)
	if username == "" {
		return nil
	}
	row, err := s.meta.GetGithubAnalysis(ctx, username)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("查询GitHub分析记录失败，按无档案评分")
		return nil
	}
	if row == nil {
		return nil
	}
	v := float64(row.GithubScore)
	return &v
}

// AnalyzeResumeLinks 核验简历中提取的外部链接。
// 目前只有GitHub链接参与打分：解析出用户名后复用档案分析结果。
func (s *ATSService) AnalyzeResumeLinks(ctx context.Context, resumeID string) (*types.LinkAnalysis, error) {
	ctx, span := tracer.Start(ctx, "ATSService.AnalyzeResumeLinks")
	defer span.End()

	resume, err := s.meta.GetResumeByID(ctx, resumeID)
	if err != nil {
		return nil, newDatabaseError(resumeID, "get_resume", err.Error())
	}
	if resume == nil {
		return nil, &ProcessError{ResumeID: resumeID, Op: "analyze_links", BaseErr: ErrResumeNotFound}
	}

	result := &types.LinkAnalysis{}
	if len(resume.ExtractedLinksJSON) > 0 {
		if err := json.Unmarshal(resume.ExtractedLinksJSON, &result.Links); err != nil {
			s.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("简历链接JSON损坏")
		}
	}
	// 联系方式属于PII，进span前先掩码
	span.SetAttributes(
		attribute.String("resume.email", tracing.SafeAttributeValue("email", result.Links.Email, tracing.DefaultMaxLength)),
		attribute.String("resume.phone", tracing.SafeAttributeValue("phone", result.Links.Phone, tracing.DefaultMaxLength)),
	)

	if result.Links.GitHub != "" {
		username := parser.ExtractGithubUsername(result.Links.GitHub)
		if username != "" {
			analysis, _, err := s.GetOrComputeGithubAnalysis(ctx, username)
			switch {
			case err == nil:
				result.GitHub = analysis
				result.LinkScore = analysis.GithubScore
			case errors.Is(err, analyzer.ErrProfileNotFound):
				s.logger.Info().Str("username", username).Msg("简历中的GitHub用户不存在，链接得分记0")
			default:
				tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeExternal,
					attribute.String("github.username", username))
				return nil, &ProcessError{ResumeID: resumeID, Op: "analyze_links", BaseErr: ErrGithubFetchFailed, Detail: err.Error()}
			}
		}
	}
	return result, nil
}

// GetScoreByID 按评分ID查询已落库的评分
func (s *ATSService) GetScoreByID(ctx context.Context, scoreID string) (*types.ATSScore, error) {
	row, err := s.meta.GetATSScoreByID(ctx, scoreID)
	if err != nil {
		return nil, newDatabaseError("", "get_score_by_id", err.Error())
	}
	if row == nil {
		return nil, nil
	}
	return scoreFromModel(row)
}

// ListScoreHistory 按简历查询历史评分，新的在前
func (s *ATSService) ListScoreHistory(ctx context.Context, resumeID string) ([]*types.ATSScore, error) {
	rows, err := s.meta.ListATSScoresByResume(ctx, resumeID)
	if err != nil {
		return nil, newDatabaseError(resumeID, "list_scores", err.Error())
	}
	scores := make([]*types.ATSScore, 0, len(rows))
	for i := range rows {
		score, err := scoreFromModel(&rows[i])
		if err != nil {
			s.logger.Warn().Err(err).Str("score_id", rows[i].ScoreID).Msg("跳过JSON损坏的评分记录")
			continue
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// JobInput 创建岗位的入参
type JobInput struct {
	JobTitle       string
	Department     string
	Location       string
	Description    string
	RequiredSkills []string
}

// RegisterJob 创建岗位记录供后续评分引用，返回带生成JobID的完整记录
func (s *ATSService) RegisterJob(ctx context.Context, input *JobInput) (*models.Job, error) {
	skills, err := models.ToJSON(input.RequiredSkills)
	if err != nil {
		return nil, fmt.Errorf("序列化岗位技能失败: %w", err)
	}
	job := &models.Job{
		JobID:              uuid.NewString(),
		JobTitle:           input.JobTitle,
		Department:         input.Department,
		Location:           input.Location,
		JobDescriptionText: input.Description,
		RequiredSkillsJSON: skills,
		Status:             "ACTIVE",
		CreatedAt:          s.now(),
	}
	if err := s.meta.CreateJob(ctx, job); err != nil {
		return nil, newDatabaseError("", "create_job", err.Error())
	}
	s.logger.Info().
		Str("job_id", job.JobID).
		Str("job_title", job.JobTitle).
		Msg("岗位已创建")
	return job, nil
}

// backfillCache 写回热缓存，失败只告警
func (s *ATSService) backfillCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", tracing.SafeRedisKey(key)).Msg("写入热缓存失败")
	}
}

// scoreToModel 把评分结果转换为数据库行，JSON列逐个序列化
func scoreToModel(score *types.ATSScore) (*models.ATSScore, error) {
	breakdown, err := models.ToJSON(score.Breakdown)
	if err != nil {
		return nil, err
	}
	feedback, err := models.ToJSON(score.Feedback)
	if err != nil {
		return nil, err
	}
	suggestions, err := models.ToJSON(score.Suggestions)
	if err != nil {
		return nil, err
	}
	matched, err := models.ToJSON(score.MatchedSkills)
	if err != nil {
		return nil, err
	}
	missing, err := models.ToJSON(score.MissingSkills)
	if err != nil {
		return nil, err
	}
	return &models.ATSScore{
		ScoreID:         score.ScoreID,
		ResumeID:        score.ResumeID,
		JobID:           score.JobID,
		OverallScore:    score.OverallScore,
		BreakdownJSON:   breakdown,
		FeedbackJSON:    feedback,
		SuggestionsJSON: suggestions,
		MatchedSkills:   matched,
		MissingSkills:   missing,
		TokensUsed:      score.TokensUsed,
		EstimatedCost:   score.EstimatedCost,
		CreatedAt:       score.CreatedAt,
	}, nil
}

// scoreFromModel 把数据库行还原为评分结果
func scoreFromModel(row *models.ATSScore) (*types.ATSScore, error) {
	score := &types.ATSScore{
		ScoreID:       row.ScoreID,
		ResumeID:      row.ResumeID,
		JobID:         row.JobID,
		OverallScore:  row.OverallScore,
		TokensUsed:    row.TokensUsed,
		EstimatedCost: row.EstimatedCost,
		CreatedAt:     row.CreatedAt,
	}
	if len(row.BreakdownJSON) > 0 {
		if err := json.Unmarshal(row.BreakdownJSON, &score.Breakdown); err != nil {
			return nil, fmt.Errorf("解析breakdown失败: %w", err)
		}
	}
	if len(row.FeedbackJSON) > 0 {
		if err := json.Unmarshal(row.FeedbackJSON, &score.Feedback); err != nil {
			return nil, fmt.Errorf("解析feedback失败: %w", err)
		}
	}
	if len(row.SuggestionsJSON) > 0 {
		if err := json.Unmarshal(row.SuggestionsJSON, &score.Suggestions); err != nil {
			return nil, fmt.Errorf("解析suggestions失败: %w", err)
		}
	}
	if len(row.MatchedSkills) > 0 {
		if err := json.Unmarshal(row.MatchedSkills, &score.MatchedSkills); err != nil {
			return nil, fmt.Errorf("解析matched_skills失败: %w", err)
		}
	}
	if len(row.MissingSkills) > 0 {
		if err := json.Unmarshal(row.MissingSkills, &score.MissingSkills); err != nil {
			return nil, fmt.Errorf("解析missing_skills失败: %w", err)
		}
	}
	return score, nil
}
