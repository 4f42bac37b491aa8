package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resumease-go/internal/logger"
	"resumease-go/internal/types"
)

// 提示词中嵌入的简历/岗位文本截断上限，避免token溢出
const (
	resumeTextLimit    = 4000
	jobDescLimit       = 2000
	costPerToken       = 0.00000094
	maxSuggestionCount = 5
)

// ErrLLMFormat 模型响应中不含可解析的JSON对象。
// 对单次调用是致命错误：不重试，也不降级到规则评分。
var ErrLLMFormat = errors.New("模型响应不包含有效JSON")

const atsPromptTemplate = `You are an expert ATS (Applicant Tracking System) scoring system.

Analyze the following resume against the job description and provide a detailed evaluation.

## Resume Text:
%s

## Job Description:
%s

## Required Skills:
%s

Return ONLY valid JSON in the following format:
{
  "overall_score": <0-100>,
  "breakdown": {
    "skills_match": <0-100>,
    "experience_relevance": <0-100>,
    "project_quality": <0-100>,
    "cultural_fit": <0-100>
  },
  "matched_skills": ["skill1", "skill2"],
  "missing_skills": ["skill3", "skill4"],
  "feedback": {
    "strengths": "Brief paragraph on candidate strengths",
    "weaknesses": "Brief paragraph on candidate weaknesses",
    "overall": "Brief overall assessment"
  },
  "suggestions": [
    "Actionable improvement 1",
    "Actionable improvement 2",
    "Actionable improvement 3"
  ]
}`

// llmScorePayload 模型返回的评分JSON
type llmScorePayload struct {
	OverallScore float64 `json:"overall_score"`
	Breakdown    struct {
		SkillsMatch         float64 `json:"skills_match"`
		ExperienceRelevance float64 `json:"experience_relevance"`
		ProjectQuality      float64 `json:"project_quality"`
		CulturalFit         float64 `json:"cultural_fit"`
	} `json:"breakdown"`
	MatchedSkills []string            `json:"matched_skills"`
	MissingSkills []string            `json:"missing_skills"`
	Feedback      types.ScoreFeedback `json:"feedback"`
	Suggestions   []string            `json:"suggestions"`
}

// RelevanceScoringEngine 计算简历与岗位的相关性得分。
// 配置了模型凭证时走模型路径，否则走确定性的规则兜底路径，
// 两条路径互斥。
type RelevanceScoringEngine struct {
	chatModel model.ToolCallingChatModel
}

// NewRelevanceScoringEngine 创建评分引擎。
// chatModel传nil表示未配置凭证，所有请求都走规则兜底。
func NewRelevanceScoringEngine(chatModel model.ToolCallingChatModel) *RelevanceScoringEngine {
	return &RelevanceScoringEngine{chatModel: chatModel}
}

// Score 对一份简历和一个岗位计算评分。
// githubScore非nil时仅在模型路径上按0.7/0.3混合，
// 规则路径不混合外部信号（沿用上游的既有行为）。
func (e *RelevanceScoringEngine) Score(
	ctx context.Context,
	resumeText, jobDescription string,
	requiredSkills []string,
	githubScore *float64,
) (*types.ATSScore, error) {
	if e.chatModel == nil {
		return e.ruleBasedScore(ctx, resumeText, requiredSkills), nil
	}
	return e.modelScore(ctx, resumeText, jobDescription, requiredSkills, githubScore)
}

func (e *RelevanceScoringEngine) modelScore(
	ctx context.Context,
	resumeText, jobDescription string,
	requiredSkills []string,
	githubScore *float64,
) (*types.ATSScore, error) {
	prompt := fmt.Sprintf(atsPromptTemplate,
		truncate(resumeText, resumeTextLimit),
		truncate(jobDescription, jobDescLimit),
		strings.Join(requiredSkills, ", "),
	)

	reply, err := e.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("调用评分模型失败: %w", err)
	}

	jsonStr := extractJSONObject(reply.Content)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: %s", ErrLLMFormat, truncate(reply.Content, 200))
	}

	var payload llmScorePayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMFormat, err)
	}

	tokensUsed := 0
	if reply.ResponseMeta != nil && reply.ResponseMeta.Usage != nil {
		tokensUsed = reply.ResponseMeta.Usage.TotalTokens
	}

	score := &types.ATSScore{
		OverallScore: payload.OverallScore,
		Breakdown: types.ScoreBreakdown{
			SkillsMatch:         payload.Breakdown.SkillsMatch,
			ExperienceRelevance: payload.Breakdown.ExperienceRelevance,
			ProjectQuality:      payload.Breakdown.ProjectQuality,
			CulturalFit:         payload.Breakdown.CulturalFit,
		},
		Feedback:      payload.Feedback,
		Suggestions:   payload.Suggestions,
		MatchedSkills: payload.MatchedSkills,
		MissingSkills: payload.MissingSkills,
		TokensUsed:    tokensUsed,
		EstimatedCost: roundCost(float64(tokensUsed) * costPerToken),
		CreatedAt:     time.Now(),
	}

	// 文本相关性0.7 + GitHub声誉0.3的固定权重混合
	if githubScore != nil {
		score.OverallScore = math.Round(payload.OverallScore*0.7 + *githubScore*0.3)
		score.Breakdown.LinkVerification = *githubScore
	}

	logger.Ctx(ctx).Info().
		Float64("overall_score", score.OverallScore).
		Int("tokens_used", tokensUsed).
		Bool("blended", githubScore != nil).
		Msg("模型评分完成")
	return score, nil
}

// ruleBasedScore 无模型凭证时的确定性兜底评分。
// 上限压到80分，以区别于模型路径的置信度。
func (e *RelevanceScoringEngine) ruleBasedScore(ctx context.Context, resumeText string, requiredSkills []string) *types.ATSScore {
	textLower := strings.ToLower(resumeText)
	matched := make([]string, 0)
	missing := make([]string, 0)
	for _, skill := range requiredSkills {
		if strings.Contains(textLower, strings.ToLower(skill)) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	ratio := float64(len(matched)) / math.Max(float64(len(requiredSkills)), 1)
	overall := math.Round(ratio * 80)

	suggestions := make([]string, 0, maxSuggestionCount)
	for _, skill := range missing {
		if len(suggestions) == maxSuggestionCount {
			break
		}
		suggestions = append(suggestions, "Add missing skill: "+skill)
	}

	score := &types.ATSScore{
		OverallScore: overall,
		Breakdown: types.ScoreBreakdown{
			SkillsMatch:         math.Round(ratio * 100),
			ExperienceRelevance: overall,
			ProjectQuality:      50,
			CulturalFit:         50,
		},
		Feedback: types.ScoreFeedback{
			Strengths:  "Matched key skills from the job description.",
			Weaknesses: "No LLM analysis available (model credential not configured).",
			Overall:    fmt.Sprintf("Rule-based score: %d/%d required skills matched.", len(matched), len(requiredSkills)),
		},
		Suggestions:   suggestions,
		MatchedSkills: matched,
		MissingSkills: missing,
		TokensUsed:    0,
		EstimatedCost: 0,
		CreatedAt:     time.Now(),
	}

	logger.Ctx(ctx).Info().
		Float64("overall_score", overall).
		Int("matched", len(matched)).
		Int("missing", len(missing)).
		Msg("规则评分完成")
	return score
}

// extractJSONObject 从自由文本中取出第一个花括号配平的JSON对象，
// 模型不保证只返回JSON，可能混有前后缀说明文字
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// truncate 按字节上限截断，回退到rune边界避免切出非法UTF-8
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// roundCost 成本保留6位小数
func roundCost(cost float64) float64 {
	return math.Round(cost*1e6) / 1e6
}
