package processor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resumease-go/internal/analyzer"
	"resumease-go/internal/storage"
	"resumease-go/internal/storage/models"
	"resumease-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// 测试用假实现
//

type fakeMeta struct {
	mu          sync.Mutex
	resumes     map[string]*models.Resume
	resumeByMD5 map[string]*models.Resume
	jobs        map[string]*models.Job
	scores      map[string]*models.ATSScore // resumeID:jobID
	scoresByID  map[string]*models.ATSScore
	ghAnalyses  map[string]*models.GithubAnalysis

	upsertScoreCalls int
	upsertGhCalls    int
	createdResumes   int
	statusUpdates    map[string]string
	fieldUpdates     map[string]map[string]interface{}
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		resumes:       make(map[string]*models.Resume),
		resumeByMD5:   make(map[string]*models.Resume),
		jobs:          make(map[string]*models.Job),
		scores:        make(map[string]*models.ATSScore),
		scoresByID:    make(map[string]*models.ATSScore),
		ghAnalyses:    make(map[string]*models.GithubAnalysis),
		statusUpdates: make(map[string]string),
		fieldUpdates:  make(map[string]map[string]interface{}),
	}
}

func (f *fakeMeta) CreateResume(_ context.Context, resume *models.Resume) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdResumes++
	f.resumes[resume.ResumeID] = resume
	f.resumeByMD5[resume.FileMD5] = resume
	return nil
}

func (f *fakeMeta) GetResumeByID(_ context.Context, resumeID string) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes[resumeID], nil
}

func (f *fakeMeta) GetResumeByFileMD5(_ context.Context, fileMD5 string) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumeByMD5[fileMD5], nil
}

func (f *fakeMeta) UpdateResumeStatus(_ context.Context, resumeID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[resumeID] = status
	if r, ok := f.resumes[resumeID]; ok {
		r.Status = status
	}
	return nil
}

func (f *fakeMeta) UpdateResumeFields(_ context.Context, resumeID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldUpdates[resumeID] = updates
	if r, ok := f.resumes[resumeID]; ok {
		if status, ok := updates["status"].(string); ok {
			r.Status = status
		}
	}
	return nil
}

func (f *fakeMeta) CreateJob(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeMeta) GetJobByID(_ context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[jobID], nil
}

func (f *fakeMeta) UpsertATSScore(_ context.Context, score *models.ATSScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertScoreCalls++
	f.scores[score.ResumeID+":"+score.JobID] = score
	f.scoresByID[score.ScoreID] = score
	return nil
}

func (f *fakeMeta) GetATSScore(_ context.Context, resumeID, jobID string) (*models.ATSScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[resumeID+":"+jobID], nil
}

func (f *fakeMeta) GetATSScoreByID(_ context.Context, scoreID string) (*models.ATSScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoresByID[scoreID], nil
}

func (f *fakeMeta) ListATSScoresByResume(_ context.Context, resumeID string) ([]models.ATSScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ATSScore
	for _, s := range f.scores {
		if s.ResumeID == resumeID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeMeta) UpsertGithubAnalysis(_ context.Context, analysis *models.GithubAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertGhCalls++
	f.ghAnalyses[analysis.Username] = analysis
	return nil
}

func (f *fakeMeta) GetGithubAnalysis(_ context.Context, username string) (*models.GithubAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ghAnalyses[username], nil
}

type fakeAnalyzer struct {
	calls  int32
	delay  time.Duration
	result *types.GitHubAnalysis
	err    error
}

func (f *fakeAnalyzer) AnalyzeProfile(_ context.Context, username string) (*types.GitHubAnalysis, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	result.Username = username
	return &result, nil
}

type fakeScorer struct {
	calls           int32
	gotResumeText   string
	gotSkills       []string
	gotGithubScore  *float64
	overrideOverall float64
	err             error
}

func (f *fakeScorer) Score(_ context.Context, resumeText, _ string, requiredSkills []string, githubScore *float64) (*types.ATSScore, error) {
	atomic.AddInt32(&f.calls, 1)
	f.gotResumeText = resumeText
	f.gotSkills = requiredSkills
	f.gotGithubScore = githubScore
	if f.err != nil {
		return nil, f.err
	}
	return &types.ATSScore{
		OverallScore: f.overrideOverall,
		Breakdown:    types.ScoreBreakdown{SkillsMatch: f.overrideOverall},
		TokensUsed:   321,
	}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	parsed []*storage.ResumeParsedEvent
	scored []*storage.ScoreComputedEvent
}

func (f *fakeEvents) PublishResumeParsed(_ context.Context, event *storage.ResumeParsedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parsed = append(f.parsed, event)
	return nil
}

func (f *fakeEvents) PublishScoreComputed(_ context.Context, event *storage.ScoreComputedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, event)
	return nil
}

//
// 测试辅助
//

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(meta *fakeMeta, gh ProfileAnalyzer, engine RelevanceScorer) *ATSService {
	nop := zerolog.Nop()
	svc := &ATSService{
		meta:   meta,
		logger: &nop,
		now:    func() time.Time { return testBase },
	}
	if gh != nil {
		svc.github = gh
	}
	if engine != nil {
		svc.engine = engine
	}
	return svc
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func seedGithubRow(t *testing.T, meta *fakeMeta, username string, score int, analyzedAt time.Time) {
	t.Helper()
	analysis := &types.GitHubAnalysis{Username: username, GithubScore: score, AnalyzedAt: analyzedAt}
	meta.ghAnalyses[username] = &models.GithubAnalysis{
		Username:     username,
		AnalysisJSON: mustJSON(t, analysis),
		GithubScore:  score,
		AnalyzedAt:   analyzedAt,
	}
}

func seedResume(t *testing.T, meta *fakeMeta, resumeID, parsedText string, links *types.ExtractedLinks) {
	t.Helper()
	resume := &models.Resume{
		ResumeID:   resumeID,
		ParsedText: parsedText,
		Status:     "PARSED",
	}
	if links != nil {
		resume.ExtractedLinksJSON = mustJSON(t, links)
	}
	meta.resumes[resumeID] = resume
}

func seedJob(t *testing.T, meta *fakeMeta, jobID, description string, requiredSkills []string) {
	t.Helper()
	meta.jobs[jobID] = &models.Job{
		JobID:              jobID,
		JobTitle:           "后端工程师",
		JobDescriptionText: description,
		RequiredSkillsJSON: mustJSON(t, requiredSkills),
	}
}

//
// GitHub分析缓存
//

func TestGetOrComputeGithubAnalysis_FreshRowReused(t *testing.T) {
	meta := newFakeMeta()
	// 23小时前的分析仍在新鲜期内
	seedGithubRow(t, meta, "janedoe", 41, testBase.Add(-23*time.Hour))
	gh := &fakeAnalyzer{result: &types.GitHubAnalysis{GithubScore: 99}}
	svc := newTestService(meta, gh, nil)

	analysis, fromCache, err := svc.GetOrComputeGithubAnalysis(context.Background(), "janedoe")
	require.NoError(t, err)
	assert.True(t, fromCache, "新鲜记录应直接复用")
	assert.Equal(t, 41, analysis.GithubScore)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.calls), "不应触发重新抓取")
}

func TestGetOrComputeGithubAnalysis_StaleRowRecomputed(t *testing.T) {
	meta := newFakeMeta()
	// 25小时前的分析已过期
	seedGithubRow(t, meta, "janedoe", 41, testBase.Add(-25*time.Hour))
	gh := &fakeAnalyzer{result: &types.GitHubAnalysis{GithubScore: 60, AnalyzedAt: testBase}}
	svc := newTestService(meta, gh, nil)

	analysis, fromCache, err := svc.GetOrComputeGithubAnalysis(context.Background(), "janedoe")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 60, analysis.GithubScore)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gh.calls))
	assert.Equal(t, 1, meta.upsertGhCalls, "过期后重算结果应覆盖落库")
	assert.Equal(t, 60, meta.ghAnalyses["janedoe"].GithubScore)
}

func TestGetOrComputeGithubAnalysis_ErrorNotPersisted(t *testing.T) {
	meta := newFakeMeta()
	gh := &fakeAnalyzer{err: analyzer.ErrProfileNotFound}
	svc := newTestService(meta, gh, nil)

	_, _, err := svc.GetOrComputeGithubAnalysis(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, analyzer.ErrProfileNotFound)
	assert.Equal(t, 0, meta.upsertGhCalls, "失败结果不应落库")
	assert.Empty(t, meta.ghAnalyses)
}

func TestGetOrComputeGithubAnalysis_ConcurrentCoalesced(t *testing.T) {
	meta := newFakeMeta()
	gh := &fakeAnalyzer{
		delay:  50 * time.Millisecond,
		result: &types.GitHubAnalysis{GithubScore: 55, AnalyzedAt: testBase},
	}
	svc := newTestService(meta, gh, nil)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			analysis, _, err := svc.GetOrComputeGithubAnalysis(context.Background(), "janedoe")
			assert.NoError(t, err)
			assert.Equal(t, 55, analysis.GithubScore)
		}()
	}
	wg.Wait()

	// 同一用户名的并发请求只触发一次上游抓取
	assert.Equal(t, int32(1), atomic.LoadInt32(&gh.calls))
}

//
// ATS评分缓存
//

func TestGetOrComputeATSScore_FreshRowReused(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "Go developer", nil)
	seedJob(t, meta, "job-1", "Backend role", []string{"Go"})
	engine := &fakeScorer{overrideOverall: 99}
	svc := newTestService(meta, nil, engine)

	// 6天前的评分仍在新鲜期内
	old := &types.ATSScore{
		ScoreID:      "score-old",
		ResumeID:     "resume-1",
		JobID:        "job-1",
		OverallScore: 72,
		CreatedAt:    testBase.Add(-6 * 24 * time.Hour),
	}
	record, err := scoreToModel(old)
	require.NoError(t, err)
	require.NoError(t, meta.UpsertATSScore(context.Background(), record))
	meta.upsertScoreCalls = 0

	score, fromCache, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "score-old", score.ScoreID)
	assert.Equal(t, float64(72), score.OverallScore)
	assert.Equal(t, int32(0), atomic.LoadInt32(&engine.calls), "不应触发重新评分")
}

func TestGetOrComputeATSScore_StaleRowRecomputed(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "Go developer", nil)
	seedJob(t, meta, "job-1", "Backend role", []string{"Go", "MySQL"})
	engine := &fakeScorer{overrideOverall: 88}
	svc := newTestService(meta, nil, engine)

	// 8天前的评分已过期
	old := &types.ATSScore{
		ScoreID:   "score-old",
		ResumeID:  "resume-1",
		JobID:     "job-1",
		CreatedAt: testBase.Add(-8 * 24 * time.Hour),
	}
	record, err := scoreToModel(old)
	require.NoError(t, err)
	require.NoError(t, meta.UpsertATSScore(context.Background(), record))
	meta.upsertScoreCalls = 0

	score, fromCache, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.NotEqual(t, "score-old", score.ScoreID, "重算应生成新的评分ID")
	assert.Equal(t, float64(88), score.OverallScore)
	assert.Equal(t, testBase, score.CreatedAt)
	assert.Equal(t, 1, meta.upsertScoreCalls, "重算结果应覆盖落库")
	assert.Equal(t, []string{"Go", "MySQL"}, engine.gotSkills)
	assert.Equal(t, "Go developer", engine.gotResumeText)
}

func TestGetOrComputeATSScore_ResumeNotFound(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestService(meta, nil, &fakeScorer{})

	_, _, err := svc.GetOrComputeATSScore(context.Background(), "missing", "job-1")
	assert.ErrorIs(t, err, ErrResumeNotFound)
}

func TestGetOrComputeATSScore_JobNotFound(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "text", nil)
	svc := newTestService(meta, nil, &fakeScorer{})

	_, _, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestGetOrComputeATSScore_UsesCachedGithubScoreOnly(t *testing.T) {
	meta := newFakeMeta()
	links := &types.ExtractedLinks{GitHub: "https://github.com/janedoe"}
	seedResume(t, meta, "resume-1", "Go developer", links)
	seedJob(t, meta, "job-1", "Backend role", []string{"Go"})
	// 30天前的分析早已超出新鲜期，但评分只读已有记录，照常混入
	seedGithubRow(t, meta, "janedoe", 40, testBase.Add(-30*24*time.Hour))

	gh := &fakeAnalyzer{result: &types.GitHubAnalysis{GithubScore: 90}}
	engine := &fakeScorer{overrideOverall: 70}
	svc := newTestService(meta, gh, engine)

	_, _, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.NoError(t, err)
	require.NotNil(t, engine.gotGithubScore)
	assert.Equal(t, float64(40), *engine.gotGithubScore)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.calls), "评分路径不应触发GitHub抓取")
}

func TestGetOrComputeATSScore_NoGithubRecord(t *testing.T) {
	meta := newFakeMeta()
	links := &types.ExtractedLinks{GitHub: "https://github.com/janedoe"}
	seedResume(t, meta, "resume-1", "Go developer", links)
	seedJob(t, meta, "job-1", "Backend role", []string{"Go"})
	engine := &fakeScorer{overrideOverall: 70}
	svc := newTestService(meta, &fakeAnalyzer{result: &types.GitHubAnalysis{}}, engine)

	_, _, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.NoError(t, err)
	assert.Nil(t, engine.gotGithubScore, "无落库分析时githubScore应为nil")
}

func TestGetOrComputeATSScore_ScoreErrorNotCached(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "text", nil)
	seedJob(t, meta, "job-1", "desc", nil)
	engine := &fakeScorer{err: assert.AnError}
	svc := newTestService(meta, nil, engine)

	_, _, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScoreFailed)
	assert.Equal(t, 0, meta.upsertScoreCalls, "评分失败不应落库")
}

func TestGetOrComputeATSScore_PublishesEventOnRecompute(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "Go developer", nil)
	seedJob(t, meta, "job-1", "Backend role", []string{"Go"})
	engine := &fakeScorer{overrideOverall: 66}
	events := &fakeEvents{}
	svc := newTestService(meta, nil, engine)
	svc.events = events

	score, _, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", "job-1")
	require.NoError(t, err)
	require.Len(t, events.scored, 1)
	assert.Equal(t, score.ScoreID, events.scored[0].ScoreID)
	assert.Equal(t, float64(66), events.scored[0].OverallScore)
	assert.Equal(t, 321, events.scored[0].TokensUsed)
}

//
// 链接核验
//

func TestAnalyzeResumeLinks_GithubScored(t *testing.T) {
	meta := newFakeMeta()
	links := &types.ExtractedLinks{
		GitHub: "https://github.com/janedoe",
		Email:  "jane@example.com",
	}
	seedResume(t, meta, "resume-1", "text", links)
	gh := &fakeAnalyzer{result: &types.GitHubAnalysis{GithubScore: 55, AnalyzedAt: testBase}}
	svc := newTestService(meta, gh, nil)

	result, err := svc.AnalyzeResumeLinks(context.Background(), "resume-1")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/janedoe", result.Links.GitHub)
	assert.Equal(t, "jane@example.com", result.Links.Email)
	require.NotNil(t, result.GitHub)
	assert.Equal(t, 55, result.LinkScore)
}

func TestAnalyzeResumeLinks_ProfileNotFoundIsZero(t *testing.T) {
	meta := newFakeMeta()
	links := &types.ExtractedLinks{GitHub: "https://github.com/ghost"}
	seedResume(t, meta, "resume-1", "text", links)
	gh := &fakeAnalyzer{err: analyzer.ErrProfileNotFound}
	svc := newTestService(meta, gh, nil)

	result, err := svc.AnalyzeResumeLinks(context.Background(), "resume-1")
	require.NoError(t, err, "用户不存在不应使整个核验失败")
	assert.Nil(t, result.GitHub)
	assert.Equal(t, 0, result.LinkScore)
}

func TestAnalyzeResumeLinks_NoLinks(t *testing.T) {
	meta := newFakeMeta()
	seedResume(t, meta, "resume-1", "text", nil)
	svc := newTestService(meta, &fakeAnalyzer{result: &types.GitHubAnalysis{}}, nil)

	result, err := svc.AnalyzeResumeLinks(context.Background(), "resume-1")
	require.NoError(t, err)
	assert.Nil(t, result.GitHub)
	assert.Equal(t, 0, result.LinkScore)
}

//
// 历史查询
//

func TestListScoreHistory(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestService(meta, nil, nil)

	for _, s := range []*types.ATSScore{
		{ScoreID: "s1", ResumeID: "resume-1", JobID: "job-1", OverallScore: 60, CreatedAt: testBase},
		{ScoreID: "s2", ResumeID: "resume-1", JobID: "job-2", OverallScore: 70, CreatedAt: testBase},
		{ScoreID: "s3", ResumeID: "resume-2", JobID: "job-1", OverallScore: 80, CreatedAt: testBase},
	} {
		record, err := scoreToModel(s)
		require.NoError(t, err)
		require.NoError(t, meta.UpsertATSScore(context.Background(), record))
	}

	scores, err := svc.ListScoreHistory(context.Background(), "resume-1")
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestGetScoreByID_Missing(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestService(meta, nil, nil)

	score, err := svc.GetScoreByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, score)
}

// 创建的岗位必须能被评分路径按JobID查回
func TestRegisterJob_ScorableAfterCreate(t *testing.T) {
	meta := newFakeMeta()
	engine := &fakeScorer{overrideOverall: 66}
	svc := newTestService(meta, nil, engine)
	seedResume(t, meta, "resume-1", "多年Go开发经验", nil)

	job, err := svc.RegisterJob(context.Background(), &JobInput{
		JobTitle:       "Go后端工程师",
		Description:    "负责评分服务开发",
		RequiredSkills: []string{"Go", "MySQL"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, "ACTIVE", job.Status)
	assert.Equal(t, testBase, job.CreatedAt)

	score, fromCache, err := svc.GetOrComputeATSScore(context.Background(), "resume-1", job.JobID)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, float64(66), score.OverallScore)
	assert.Equal(t, []string{"Go", "MySQL"}, engine.gotSkills)
}
