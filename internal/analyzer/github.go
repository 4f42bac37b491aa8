package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"resumease-go/internal/config"
	"resumease-go/internal/logger"
	"resumease-go/internal/types"
)

// 语言统计与top仓库选取只看最近更新的前若干个仓库
const (
	reposPerPage      = 30
	languageRepoLimit = 10
	topRepoLimit      = 5
)

// ErrProfileNotFound GitHub用户不存在（上游404）
var ErrProfileNotFound = errors.New("GitHub用户不存在")

// UpstreamError GitHub接口返回了非200/404状态码
type UpstreamError struct {
	Username   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("GitHub接口异常 (用户:%s, 状态码:%d)", e.Username, e.StatusCode)
}

// githubUser GitHub用户接口的响应，仅保留消费的字段
type githubUser struct {
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	Company     string `json:"company"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"public_repos"`
	CreatedAt   string `json:"created_at"`
}

// githubRepo GitHub仓库列表接口的单条响应
type githubRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	Language    string `json:"language"`
	UpdatedAt   string `json:"updated_at"`
}

// GitHubProfileScorer 拉取公开档案并计算0-100声誉分
type GitHubProfileScorer struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubProfileScorer 创建GitHub档案分析器。
// token可为空，有token时带上可提高限流额度。
func NewGitHubProfileScorer(cfg *config.GitHubConfig) *GitHubProfileScorer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GitHubProfileScorer{
		baseURL:    cfg.APIBaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeProfile 拉取用户档案与最近更新的仓库列表并聚合评分。
// 上游失败不重试；404返回ErrProfileNotFound，调用方决定是否落库。
func (s *GitHubProfileScorer) AnalyzeProfile(ctx context.Context, username string) (*types.GitHubAnalysis, error) {
	user, err := s.fetchUser(ctx, username)
	if err != nil {
		return nil, err
	}
	repos, err := s.fetchRepos(ctx, username)
	if err != nil {
		return nil, err
	}

	analysis := buildAnalysis(username, user, repos)

	logger.Ctx(ctx).Info().
		Str("username", username).
		Int("repo_count", len(repos)).
		Int("github_score", analysis.GithubScore).
		Msg("GitHub档案分析完成")
	return analysis, nil
}

func (s *GitHubProfileScorer) fetchUser(ctx context.Context, username string) (*githubUser, error) {
	var user githubUser
	url := fmt.Sprintf("%s/users/%s", s.baseURL, username)
	if err := s.getJSON(ctx, url, username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GitHubProfileScorer) fetchRepos(ctx context.Context, username string) ([]githubRepo, error) {
	var repos []githubRepo
	url := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d", s.baseURL, username, reposPerPage)
	if err := s.getJSON(ctx, url, username, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (s *GitHubProfileScorer) getJSON(ctx context.Context, url, username string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构建GitHub请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求GitHub接口失败: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrProfileNotFound, username)
	case resp.StatusCode != http.StatusOK:
		return &UpstreamError{Username: username, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取GitHub响应失败: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析GitHub响应失败: %w", err)
	}
	return nil
}

// buildAnalysis 聚合档案与仓库信号。
// repoQuality覆盖全部拉取的仓库，语言统计与top仓库只看最近的一部分。
func buildAnalysis(username string, user *githubUser, repos []githubRepo) *types.GitHubAnalysis {
	totalStars, totalForks := 0, 0
	for _, r := range repos {
		totalStars += r.Stars
		totalForks += r.Forks
	}

	recent := repos
	if len(recent) > languageRepoLimit {
		recent = recent[:languageRepoLimit]
	}
	languages := make(map[string]int)
	for _, r := range recent {
		if r.Language != "" {
			languages[r.Language]++
		}
	}

	topRepos := make([]types.RepoSummary, 0, topRepoLimit)
	for _, r := range recent {
		if len(topRepos) == topRepoLimit {
			break
		}
		topRepos = append(topRepos, types.RepoSummary{
			Name:        r.Name,
			Description: r.Description,
			URL:         r.HTMLURL,
			Stars:       r.Stars,
			Forks:       r.Forks,
			Language:    r.Language,
			UpdatedAt:   r.UpdatedAt,
		})
	}

	score := computeGithubScore(user, len(repos), totalStars, totalForks)

	return &types.GitHubAnalysis{
		Username:       username,
		Name:           user.Name,
		Bio:            user.Bio,
		Location:       user.Location,
		Company:        user.Company,
		AvatarURL:      user.AvatarURL,
		ProfileURL:     user.HTMLURL,
		Followers:      user.Followers,
		Following:      user.Following,
		PublicRepos:    user.PublicRepos,
		AccountCreated: user.CreatedAt,
		Languages:      languages,
		TopRepos:       topRepos,
		TotalStars:     totalStars,
		TotalForks:     totalForks,
		GithubScore:    score,
		AnalyzedAt:     time.Now(),
	}
}

// computeGithubScore 档案完整度与仓库质量按0.4/0.6加权
func computeGithubScore(user *githubUser, repoCount, totalStars, totalForks int) int {
	completeness := 0
	if user.Bio != "" {
		completeness += 20
	}
	if user.Location != "" {
		completeness += 10
	}
	if user.Blog != "" {
		completeness += 10
	}
	completeness += minInt(user.Followers*2, 20)
	completeness += minInt(repoCount*2, 40)

	repoQuality := minInt(totalStars*3+totalForks*2+repoCount, 100)

	score := int(math.Round(float64(completeness)*0.4 + float64(repoQuality)*0.6))
	if score > 100 {
		score = 100
	}
	return score
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
