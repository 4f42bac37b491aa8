package parser

import (
	"regexp"
	"strings"

	"resumease-go/internal/types"
)

// 各分类的匹配模式，均不区分大小写
var (
	githubRe      = regexp.MustCompile(`(?i)github\.com/([a-zA-Z0-9_-]+)(?:/[a-zA-Z0-9_\-.]*)?`)
	linkedinRe    = regexp.MustCompile(`(?i)linkedin\.com/in/([a-zA-Z0-9_-]+)/?`)
	huggingfaceRe = regexp.MustCompile(`(?i)huggingface\.co/([a-zA-Z0-9_-]+)/?`)
	leetcodeRe    = regexp.MustCompile(`(?i)leetcode\.com/([a-zA-Z0-9_-]+)/?`)
	emailRe       = regexp.MustCompile(`(?i)[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe       = regexp.MustCompile(`(?:\+?\d{1,3}[\s\-]?)?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{4}`)
	genericURLRe  = regexp.MustCompile(`(?i)https?://(?:www\.)?([a-zA-Z0-9\-.]+\.[a-zA-Z]{2,})(?:/[^\s]*)?`)
)

// portfolio匹配时需要排除的已知平台域名
var knownLinkHosts = []string{"github.com", "linkedin.com", "huggingface.co", "leetcode.com"}

// linkRule 单个分类的提取规则：匹配器 + 归一化器
type linkRule struct {
	category string
	extract  func(text string) (string, bool)
	assign   func(links *types.ExtractedLinks, value string)
}

// LinkExtractor 从自由文本中按固定优先级提取分类链接
type LinkExtractor struct {
	rules []linkRule
}

// NewLinkExtractor 创建链接提取器。规则按固定优先级排列：
// github > linkedin > huggingface > leetcode > email > phone > portfolio，
// portfolio必须最后评估且排除已知平台域名，否则GitHub/LinkedIn链接会被双重归类。
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{
		rules: []linkRule{
			{
				category: "github",
				extract:  firstSubmatchNormalized(githubRe, "https://github.com/"),
				assign:   func(l *types.ExtractedLinks, v string) { l.GitHub = v },
			},
			{
				category: "linkedin",
				extract:  firstSubmatchNormalized(linkedinRe, "https://linkedin.com/in/"),
				assign:   func(l *types.ExtractedLinks, v string) { l.LinkedIn = v },
			},
			{
				category: "huggingface",
				extract:  firstSubmatchNormalized(huggingfaceRe, "https://huggingface.co/"),
				assign:   func(l *types.ExtractedLinks, v string) { l.HuggingFace = v },
			},
			{
				category: "leetcode",
				extract:  firstSubmatchNormalized(leetcodeRe, "https://leetcode.com/"),
				assign:   func(l *types.ExtractedLinks, v string) { l.LeetCode = v },
			},
			{
				category: "email",
				extract:  firstMatchVerbatim(emailRe),
				assign:   func(l *types.ExtractedLinks, v string) { l.Email = v },
			},
			{
				category: "phone",
				extract:  firstMatchVerbatim(phoneRe),
				assign:   func(l *types.ExtractedLinks, v string) { l.Phone = v },
			},
			{
				category: "portfolio",
				extract:  firstPortfolioURL,
				assign:   func(l *types.ExtractedLinks, v string) { l.Portfolio = v },
			},
		},
	}
}

// ExtractAllLinks 提取文本中的所有分类链接。
// 每个分类只保留第一个匹配，不尝试寻找"最优"匹配；输入相同则输出相同。
func (e *LinkExtractor) ExtractAllLinks(text string) types.ExtractedLinks {
	var links types.ExtractedLinks
	for _, rule := range e.rules {
		if value, ok := rule.extract(text); ok {
			rule.assign(&links, value)
		}
	}
	return links
}

// firstSubmatchNormalized 返回规则匹配器：取首个匹配的捕获组，拼接为规范URL，
// 丢弃路径后缀
func firstSubmatchNormalized(re *regexp.Regexp, urlPrefix string) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return urlPrefix + m[1], true
	}
}

// firstMatchVerbatim 返回规则匹配器：保留首个匹配原文，不做归一化
func firstMatchVerbatim(re *regexp.Regexp) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindString(text)
		if m == "" {
			return "", false
		}
		return m, true
	}
}

// firstPortfolioURL 取首个host不属于已知平台的http(s)链接。
// Go的正则不支持负向先行断言，这里改为匹配后按host过滤。
func firstPortfolioURL(text string) (string, bool) {
	for _, m := range genericURLRe.FindAllStringSubmatch(text, -1) {
		host := strings.ToLower(m[1])
		if isKnownLinkHost(host) {
			continue
		}
		return m[0], true
	}
	return "", false
}

func isKnownLinkHost(host string) bool {
	for _, known := range knownLinkHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

// ExtractGithubUsername 从GitHub链接字符串中解析出用户名。
// 与全文提取无关，用于只有存储链接可用的场景。找不到时返回空串。
func ExtractGithubUsername(url string) string {
	m := githubRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// DetectLinkType 按host子串归类单个URL
func DetectLinkType(url string) string {
	urlLower := strings.ToLower(url)
	switch {
	case strings.Contains(urlLower, "github.com"):
		return "github"
	case strings.Contains(urlLower, "linkedin.com"):
		return "linkedin"
	case strings.Contains(urlLower, "huggingface.co"):
		return "huggingface"
	case strings.Contains(urlLower, "leetcode.com"):
		return "leetcode"
	default:
		return "other"
	}
}
