package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAllLinks_MixedText(t *testing.T) {
	e := NewLinkExtractor()

	text := "reach me at jane@x.co, code at github.com/janedoe, site https://janedoe.dev/work"
	links := e.ExtractAllLinks(text)

	assert.Equal(t, "https://github.com/janedoe", links.GitHub, "GitHub链接应归一化为规范URL")
	assert.Equal(t, "jane@x.co", links.Email, "邮箱应保留原文")
	assert.Equal(t, "https://janedoe.dev/work", links.Portfolio)
	assert.Empty(t, links.LinkedIn)
	assert.Empty(t, links.Phone)
}

func TestExtractAllLinks_NoSchemePortfolioIgnored(t *testing.T) {
	e := NewLinkExtractor()

	// 无scheme的裸域名不应被当作portfolio
	links := e.ExtractAllLinks("reach me at jane@x.co, github.com/janedoe")

	assert.Equal(t, "jane@x.co", links.Email)
	assert.Equal(t, "https://github.com/janedoe", links.GitHub)
	assert.Empty(t, links.Portfolio)
}

func TestExtractAllLinks_PortfolioExcludesKnownHosts(t *testing.T) {
	e := NewLinkExtractor()

	text := "https://github.com/janedoe/proj https://www.linkedin.com/in/janedoe https://blog.janedoe.io"
	links := e.ExtractAllLinks(text)

	assert.Equal(t, "https://github.com/janedoe", links.GitHub)
	assert.Equal(t, "https://linkedin.com/in/janedoe", links.LinkedIn)
	assert.Equal(t, "https://blog.janedoe.io", links.Portfolio, "portfolio应跳过已知平台域名")
}

func TestExtractAllLinks_FirstMatchWins(t *testing.T) {
	e := NewLinkExtractor()

	links := e.ExtractAllLinks("github.com/first then github.com/second")
	assert.Equal(t, "https://github.com/first", links.GitHub)
}

func TestExtractAllLinks_Idempotent(t *testing.T) {
	e := NewLinkExtractor()

	text := "jane@x.co +1 555-123-4567 https://huggingface.co/janedoe leetcode.com/janedoe"
	first := e.ExtractAllLinks(text)
	second := e.ExtractAllLinks(text)

	require.Equal(t, first, second, "相同输入应产生相同输出")
	assert.Equal(t, "https://huggingface.co/janedoe", first.HuggingFace)
	assert.Equal(t, "https://leetcode.com/janedoe", first.LeetCode)
	assert.NotEmpty(t, first.Phone)
}

func TestExtractGithubUsername(t *testing.T) {
	assert.Equal(t, "janedoe", ExtractGithubUsername("https://github.com/janedoe/repo"))
	assert.Equal(t, "janedoe", ExtractGithubUsername("github.com/janedoe"))
	assert.Equal(t, "", ExtractGithubUsername("https://example.com/janedoe"))
}

func TestDetectLinkType(t *testing.T) {
	assert.Equal(t, "github", DetectLinkType("https://GitHub.com/janedoe"))
	assert.Equal(t, "linkedin", DetectLinkType("https://linkedin.com/in/janedoe"))
	assert.Equal(t, "huggingface", DetectLinkType("https://huggingface.co/janedoe"))
	assert.Equal(t, "leetcode", DetectLinkType("https://leetcode.com/janedoe"))
	assert.Equal(t, "other", DetectLinkType("https://janedoe.dev"))
}
