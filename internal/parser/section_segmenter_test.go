package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentSections_Basic(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	sections := s.SegmentSections("Summary\nBuilt things\nSkills\nPython, Go")

	require.Len(t, sections, 2)
	assert.Equal(t, "Built things", sections["summary"])
	assert.Equal(t, "Python, Go", sections["skills"])
}

func TestSegmentSections_PreambleGoesToGeneral(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	sections := s.SegmentSections("Jane Doe\njane@x.co\nEducation\nBSc CS")

	assert.Equal(t, "Jane Doe\njane@x.co", sections["general"])
	assert.Equal(t, "BSc CS", sections["education"])
}

func TestSegmentSections_NoHeaders(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	// 没有标准标题时整篇落入general
	sections := s.SegmentSections("just a paragraph\nwith two lines")

	require.Len(t, sections, 1)
	assert.Equal(t, "just a paragraph\nwith two lines", sections["general"])
}

func TestSegmentSections_LongLineNotHeader(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	longLine := "Experience has taught me that " + strings.Repeat("x", 20)
	sections := s.SegmentSections("Summary\n" + longLine)

	// 长句中出现的关键词不应开启新小节
	require.Contains(t, sections, "summary")
	assert.NotContains(t, sections, "experience")
	assert.Equal(t, longLine, sections["summary"])
}

func TestSegmentSections_RepeatedHeaderLastWriteWins(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	sections := s.SegmentSections("Skills\nPython\nSummary\nstuff\nSkills\nGo")

	assert.Equal(t, "Go", sections["skills"])
	assert.Equal(t, "stuff", sections["summary"])
}

func TestSegmentSections_CaseInsensitiveHeaders(t *testing.T) {
	s := NewSectionSegmenter(DefaultVocabulary())

	sections := s.SegmentSections("WORK EXPERIENCE\nAcme Corp")

	assert.Equal(t, "Acme Corp", sections["work experience"])
}
