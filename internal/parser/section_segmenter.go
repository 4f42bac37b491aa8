package parser

import (
	"strings"
)

// 超过该长度的行不视作节标题，避免正文长句中出现的关键词被误判
const maxSectionHeaderLen = 40

// SectionSegmenter 按标题行启发式把简历文本切分为命名小节
type SectionSegmenter struct {
	headers []string
}

// NewSectionSegmenter 创建小节切分器，标题关键词来自词表
func NewSectionSegmenter(vocab *Vocabulary) *SectionSegmenter {
	return &SectionSegmenter{headers: vocab.SectionHeaders}
}

// SegmentSections 逐行扫描文本，命中标题行时把累积内容提交到
// 上一个小节，之后在新关键词下继续累积。标题行之前的内容归入
// "general"；没有任何标准标题的文档整体落在"general"下。
// 同一关键词重复出现时后写覆盖先写。
func (s *SectionSegmenter) SegmentSections(text string) map[string]string {
	sections := make(map[string]string)
	current := "general"
	var buffer []string

	commit := func() {
		body := strings.TrimSpace(strings.Join(buffer, "\n"))
		if body != "" {
			sections[current] = body
		}
		buffer = buffer[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if header, ok := s.matchHeader(line); ok {
			commit()
			current = header
			continue
		}
		// 非标题行原样累积，空行也保留
		buffer = append(buffer, line)
	}
	commit()

	return sections
}

// matchHeader 判断单行是否为节标题：修剪后不超过长度上限，
// 且以某个已知关键词（不区分大小写）开头
func (s *SectionSegmenter) matchHeader(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) >= maxSectionHeaderLen {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	for _, header := range s.headers {
		if strings.HasPrefix(lower, header) {
			return header, true
		}
	}
	return "", false
}
