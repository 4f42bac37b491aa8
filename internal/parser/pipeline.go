package parser

import (
	"context"
	"time"

	"resumease-go/internal/logger"
	"resumease-go/internal/types"
)

// ParsingPipeline 串联文本提取与各结构化提取器，
// 把上传的文档字节流转换为一条结构化简历记录
type ParsingPipeline struct {
	textExtractor    *DocumentTextExtractor
	linkExtractor    *LinkExtractor
	skillExtractor   *SkillExtractor
	sectionSegmenter *SectionSegmenter
}

// NewParsingPipeline 组装解析流水线，词表在构造时注入一次
func NewParsingPipeline(ctx context.Context, vocab *Vocabulary) (*ParsingPipeline, error) {
	textExtractor, err := NewDocumentTextExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return &ParsingPipeline{
		textExtractor:    textExtractor,
		linkExtractor:    NewLinkExtractor(),
		skillExtractor:   NewSkillExtractor(vocab),
		sectionSegmenter: NewSectionSegmenter(vocab),
	}, nil
}

// ParseDocument 执行完整解析：文本提取失败则整体失败，
// 后续的链接/技能/小节提取都是纯函数，不会失败
func (p *ParsingPipeline) ParseDocument(ctx context.Context, data []byte, filename string) (*types.ParsedDocument, error) {
	start := time.Now()

	rawText, err := p.textExtractor.ExtractText(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	doc := &types.ParsedDocument{
		RawText:  rawText,
		Links:    p.linkExtractor.ExtractAllLinks(rawText),
		Skills:   p.skillExtractor.ExtractSkills(rawText),
		Sections: p.sectionSegmenter.SegmentSections(rawText),
	}

	logger.Ctx(ctx).Info().
		Str("filename", filename).
		Int("text_length", len(rawText)).
		Int("skill_count", len(doc.Skills)).
		Int("section_count", len(doc.Sections)).
		Dur("duration", time.Since(start)).
		Msg("简历解析完成")
	return doc, nil
}
