package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"
	"time"

	einopdf "github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/ledongthuc/pdf"

	"resumease-go/internal/logger"
)

// 单次PDF解析的超时，避免损坏文件把goroutine挂死
const pdfExtractTimeout = 30 * time.Second

// pdfStrategy 一种PDF文本提取实现
type pdfStrategy func(ctx context.Context, data []byte, filename string) (string, error)

// DocumentTextExtractor 将PDF/DOCX字节流转换为纯文本。
// PDF按策略顺序尝试：Eino解析器为主，ledongthuc/pdf兜底，
// 前一个失败或只解析出空白（扫描件常见）就换下一个；
// DOCX直接解包word/document.xml。
type DocumentTextExtractor struct {
	einoPDF       *einopdf.PDFParser
	pdfStrategies []pdfStrategy
}

// NewDocumentTextExtractor 初始化文本提取器
// PDF解析默认不按页面分割，获取整个文档的连续文本
func NewDocumentTextExtractor(ctx context.Context) (*DocumentTextExtractor, error) {
	p, err := einopdf.NewPDFParser(ctx, &einopdf.Config{
		ToPages: false, // 整个PDF作为单个字符串
	})
	if err != nil {
		return nil, newDocumentCorruptError("", "init", err, "创建Eino PDF解析器失败")
	}
	e := &DocumentTextExtractor{einoPDF: p}
	e.pdfStrategies = []pdfStrategy{
		e.extractPDFEino,
		func(_ context.Context, data []byte, _ string) (string, error) {
			return extractPDFFallback(data)
		},
	}
	return e, nil
}

// ExtractText 按文件扩展名分发到具体格式的提取逻辑。
// 提取成功但文本修剪后为空时按无可提取文本处理。
func (e *DocumentTextExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = e.extractPDF(ctx, data, filename)
	case ".docx", ".doc":
		text, err = extractDOCX(data, filename)
	default:
		return "", newUnsupportedFormatError(filename, "extract", nil, "仅支持pdf和docx")
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newNoExtractableTextError(filename, "extract", nil, "文档不含可提取文本")
	}
	return text, nil
}

// extractPDF 按顺序尝试各策略，取第一个产出非空白文本的结果。
// 全部报错才算文档损坏；有策略成功但全是空白则交给上层按空文本处理。
func (e *DocumentTextExtractor) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfExtractTimeout)
	defer cancel()

	anySucceeded := false
	var firstErr error
	for i, strategy := range e.pdfStrategies {
		text, err := strategy(ctx, data, filename)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("filename", filename).
				Int("strategy", i).
				Msg("PDF解析策略失败")
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		anySucceeded = true
		logger.Ctx(ctx).Warn().
			Str("filename", filename).
			Int("strategy", i).
			Msg("PDF解析结果为空白，尝试下一策略")
	}
	if !anySucceeded {
		return "", newDocumentCorruptError(filename, "extractPDF", firstErr, "所有PDF解析策略均失败")
	}
	return "", nil
}

func (e *DocumentTextExtractor) extractPDFEino(ctx context.Context, data []byte, filename string) (string, error) {
	docs, err := e.einoPDF.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(filename),
	)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", newNoExtractableTextError(filename, "extractPDFEino", nil, "解析器未返回文档")
	}
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(doc.Content)
	}
	return sb.String(), nil
}

func extractPDFFallback(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	rs, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX 把DOCX当zip解包，遍历word/document.xml的XML token流：
// <w:t>取文本，</w:p>补换行
func extractDOCX(data []byte, filename string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newDocumentCorruptError(filename, "extractDOCX", err, "不是有效的zip容器")
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", newDocumentCorruptError(filename, "extractDOCX", err, "打开word/document.xml失败")
			}
			break
		}
	}
	if docXML == nil {
		return "", newDocumentCorruptError(filename, "extractDOCX", nil, "缺少word/document.xml")
	}
	defer docXML.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(docXML)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", newDocumentCorruptError(filename, "extractDOCX", err, "document.xml解析失败")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
