package parser

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrDocumentCorrupt   = errors.New("文档损坏或无法读取")
	ErrNoExtractableText = errors.New("文档中没有可提取的文本")
)

// ExtractError 包含详细错误信息的自定义错误
type ExtractError struct {
	Filename string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ExtractError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.Filename, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.Filename)
}

func (e *ExtractError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ExtractError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func newUnsupportedFormatError(filename, op string, cause error, detail string) error {
	return newExtractError(filename, op, ErrUnsupportedFormat, cause, detail)
}

func newDocumentCorruptError(filename, op string, cause error, detail string) error {
	return newExtractError(filename, op, ErrDocumentCorrupt, cause, detail)
}

func newNoExtractableTextError(filename, op string, cause error, detail string) error {
	return newExtractError(filename, op, ErrNoExtractableText, cause, detail)
}

func newExtractError(filename, op string, base, cause error, detail string) error {
	if cause != nil {
		if detail != "" {
			detail = fmt.Sprintf("%s: %v", detail, cause)
		} else {
			detail = cause.Error()
		}
	}
	return &ExtractError{
		Filename: filename,
		Op:       op,
		BaseErr:  base,
		Detail:   detail,
	}
}
