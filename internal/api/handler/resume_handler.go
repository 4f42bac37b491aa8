package handler

import (
	"context"
	"fmt"
	"io"

	"resumease-go/internal/logger"
	"resumease-go/internal/processor"
)

// ResumeIntaker 简历入库能力，由processor.IntakeService实现
type ResumeIntaker interface {
	ProcessResumeUpload(ctx context.Context, data []byte, originalFilename string) (*processor.UploadResult, error)
}

// ResumeHandler 简历上传处理器
type ResumeHandler struct {
	intake ResumeIntaker
}

// NewResumeHandler 创建简历上传处理器
func NewResumeHandler(intake ResumeIntaker) *ResumeHandler {
	return &ResumeHandler{intake: intake}
}

// HandleResumeUpload 处理简历上传请求。
// reader只能读一次，先整体读入再交给入库服务（去重需要完整MD5）。
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, reader io.Reader, filename string) (*processor.UploadResult, error) {
	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}

	result, err := h.intake.ProcessResumeUpload(ctx, fileBytes, filename)
	if err != nil {
		logger.Error().
			Err(err).
			Str("filename", filename).
			Msg("简历上传处理失败")
		return nil, err
	}

	if result.Duplicate {
		logger.Info().
			Str("resume_id", result.ResumeID).
			Str("filename", filename).
			Msg("检测到重复的文件内容，返回已有记录")
	}
	return result, nil
}
