package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"resumease-go/internal/constants"
	"resumease-go/internal/parser"
	"resumease-go/internal/storage"
	"resumease-go/internal/storage/models"
	"resumease-go/internal/tracing"
	"resumease-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// UploadResult 简历上传处理的结果
type UploadResult struct {
	ResumeID   string               `json:"resume_id"`
	Status     string               `json:"status"`
	Duplicate  bool                 `json:"duplicate"`
	SkillCount int                  `json:"skill_count"`
	Links      types.ExtractedLinks `json:"extracted_links"`
}

// IntakeService 简历入库服务：去重、存原件、解析、落库、发事件。
// 同一份文件内容（按MD5判定）只解析一次。
type IntakeService struct {
	meta     MetadataStore
	cache    HotCache
	objects  storage.ObjectStorage
	events   EventSink
	pipeline *parser.ParsingPipeline
	logger   *zerolog.Logger

	now func() time.Time
}

// NewIntakeService 创建简历入库服务实例
func NewIntakeService(storageManager *storage.Storage, pipeline *parser.ParsingPipeline, logger *zerolog.Logger) (*IntakeService, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, errors.New("入库服务需要MySQL存储")
	}
	if pipeline == nil {
		return nil, errors.New("入库服务需要解析流水线")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	svc := &IntakeService{
		meta:     storageManager.MySQL,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
	}
	if storageManager.Redis != nil {
		svc.cache = storageManager.Redis
	}
	if storageManager.MinIO != nil {
		svc.objects = storageManager.MinIO
	}
	if storageManager.Events != nil {
		svc.events = storageManager.Events
	}
	return svc, nil
}

// ProcessResumeUpload 处理一次简历上传。
// 重复文件直接返回已有记录（Duplicate=true），不重新解析。
// 解析失败的记录保留为FAILED状态，原始文件已入对象存储，便于排查。
func (s *IntakeService) ProcessResumeUpload(ctx context.Context, data []byte, originalFilename string) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "IntakeService.ProcessResumeUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.filename", originalFilename),
		attribute.Int("resume.size_bytes", len(data)),
	)

	sum := md5.Sum(data)
	fileMD5 := hex.EncodeToString(sum[:])

	if existing, err := s.findDuplicate(ctx, fileMD5); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Info().
			Str("resume_id", existing.ResumeID).
			Str("file_md5", fileMD5).
			Msg("文件内容重复，复用已有简历记录")
		return duplicateResult(existing), nil
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成简历ID失败: %w", err)
	}
	resumeID := uid.String()
	fileExt := strings.ToLower(filepath.Ext(originalFilename))

	var originPath string
	if s.objects != nil {
		originPath, _, err = s.objects.UploadResumeFileStreaming(ctx, resumeID, fileExt, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, newStoreFileError(resumeID, err.Error())
		}
	}

	record := &models.Resume{
		ResumeID:            resumeID,
		OriginalFilename:    originalFilename,
		FileMD5:             fileMD5,
		OriginalFilePathOSS: originPath,
		Status:              constants.ResumeStatusPending,
	}
	if err := s.meta.CreateResume(ctx, record); err != nil {
		return nil, newDatabaseError(resumeID, "create_resume", err.Error())
	}

	parsed, err := s.pipeline.ParseDocument(ctx, data, originalFilename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		if statusErr := s.meta.UpdateResumeStatus(ctx, resumeID, constants.ResumeStatusFailed); statusErr != nil {
			s.logger.Warn().Err(statusErr).Str("resume_id", resumeID).Msg("标记简历解析失败状态时出错")
		}
		return nil, newParseError(resumeID, err)
	}
	span.SetAttributes(attribute.String("resume.text_preview", tracing.SafeResumeContent(parsed.RawText)))

	var parsedTextPath string
	if s.objects != nil {
		parsedTextPath, err = s.objects.UploadParsedText(ctx, resumeID, parsed.RawText)
		if err != nil {
			return nil, newStoreTextError(resumeID, err.Error())
		}
	}

	updates, err := parsedFieldUpdates(parsed, parsedTextPath)
	if err != nil {
		return nil, fmt.Errorf("序列化解析结果失败: %w", err)
	}
	if err := s.meta.UpdateResumeFields(ctx, resumeID, updates); err != nil {
		return nil, newDatabaseError(resumeID, "update_resume", err.Error())
	}

	if s.cache != nil {
		if err := s.cache.AddRawFileMD5(ctx, fileMD5); err != nil {
			s.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("写入MD5去重集合失败")
		}
	}

	if s.events != nil {
		event := &storage.ResumeParsedEvent{
			ResumeID:   resumeID,
			Filename:   originalFilename,
			SkillCount: len(parsed.Skills),
			HasGithub:  parsed.Links.GitHub != "",
			ParsedAt:   s.now(),
		}
		if err := s.events.PublishResumeParsed(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("发布简历解析完成事件失败")
		}
	}

	s.logger.Info().
		Str("resume_id", resumeID).
		Str("filename", originalFilename).
		Int("skill_count", len(parsed.Skills)).
		Msg("简历入库完成")

	return &UploadResult{
		ResumeID:   resumeID,
		Status:     constants.ResumeStatusParsed,
		SkillCount: len(parsed.Skills),
		Links:      parsed.Links,
	}, nil
}

// findDuplicate 按文件MD5查重。Redis集合只是数据库唯一索引前的快速预判，
// 命中与否最终都以数据库记录为准。
func (s *IntakeService) findDuplicate(ctx context.Context, fileMD5 string) (*models.Resume, error) {
	if s.cache != nil {
		exists, err := s.cache.CheckRawFileMD5Exists(ctx, fileMD5)
		if err != nil {
			s.logger.Warn().Err(err).Msg("查询MD5去重集合失败，回退数据库查重")
		} else if !exists {
			return nil, nil
		}
	}
	existing, err := s.meta.GetResumeByFileMD5(ctx, fileMD5)
	if err != nil {
		return nil, newDatabaseError("", "get_resume_by_md5", err.Error())
	}
	return existing, nil
}

func duplicateResult(existing *models.Resume) *UploadResult {
	result := &UploadResult{
		ResumeID:  existing.ResumeID,
		Status:    existing.Status,
		Duplicate: true,
	}
	if len(existing.SkillsJSON) > 0 {
		var skills []string
		if err := json.Unmarshal(existing.SkillsJSON, &skills); err == nil {
			result.SkillCount = len(skills)
		}
	}
	if len(existing.ExtractedLinksJSON) > 0 {
		_ = json.Unmarshal(existing.ExtractedLinksJSON, &result.Links)
	}
	return result
}

// parsedFieldUpdates 组装解析完成后的字段更新（含状态翻转到PARSED）
func parsedFieldUpdates(parsed *types.ParsedDocument, parsedTextPath string) (map[string]interface{}, error) {
	linksJSON, err := models.ToJSON(parsed.Links)
	if err != nil {
		return nil, err
	}
	skillsJSON, err := models.ToJSON(parsed.Skills)
	if err != nil {
		return nil, err
	}
	sectionsJSON, err := models.ToJSON(parsed.Sections)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"parsed_text":          parsed.RawText,
		"parsed_text_path_oss": parsedTextPath,
		"extracted_links_json": linksJSON,
		"skills_json":          skillsJSON,
		"sections_json":        sectionsJSON,
		"status":               constants.ResumeStatusParsed,
	}, nil
}
