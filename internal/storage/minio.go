package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"resumease-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResumeFile 上传原始简历文件
	UploadResumeFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, error)

	// UploadResumeFileStreaming 流式上传原始简历文件并顺带计算MD5
	UploadResumeFileStreaming(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)

	// UploadParsedText 上传解析后的纯文本
	UploadParsedText(ctx context.Context, resumeID string, text string) (string, error)

	// GetResumeFile 下载原始简历文件
	GetResumeFile(ctx context.Context, objectName string) ([]byte, error)

	// GetParsedText 下载解析后的纯文本
	GetParsedText(ctx context.Context, objectName string) (string, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)

	// DeleteFile 删除文件
	DeleteFile(ctx context.Context, objectName string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	logger         *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "resume-originals"
	}
	parsedBucket := cfg.ParsedTextBucket
	if parsedBucket == "" {
		parsedBucket = "parsed-text"
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: originalBucket,
		parsedBucket:   parsedBucket,
		logger:         logger,
	}

	if err := m.ensureBucketExists(originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", originalBucket, err)
	}
	if err := m.ensureBucketExists(parsedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保解析文本存储桶 %s 存在失败: %w", parsedBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 || cfg.ParsedTextExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			m.logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	m.logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created.", bucketName)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", m.cfg.OriginalFileExpireDays); err != nil {
			return fmt.Errorf("为原始文件存储桶 %s 设置生命周期失败: %w", m.originalBucket, err)
		}
	}
	if m.cfg.ParsedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.parsedBucket, "expire-parsed-text", m.cfg.ParsedTextExpireDays); err != nil {
			return fmt.Errorf("为解析文本存储桶 %s 设置生命周期失败: %w", m.parsedBucket, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lifecycleConfig := lifecycle.NewConfiguration()
	lifecycleConfig.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lifecycleConfig)
}

// UploadResumeFile 上传原始简历文件，对象路径为 resumes/<resumeID><ext>
func (m *MinIO) UploadResumeFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectName := resumeObjectName(resumeID, fileExt)
	_, err := m.client.PutObject(ctx, m.originalBucket, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentTypeForExt(fileExt),
	})
	if err != nil {
		return "", fmt.Errorf("上传简历文件失败: %w", err)
	}
	return m.originalBucket + "/" + objectName, nil
}

// UploadResumeFileStreaming 流式上传原始简历并在同一遍读取中计算MD5，
// 返回(对象路径, MD5十六进制串, error)
func (m *MinIO) UploadResumeFileStreaming(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	hasher := md5.New()
	teeReader := io.TeeReader(reader, hasher)

	objectName := resumeObjectName(resumeID, fileExt)
	_, err := m.client.PutObject(ctx, m.originalBucket, objectName, teeReader, fileSize, minio.PutObjectOptions{
		ContentType: contentTypeForExt(fileExt),
	})
	if err != nil {
		return "", "", fmt.Errorf("流式上传简历文件失败: %w", err)
	}

	md5Hex := hex.EncodeToString(hasher.Sum(nil))
	return m.originalBucket + "/" + objectName, md5Hex, nil
}

// UploadParsedText 上传解析后的纯文本，对象路径为 parsed/<resumeID>.txt
func (m *MinIO) UploadParsedText(ctx context.Context, resumeID string, text string) (string, error) {
	objectName := fmt.Sprintf("parsed/%s.txt", resumeID)
	reader := bytes.NewReader([]byte(text))
	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("上传解析文本失败: %w", err)
	}
	return m.parsedBucket + "/" + objectName, nil
}

// GetResumeFile 下载原始简历文件，objectName可以带桶前缀
func (m *MinIO) GetResumeFile(ctx context.Context, objectName string) ([]byte, error) {
	bucket, key := m.splitObjectPath(objectName, m.originalBucket)
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取简历文件失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取简历文件失败: %w", err)
	}
	return data, nil
}

// GetParsedText 下载解析后的纯文本
func (m *MinIO) GetParsedText(ctx context.Context, objectName string) (string, error) {
	bucket, key := m.splitObjectPath(objectName, m.parsedBucket)
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取解析文本失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取解析文本失败: %w", err)
	}
	return string(data), nil
}

// GetPresignedURL 获取预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	bucket, key := m.splitObjectPath(objectName, m.originalBucket)
	u, err := m.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// DeleteFile 删除对象
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	bucket, key := m.splitObjectPath(objectName, m.originalBucket)
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}

// splitObjectPath 解析"bucket/key"形式的对象路径，
// 前缀不是已知桶名时整体按key处理
func (m *MinIO) splitObjectPath(objectName, defaultBucket string) (string, string) {
	if strings.Contains(objectName, "/") {
		parts := strings.SplitN(objectName, "/", 2)
		if parts[0] == m.originalBucket || parts[0] == m.parsedBucket {
			return parts[0], parts[1]
		}
	}
	return defaultBucket, objectName
}

func resumeObjectName(resumeID, fileExt string) string {
	if fileExt != "" && !strings.HasPrefix(fileExt, ".") {
		fileExt = "." + fileExt
	}
	return fmt.Sprintf("resumes/%s%s", resumeID, fileExt)
}

func contentTypeForExt(fileExt string) string {
	switch strings.ToLower(strings.TrimPrefix(fileExt, ".")) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
