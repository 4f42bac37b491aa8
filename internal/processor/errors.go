package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrResumeNotFound    = errors.New("简历不存在")
	ErrJobNotFound       = errors.New("岗位不存在")
	ErrStoreFileFailed   = errors.New("上传简历原始文件失败")
	ErrStoreTextFailed   = errors.New("上传解析文本失败")
	ErrDatabaseFailed    = errors.New("数据库操作失败")
	ErrScoreFailed       = errors.New("计算ATS评分失败")
	ErrGithubFetchFailed = errors.New("获取GitHub档案失败")
)

// ProcessError 包含详细错误信息的自定义错误
type ProcessError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, ResumeID:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, ResumeID:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func newStoreFileError(resumeID, detail string) error {
	return &ProcessError{
		ResumeID: resumeID,
		Op:       "store_file",
		BaseErr:  ErrStoreFileFailed,
		Detail:   detail,
	}
}

// newParseError 保留底层解析错误作为BaseErr，
// 便于上层用errors.Is区分不支持的格式、损坏文件等情况
func newParseError(resumeID string, cause error) error {
	return &ProcessError{
		ResumeID: resumeID,
		Op:       "parse",
		BaseErr:  cause,
	}
}

func newStoreTextError(resumeID, detail string) error {
	return &ProcessError{
		ResumeID: resumeID,
		Op:       "store_text",
		BaseErr:  ErrStoreTextFailed,
		Detail:   detail,
	}
}

func newDatabaseError(resumeID, op, detail string) error {
	return &ProcessError{
		ResumeID: resumeID,
		Op:       op,
		BaseErr:  ErrDatabaseFailed,
		Detail:   detail,
	}
}

func newScoreError(resumeID, detail string) error {
	return &ProcessError{
		ResumeID: resumeID,
		Op:       "score",
		BaseErr:  ErrScoreFailed,
		Detail:   detail,
	}
}
