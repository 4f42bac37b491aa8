package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Resume 简历主表，一行对应一次成功入库的上传
type Resume struct {
	ResumeID            string         `gorm:"type:char(36);primaryKey"`
	OriginalFilename    string         `gorm:"type:varchar(255)"`
	FileMD5             string         `gorm:"type:char(32);uniqueIndex:idx_resumes_file_md5_unique"`
	OriginalFilePathOSS string         `gorm:"type:varchar(1024)"`
	ParsedTextPathOSS   string         `gorm:"type:varchar(1024)"`
	ParsedText          string         `gorm:"type:longtext"`
	ExtractedLinksJSON  datatypes.JSON `gorm:"type:json"`
	SkillsJSON          datatypes.JSON `gorm:"type:json"`
	SectionsJSON        datatypes.JSON `gorm:"type:json"`
	Status              string         `gorm:"type:varchar(50);default:'PENDING';index:idx_resumes_status"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// Job 岗位信息表
type Job struct {
	JobID              string         `gorm:"type:char(36);primaryKey"`
	JobTitle           string         `gorm:"type:varchar(255);not null"`
	Department         string         `gorm:"type:varchar(255)"`
	Location           string         `gorm:"type:varchar(255)"`
	JobDescriptionText string         `gorm:"type:text;not null"`
	RequiredSkillsJSON datatypes.JSON `gorm:"type:json"`
	Status             string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// ATSScore 简历-岗位评分表，(resume_id, job_id)唯一，重算时覆盖
type ATSScore struct {
	ScoreID         string         `gorm:"type:char(36);primaryKey"`
	ResumeID        string         `gorm:"type:char(36);not null;index:idx_ats_resume_id;uniqueIndex:idx_ats_resume_job_unique,priority:1"`
	JobID           string         `gorm:"type:char(36);not null;uniqueIndex:idx_ats_resume_job_unique,priority:2"`
	OverallScore    float64        `gorm:"type:float;not null"`
	BreakdownJSON   datatypes.JSON `gorm:"type:json"`
	FeedbackJSON    datatypes.JSON `gorm:"type:json"`
	SuggestionsJSON datatypes.JSON `gorm:"type:json"`
	MatchedSkills   datatypes.JSON `gorm:"type:json"`
	MissingSkills   datatypes.JSON `gorm:"type:json"`
	TokensUsed      int            `gorm:"type:int;default:0"`
	EstimatedCost   float64        `gorm:"type:double;default:0"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Job    *Job    `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ATSScore) TableName() string {
	return "ats_scores"
}

// GithubAnalysis GitHub档案分析表，按用户名唯一，重算时覆盖
type GithubAnalysis struct {
	Username     string         `gorm:"type:varchar(255);primaryKey"`
	AnalysisJSON datatypes.JSON `gorm:"type:json;not null"`
	GithubScore  int            `gorm:"type:int;not null"`
	AnalyzedAt   time.Time      `gorm:"type:datetime(6);not null;index:idx_gha_analyzed_at"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (GithubAnalysis) TableName() string {
	return "github_analyses"
}

// ToJSON 把任意可序列化的值转换为datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
