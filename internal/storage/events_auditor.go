package storage

import (
	"encoding/json"
	"fmt"

	"resumease-go/internal/config"
	"resumease-go/internal/logger"
)

// EventAuditor 订阅事件交换机的全部路由键，把每条领域事件
// 写成结构化审计日志。消息无法解析时直接丢弃，避免毒消息无限重投。
type EventAuditor struct {
	mq     MessageQueue
	cfg    *config.RabbitMQConfig
	stopCh chan struct{}
}

// NewEventAuditor 声明审计队列并绑定两类事件的路由键
func NewEventAuditor(mq MessageQueue, cfg *config.RabbitMQConfig) (*EventAuditor, error) {
	if err := mq.EnsureExchange(cfg.EventsExchange, "topic", true); err != nil {
		return nil, fmt.Errorf("声明事件交换机失败: %w", err)
	}
	if err := mq.EnsureQueue(cfg.AuditQueue, true); err != nil {
		return nil, fmt.Errorf("声明审计队列失败: %w", err)
	}
	for _, key := range []string{cfg.ParsedRoutingKey, cfg.ScoredRoutingKey} {
		if err := mq.BindQueue(cfg.AuditQueue, cfg.EventsExchange, key); err != nil {
			return nil, fmt.Errorf("绑定审计队列失败: %w", err)
		}
	}
	return &EventAuditor{mq: mq, cfg: cfg}, nil
}

// Start 启动消费协程
func (a *EventAuditor) Start() error {
	stopCh, err := a.mq.StartConsumer(a.cfg.AuditQueue, 10, a.handleMessage)
	if err != nil {
		return fmt.Errorf("启动事件审计消费者失败: %w", err)
	}
	a.stopCh = stopCh
	return nil
}

// Stop 停止消费
func (a *EventAuditor) Stop() {
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
}

// handleMessage 按事件字段识别类型并记录审计日志。
// 返回true表示ack；解析失败也ack，丢弃而不是重投。
func (a *EventAuditor) handleMessage(body []byte) bool {
	var head struct {
		ScoreID  string `json:"score_id"`
		ResumeID string `json:"resume_id"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		logger.Warn().Err(err).Msg("审计事件解析失败，丢弃")
		return true
	}

	switch {
	case head.ScoreID != "":
		var event ScoreComputedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			logger.Warn().Err(err).Msg("评分事件解析失败，丢弃")
			return true
		}
		logger.Info().
			Str("event", "score.computed").
			Str("score_id", event.ScoreID).
			Str("resume_id", event.ResumeID).
			Str("job_id", event.JobID).
			Float64("overall_score", event.OverallScore).
			Int("tokens_used", event.TokensUsed).
			Msg("审计：评分已计算")
	case head.ResumeID != "":
		var event ResumeParsedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			logger.Warn().Err(err).Msg("解析事件解析失败，丢弃")
			return true
		}
		logger.Info().
			Str("event", "resume.parsed").
			Str("resume_id", event.ResumeID).
			Str("filename", event.Filename).
			Int("skill_count", event.SkillCount).
			Bool("has_github", event.HasGithub).
			Msg("审计：简历已解析")
	default:
		logger.Warn().Str("body", string(body)).Msg("审计收到未知事件，丢弃")
	}
	return true
}
