package storage

import (
	"context"
	"fmt"
	"time"

	"resumease-go/internal/config"
	"resumease-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var eventsTracer = otel.Tracer("resumease-go/storage/events")

// ResumeParsedEvent 简历解析完成后发布的事件
type ResumeParsedEvent struct {
	ResumeID   string    `json:"resume_id"`
	Filename   string    `json:"filename"`
	SkillCount int       `json:"skill_count"`
	HasGithub  bool      `json:"has_github"`
	ParsedAt   time.Time `json:"parsed_at"`
}

// ScoreComputedEvent 评分重新计算后发布的事件，命中缓存时不发布
type ScoreComputedEvent struct {
	ScoreID      string    `json:"score_id"`
	ResumeID     string    `json:"resume_id"`
	JobID        string    `json:"job_id"`
	OverallScore float64   `json:"overall_score"`
	TokensUsed   int       `json:"tokens_used"`
	ComputedAt   time.Time `json:"computed_at"`
}

// EventPublisher 把领域事件发到RabbitMQ的topic交换机。
// 事件是尽力而为的通知，发布失败只记录不回滚主流程。
type EventPublisher struct {
	mq  MessageQueue
	cfg *config.RabbitMQConfig
}

// NewEventPublisher 创建事件发布器并声明交换机
func NewEventPublisher(mq MessageQueue, cfg *config.RabbitMQConfig) (*EventPublisher, error) {
	if err := mq.EnsureExchange(cfg.EventsExchange, "topic", true); err != nil {
		return nil, fmt.Errorf("声明事件交换机失败: %w", err)
	}
	return &EventPublisher{mq: mq, cfg: cfg}, nil
}

// PublishResumeParsed 发布简历解析完成事件
func (p *EventPublisher) PublishResumeParsed(ctx context.Context, event *ResumeParsedEvent) error {
	return p.publish(ctx, p.cfg.ParsedRoutingKey, event.ResumeID, event)
}

// PublishScoreComputed 发布评分计算完成事件
func (p *EventPublisher) PublishScoreComputed(ctx context.Context, event *ScoreComputedEvent) error {
	return p.publish(ctx, p.cfg.ScoredRoutingKey, event.ScoreID, event)
}

func (p *EventPublisher) publish(ctx context.Context, routingKey, subjectID string, event interface{}) error {
	ctx, span := eventsTracer.Start(ctx, "EventPublisher.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", p.cfg.EventsExchange),
		attribute.String("messaging.routing_key", routingKey),
		attribute.String("messaging.subject_id", subjectID),
	)

	err := p.mq.PublishJSON(ctx, p.cfg.EventsExchange, routingKey, event, true)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
	}
	return err
}
