package events

import (
	"context"
	"strings"
	"time"

	"marketresearch/internal/adapters/kafka"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/logger"
)

// Event types
const (
	TypeAnalysisCompleted = "analysis.completed"
)

const schemaVersion = "1.0"

// StageSummary is the per-stage part of an analysis event. Content is omitted.
type StageSummary struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// AnalysisCompleted is emitted once per coordinator run.
type AnalysisCompleted struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	Source     string         `json:"source"`
	Company    string         `json:"company_name"`
	Industry   string         `json:"industry"`
	Mode       string         `json:"mode"`
	Status     string         `json:"status"`
	Stages     []StageSummary `json:"stages"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
}

// NewAnalysisCompleted fills the envelope fields and sanitizes free text.
func NewAnalysisCompleted(id, source, company, industry, mode, status string, startedAt time.Time, stages []StageSummary) AnalysisCompleted {
	return AnalysisCompleted{
		ID:         id,
		Type:       TypeAnalysisCompleted,
		Version:    schemaVersion,
		Source:     source,
		Company:    sanitizeUTF8(company),
		Industry:   sanitizeUTF8(industry),
		Mode:       mode,
		Status:     status,
		Stages:     stages,
		StartedAt:  startedAt.UTC(),
		DurationMs: time.Since(startedAt).Milliseconds(),
	}
}

// Publisher delivers analysis events. Implementations bound each publish so an
// unreachable broker delays a request by at most their timeout.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted) error
	Close() error
}

// KafkaPublisher publishes events to a Kafka topic keyed by analysis ID.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	timeout  time.Duration
	log      *logger.Logger
}

// NewKafkaPublisher creates a Kafka-backed publisher. timeout bounds each publish;
// zero means 2s.
func NewKafkaPublisher(producer *kafka.Producer, topic string, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		timeout:  timeout,
		log:      logger.Get().With("component", "event_publisher", "topic", topic),
	}
}

// PublishAnalysisCompleted implements Publisher. Failures are returned, not logged;
// the caller decides how loud they are.
func (p *KafkaPublisher) PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.producer.Publish(ctx, p.topic, event.ID, event)
	metrics.RecordEventPublished(p.topic, err)
	if err != nil {
		return err
	}
	p.log.Debugw("Published analysis event", "analysis_id", event.ID)
	return nil
}

// Close implements Publisher
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

// PublishAnalysisCompleted implements Publisher
func (NoopPublisher) PublishAnalysisCompleted(context.Context, AnalysisCompleted) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
