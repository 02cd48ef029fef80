package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON messages, one writer per topic.
type Producer struct {
	mu        sync.Mutex
	writers   map[string]MessageWriter
	brokers   []string
	newWriter func(topic string) MessageWriter
	log       *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers      []string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// NewProducer creates a new Kafka producer. No connection is made until the first publish.
func NewProducer(cfg ProducerConfig) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	p := &Producer{
		writers: make(map[string]MessageWriter),
		brokers: cfg.Brokers,
		log:     logger.Get().With("component", "kafka_producer"),
	}
	p.newWriter = func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(p.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           batchTimeout,
			WriteTimeout:           writeTimeout,
			MaxAttempts:            maxAttempts,
			AllowAutoTopicCreation: true,
		}
	}
	return p
}

// NewProducerWithWriter builds a producer around a caller-supplied writer factory.
func NewProducerWithWriter(newWriter func(topic string) MessageWriter) *Producer {
	return &Producer{
		writers:   make(map[string]MessageWriter),
		newWriter: newWriter,
		log:       logger.Get().With("component", "kafka_producer"),
	}
}

func (p *Producer) getWriter(topic string) MessageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Publish JSON-encodes event and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal kafka event")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugf("Published to %s: %s", topic, key)
	return nil
}

// Close closes all writers, returning the first failure.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs.Add(errors.Wrapf(err, "close writer for %s", topic))
		}
	}
	p.writers = make(map[string]MessageWriter)
	return errs.ToError()
}
