// Package kafka publishes dialogue output to Kafka topics as an alternative
// to the NATS event stream.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

// Config holds producer settings.
type Config struct {
	Brokers     []string
	TopicPrefix string
}

// Topic suffixes under Config.TopicPrefix.
const (
	TopicMessages  = "messages"
	TopicEvents    = "events"
	TopicSanctions = "sanctions"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes transcript messages, events and sanction requests to
// one topic each, keyed by conversation id so a conversation stays ordered
// within its partition.
type Publisher struct {
	mu        sync.Mutex
	writers   map[string]writer
	prefix    string
	newWriter func(topic string) writer
}

// NewPublisher creates a publisher. Writers are created lazily per topic.
func NewPublisher(cfg Config) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "loan"
	}
	brokers := cfg.Brokers
	return &Publisher{
		writers: make(map[string]writer),
		prefix:  prefix,
		newWriter: func(topic string) writer {
			return &kafkago.Writer{
				Addr:                   kafkago.TCP(brokers...),
				Topic:                  topic,
				Balancer:               &kafkago.Hash{},
				BatchTimeout:           10 * time.Millisecond,
				RequiredAcks:           kafkago.RequireAll,
				AllowAutoTopicCreation: true,
			}
		},
	}
}

// Name implements service.EventPublisher.
func (p *Publisher) Name() string {
	return "kafka"
}

// Topic returns the full topic name for a suffix.
func (p *Publisher) Topic(suffix string) string {
	return p.prefix + "." + suffix
}

// PublishMessage publishes a transcript message.
func (p *Publisher) PublishMessage(ctx context.Context, msg *model.Message) error {
	return p.publish(ctx, TopicMessages, msg.ConversationID, string(msg.Role), msg)
}

// PublishEvent publishes a conversation event.
func (p *Publisher) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	return p.publish(ctx, TopicEvents, event.ConversationID, string(event.Type), event)
}

// PublishSanction publishes a sanction letter request.
func (p *Publisher) PublishSanction(ctx context.Context, req *model.SanctionRequest) error {
	return p.publish(ctx, TopicSanctions, req.ConversationID, string(model.EventTypeSanctionRequest), req)
}

func (p *Publisher) publish(ctx context.Context, suffix, key, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	topic := p.Topic(suffix)
	err = p.writer(topic).WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event_type", Value: []byte(kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Close closes all writers.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing writer for topic %s: %w", topic, err)
		}
	}
	p.writers = make(map[string]writer)
	return firstErr
}

func (p *Publisher) writer(topic string) writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}
