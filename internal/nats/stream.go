package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the loan events stream.
	StreamName = "LOAN_EVENTS"

	// SubjectPrefix is the prefix for all loan subjects.
	SubjectPrefix = "loan"
)

// ConversationSubject returns the root subject of one conversation.
func ConversationSubject(conversationID string) string {
	return fmt.Sprintf("%s.conv.%s", SubjectPrefix, conversationID)
}

// MessageSubject returns the subject for a transcript message.
func MessageSubject(conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.msg.%s", ConversationSubject(conversationID), role)
}

// EventSubject returns the subject for a conversation event.
func EventSubject(conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.event.%s", ConversationSubject(conversationID), eventType)
}

// SanctionSubject returns the subject consumed by the sanction renderer.
func SanctionSubject(conversationID string) string {
	return fmt.Sprintf("%s.sanction", ConversationSubject(conversationID))
}

// DocumentSubject returns the subject the upload pipeline publishes
// document verification results on.
func DocumentSubject(conversationID string) string {
	return fmt.Sprintf("%s.documents.%s", SubjectPrefix, conversationID)
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the loan events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name: StreamName,
		Subjects: []string{
			SubjectPrefix + ".conv.>",
			SubjectPrefix + ".documents.>",
		},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Loan conversation transcripts, stage events, sanction requests and document results",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// RecordStats copies the stream state into the stream gauges.
func (m *StreamManager) RecordStats(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to look up stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream info: %w", err)
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	metrics.NATSStreamBytes.WithLabelValues(StreamName).Set(float64(info.State.Bytes))
	return nil
}

// Publisher publishes dialogue output to the loan events stream.
type Publisher struct {
	client *Client
}

// NewPublisher creates a JetStream publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Name implements service.EventPublisher.
func (p *Publisher) Name() string {
	return "nats"
}

// PublishMessage publishes a transcript message.
func (p *Publisher) PublishMessage(ctx context.Context, msg *model.Message) error {
	return p.publish(ctx, MessageSubject(msg.ConversationID, msg.Role), msg)
}

// PublishEvent publishes a conversation event.
func (p *Publisher) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	return p.publish(ctx, EventSubject(event.ConversationID, event.Type), event)
}

// PublishSanction publishes a sanction letter request.
func (p *Publisher) PublishSanction(ctx context.Context, req *model.SanctionRequest) error {
	return p.publish(ctx, SanctionSubject(req.ConversationID), req)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", subject, err)
	}
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
