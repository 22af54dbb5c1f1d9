package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/service"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

// DocumentConsumerName is the durable consumer for document results.
const DocumentConsumerName = "loan-document-results"

// DocumentHandler applies a document verification result to a conversation.
type DocumentHandler interface {
	ApplyDocumentEvent(ctx context.Context, event model.DocumentEvent) (*model.Reply, error)
}

// DocumentConsumer feeds document verification results from the stream to
// the dialogue.
type DocumentConsumer struct {
	client  *Client
	handler DocumentHandler
	logger  *logger.Logger
	cc      jetstream.ConsumeContext
}

// NewDocumentConsumer creates a consumer; call Start to begin consuming.
func NewDocumentConsumer(client *Client, handler DocumentHandler, log *logger.Logger) *DocumentConsumer {
	return &DocumentConsumer{
		client:  client,
		handler: handler,
		logger:  log.Named("documents"),
	}
}

// Start creates the durable consumer and begins delivery.
func (d *DocumentConsumer) Start(ctx context.Context) error {
	consumer, err := d.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       DocumentConsumerName,
		Description:   "Applies salary slip verification results",
		FilterSubject: SubjectPrefix + ".documents.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create document consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		d.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start document consumer: %w", err)
	}
	d.cc = cc
	return nil
}

// Stop ends delivery.
func (d *DocumentConsumer) Stop() {
	if d.cc != nil {
		d.cc.Stop()
	}
}

func (d *DocumentConsumer) handle(ctx context.Context, msg jetstream.Msg) {
	var event model.DocumentEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil || event.ConversationID == "" {
		d.logger.Warn("dropping malformed document event",
			zap.String("subject", msg.Subject()),
			zap.Error(err),
		)
		d.settle(msg, msg.Term())
		return
	}

	reply, err := d.handler.ApplyDocumentEvent(ctx, event)
	switch {
	case err == nil:
		d.logger.Info("document event applied",
			zap.String("conversation_id", event.ConversationID),
			zap.String("stage", string(reply.Stage)),
			zap.String("status", string(reply.Status)),
		)
		d.settle(msg, msg.Ack())
	case permanent(err):
		d.logger.Warn("document event rejected",
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
		d.settle(msg, msg.Term())
	default:
		d.logger.Error("document event failed, will redeliver",
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
		d.settle(msg, msg.Nak())
	}
}

func (d *DocumentConsumer) settle(msg jetstream.Msg, err error) {
	if err != nil {
		d.logger.Warn("failed to acknowledge document event",
			zap.String("subject", msg.Subject()),
			zap.Error(err),
		)
	}
}

// permanent reports errors that redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, service.ErrConversationNotFound) ||
		errors.Is(err, service.ErrConversationFailed) ||
		errors.Is(err, service.ErrNotAwaitingDocuments)
}
