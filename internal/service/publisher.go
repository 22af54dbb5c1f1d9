package service

import (
	"context"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

// EventPublisher ships transcript messages, conversation events and
// sanction requests to downstream consumers.
type EventPublisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) error
	PublishEvent(ctx context.Context, event *model.ConversationEvent) error
	PublishSanction(ctx context.Context, req *model.SanctionRequest) error
	// Name identifies the bus in logs and metrics.
	Name() string
}

// NopPublisher drops everything. It is used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, *model.Message) error { return nil }
func (NopPublisher) PublishEvent(context.Context, *model.ConversationEvent) error { return nil }
func (NopPublisher) PublishSanction(context.Context, *model.SanctionRequest) error { return nil }
func (NopPublisher) Name() string { return "none" }
