// Package service implements the loan dialogue: the stage controller, its
// conversation store and the stage handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/kyc"
	"github.com/capitalize-ai/loan-assistant/internal/llm"
	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/policy"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
	"github.com/capitalize-ai/loan-assistant/pkg/metrics"
)

const genericFailure = "Sorry, something went wrong on our side. Please try again later."

// Underwriter is the credit decision collaborator.
type Underwriter interface {
	Evaluate(ctx context.Context, p model.Profile) underwriting.Result
	Recheck(p model.Profile) underwriting.Result
	Terms() underwriting.Terms
}

// Options wires a Controller. Verifier and Underwriter are required for a
// conversation to get past the stages that use them.
type Options struct {
	Store       *Store
	Interpreter llm.Interpreter
	Policy      policy.Policy
	Verifier    kyc.Verifier
	Underwriter Underwriter
	Publisher   EventPublisher
	// Timeout bounds every collaborator and event bus call.
	Timeout time.Duration
	Logger  *logger.Logger
	Now     func() time.Time
}

// Controller is the stage controller. It serializes work per conversation
// and commits each handler outcome atomically.
type Controller struct {
	store       *Store
	interpreter llm.Interpreter
	policy      policy.Policy
	verifier    kyc.Verifier
	underwriter Underwriter
	publisher   EventPublisher
	timeout     time.Duration
	logger      *logger.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewController creates a controller, filling unset options with defaults.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}
	if opts.Store == nil {
		opts.Store = NewStore(nil, opts.Logger)
	}
	if opts.Interpreter == nil {
		opts.Interpreter = llm.RuleInterpreter{}
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == (policy.Policy{}) {
		opts.Policy = policy.Default()
	}

	return &Controller{
		store:       opts.Store,
		interpreter: opts.Interpreter,
		policy:      opts.Policy,
		verifier:    opts.Verifier,
		underwriter: opts.Underwriter,
		publisher:   opts.Publisher,
		timeout:     opts.Timeout,
		logger:      opts.Logger.Named("dialogue"),
		tracer:      otel.Tracer("github.com/capitalize-ai/loan-assistant/internal/service"),
		now:         opts.Now,
	}
}

// InterpreterMode reports which interpreter was selected at startup.
func (c *Controller) InterpreterMode() string {
	return c.interpreter.Mode()
}

// outcome is what a stage handler emits; the controller validates the edge
// and commits it.
type outcome struct {
	next    model.Stage
	delta   model.Profile
	message string
	action  model.Action
	data    map[string]any
	reason  string
}

// Advance handles one inbound utterance. An empty conversationID starts a
// new conversation. Once a handler has started, every path produces a
// reply; an error is returned only when ctx is already done on entry.
func (c *Controller) Advance(ctx context.Context, conversationID, utterance string) (*model.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		conversationID = uuid.Must(uuid.NewV7()).String()
	}
	// Handlers run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	ctx, span := c.tracer.Start(ctx, "dialogue.advance",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	unlock := c.store.Lock(conversationID)
	defer unlock()

	conv, found, err := c.store.Get(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("failed to load conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return &model.Reply{
			ConversationID: conversationID,
			Message:        genericFailure,
			Action:         model.ActionError,
			Data:           map[string]any{},
		}, nil
	}
	if !found {
		conv = c.newConversation(conversationID)
		metrics.ConversationsTotal.Inc()
		c.logger.WithConversation(conv.ID, logger.CorrelationID(ctx)).Info("conversation created")
	}
	span.SetAttributes(attribute.String("conversation.stage", string(conv.Stage)))

	userMsg := c.message(conv.ID, model.RoleUser, utterance, model.ActionNone)

	if conv.Failed {
		return c.halted(ctx, conv, userMsg), nil
	}

	out, err := c.dispatch(ctx, conv, utterance)
	if err != nil {
		return c.fail(ctx, span, conv, []model.Message{userMsg}, err), nil
	}
	return c.commit(ctx, span, conv, []model.Message{userMsg}, out), nil
}

// Conversation returns a snapshot of one conversation.
func (c *Controller) Conversation(ctx context.Context, id string) (model.Conversation, error) {
	conv, found, err := c.store.Get(ctx, id)
	if err != nil {
		return model.Conversation{}, &ExternalServiceError{Service: "snapshot store", Err: err}
	}
	if !found {
		return model.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Conversations lists conversation summaries, newest first.
func (c *Controller) Conversations(limit, offset int) model.ListConversationsResponse {
	return c.store.List(limit, offset)
}

// Stats aggregates conversations by status.
func (c *Controller) Stats() model.Stats {
	return c.store.Stats()
}

func (c *Controller) newConversation(id string) model.Conversation {
	now := c.now()
	return model.Conversation{
		ID:        id,
		Stage:     model.StageGreeting,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// dispatch runs exactly one handler for the current stage.
func (c *Controller) dispatch(ctx context.Context, conv model.Conversation, utterance string) (outcome, error) {
	switch conv.Stage {
	case model.StageGreeting:
		return c.greeting(ctx, conv, utterance)
	case model.StageQualification:
		return c.qualification(ctx, conv, utterance)
	case model.StagePersonalDetails:
		return c.personalDetails(ctx, conv, utterance)
	case model.StageVerification:
		return c.verification(ctx, conv, utterance)
	case model.StageUnderwriting:
		return c.underwrite(ctx, conv)
	case model.StageSalaryVerification:
		return c.salaryVerification(ctx, conv)
	case model.StageApproval:
		return c.approval(ctx, conv)
	case model.StageRejected:
		return c.rejected(ctx, conv)
	default:
		return outcome{}, &ConfigurationError{Reason: fmt.Sprintf("unknown stage %q", conv.Stage)}
	}
}

// commit checks the edge, folds the outcome into conv and stores it.
func (c *Controller) commit(ctx context.Context, span trace.Span, conv model.Conversation, pending []model.Message, out outcome) *model.Reply {
	docs := conv.Profile.DocumentsVerified || out.delta.DocumentsVerified
	status, err := model.DeriveStatus(conv.Status, conv.Stage, out.next, docs)
	if err != nil {
		return c.fail(ctx, span, conv, pending, &ConfigurationError{Reason: err.Error()})
	}

	from := conv.Stage
	conv.Profile.Merge(out.delta)
	conv.Stage = out.next
	conv.Status = status

	assistant := c.message(conv.ID, model.RoleAssistant, out.message, out.action)
	conv.Messages = append(conv.Messages, pending...)
	conv.Messages = append(conv.Messages, assistant)
	conv.UpdatedAt = assistant.CreatedAt

	c.store.Commit(ctx, conv)

	metrics.RecordTransition(string(from), string(conv.Stage))
	span.SetAttributes(
		attribute.String("conversation.next_stage", string(conv.Stage)),
		attribute.String("conversation.action", string(out.action)),
	)
	if from != conv.Stage {
		c.logger.WithConversation(conv.ID, logger.CorrelationID(ctx)).Info("stage changed",
			zap.String("from", string(from)),
			zap.String("to", string(conv.Stage)),
			zap.String("status", string(conv.Status)),
		)
	}

	c.publishTurn(ctx, conv, from, append(pending, assistant), out)
	return c.reply(conv, out.message, out.action, out.data)
}

// fail records a handler error. Configuration errors halt the conversation;
// anything else leaves the stage untouched.
func (c *Controller) fail(ctx context.Context, span trace.Span, conv model.Conversation, pending []model.Message, err error) *model.Reply {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		conv.Failed = true
		metrics.ConversationFailures.Inc()
		c.logger.WithConversation(conv.ID, logger.CorrelationID(ctx)).Error("conversation halted",
			zap.String("stage", string(conv.Stage)),
			zap.Error(err),
		)
	} else {
		c.logger.WithConversation(conv.ID, logger.CorrelationID(ctx)).Warn("stage handler failed",
			zap.String("stage", string(conv.Stage)),
			zap.Error(err),
		)
	}

	assistant := c.message(conv.ID, model.RoleAssistant, genericFailure, model.ActionError)
	conv.Messages = append(conv.Messages, pending...)
	conv.Messages = append(conv.Messages, assistant)
	conv.UpdatedAt = assistant.CreatedAt
	c.store.Commit(ctx, conv)

	for i := range pending {
		c.publishMessage(ctx, &pending[i])
	}
	c.publishMessage(ctx, &assistant)
	c.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Type:           model.EventTypeError,
		Reason:         err.Error(),
		CreatedAt:      assistant.CreatedAt,
	})

	return c.reply(conv, genericFailure, model.ActionError, nil)
}

// halted records a message sent to a failed conversation. The transcript
// keeps it; the stage and profile do not move.
func (c *Controller) halted(ctx context.Context, conv model.Conversation, userMsg model.Message) *model.Reply {
	assistant := c.message(conv.ID, model.RoleAssistant, genericFailure, model.ActionError)
	conv.Messages = append(conv.Messages, userMsg, assistant)
	conv.UpdatedAt = assistant.CreatedAt
	c.store.Commit(ctx, conv)

	c.publishMessage(ctx, &userMsg)
	c.publishMessage(ctx, &assistant)
	return c.reply(conv, genericFailure, model.ActionError, nil)
}

func (c *Controller) reply(conv model.Conversation, message string, action model.Action, data map[string]any) *model.Reply {
	if data == nil {
		data = map[string]any{}
	}
	return &model.Reply{
		ConversationID: conv.ID,
		Message:        message,
		Action:         action,
		Data:           data,
		Stage:          conv.Stage,
		Status:         conv.Status,
	}
}

func (c *Controller) message(conversationID string, role model.Role, content string, action model.Action) model.Message {
	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	return model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Action:         action,
		CreatedAt:      c.now(),
	}
}

func (c *Controller) publishTurn(ctx context.Context, conv model.Conversation, from model.Stage, msgs []model.Message, out outcome) {
	for i := range msgs {
		c.publishMessage(ctx, &msgs[i])
	}
	if from == conv.Stage {
		return
	}
	c.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Type:           model.EventTypeStageChanged,
		Reason:         out.reason,
		Metadata: map[string]any{
			"from":   from,
			"to":     conv.Stage,
			"status": conv.Status,
			"action": out.action,
		},
		CreatedAt: conv.UpdatedAt,
	})
}

func (c *Controller) publishMessage(ctx context.Context, msg *model.Message) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.publisher.PublishMessage(ctx, msg)
	c.published("message", msg.ConversationID, err)
}

func (c *Controller) publishEvent(ctx context.Context, event *model.ConversationEvent) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.publisher.PublishEvent(ctx, event)
	c.published(string(event.Type), event.ConversationID, err)
}

func (c *Controller) published(kind, conversationID string, err error) {
	metrics.RecordPublish(c.publisher.Name(), kind, err)
	if err != nil {
		c.logger.Warn("failed to publish",
			zap.String("bus", c.publisher.Name()),
			zap.String("kind", kind),
			zap.String("conversation_id", conversationID),
			zap.Error(&ExternalServiceError{Service: c.publisher.Name(), Err: err}),
		)
	}
}
