package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
	"github.com/capitalize-ai/loan-assistant/pkg/metrics"
)

// incomeKeys are the document fields read as net monthly income, in order
// of preference.
var incomeKeys = []string{"monthly_income", "net_salary", "salary"}

// ApplyDocumentEvent folds a processed salary slip into a conversation
// waiting in salary_verification and runs the EMI-to-income recheck.
func (c *Controller) ApplyDocumentEvent(ctx context.Context, event model.DocumentEvent) (*model.Reply, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := c.tracer.Start(ctx, "dialogue.apply_document",
		trace.WithAttributes(
			attribute.String("conversation.id", event.ConversationID),
			attribute.Bool("document.verified", event.Verified),
		))
	defer span.End()

	unlock := c.store.Lock(event.ConversationID)
	defer unlock()

	conv, err := c.Conversation(ctx, event.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.Failed {
		return nil, ErrConversationFailed
	}
	if conv.Stage != model.StageSalaryVerification {
		return nil, fmt.Errorf("%w: stage is %s", ErrNotAwaitingDocuments, conv.Stage)
	}

	c.logger.Info("document event received",
		zap.String("conversation_id", conv.ID),
		zap.Bool("verified", event.Verified),
	)

	out, err := c.recheck(conv, event)
	if err != nil {
		return c.fail(ctx, span, conv, nil, err), nil
	}
	reply := c.commit(ctx, span, conv, nil, out)

	if event.Verified {
		c.publishEvent(ctx, &model.ConversationEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			Type:           model.EventTypeDocumentVerified,
			Metadata:       map[string]any{"status": reply.Status, "action": reply.Action},
			CreatedAt:      c.now(),
		})
	}
	return reply, nil
}

func (c *Controller) recheck(conv model.Conversation, event model.DocumentEvent) (outcome, error) {
	if !event.Verified {
		return stay(model.StageSalaryVerification, model.ActionUploadSalarySlip,
			"We could not verify the document you uploaded. Please upload a clear copy of your latest salary slip."), nil
	}

	delta := model.Profile{
		DocumentsVerified: true,
		Employer:          strings.TrimSpace(event.Fields["employer"]),
		EmploymentType:    strings.TrimSpace(event.Fields["employment_type"]),
		MonthlyIncome:     c.documentIncome(event.Fields),
	}

	p := conv.Profile
	p.Merge(delta)
	if p.MonthlyIncome == 0 {
		return outcome{
			next:   model.StageSalaryVerification,
			delta:  delta,
			action: model.ActionWaitingForUpload,
			message: "Your document has been verified, but we couldn't read your monthly income from it. " +
				"Please upload a salary slip that shows your net monthly salary.",
			data: map[string]any{"documents_verified": true},
		}, nil
	}

	if c.underwriter == nil {
		return outcome{}, &ConfigurationError{Reason: "underwriter not configured"}
	}
	res := c.underwriter.Recheck(p)
	metrics.RecordDecision(string(res.Decision), false)

	if res.Decision == underwriting.DecisionApproved {
		return c.approvedOutcome(p, res, delta), nil
	}
	return rejectedOutcome(p, res, delta), nil
}

func (c *Controller) documentIncome(fields map[string]string) int64 {
	for _, key := range incomeKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		v, ok := extract.Extract(extract.FieldMonthlyIncome, raw)
		if !ok || c.policy.Validate(v) != nil {
			continue
		}
		return v.Number
	}
	return 0
}
