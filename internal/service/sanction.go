package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
)

// SanctionValidity is how long a sanction letter remains valid.
const SanctionValidity = 30 * 24 * time.Hour

// ReferenceNumber builds a sanction reference of the form
// TCL/PL/<customer id>/<yyyymmdd>.
func ReferenceNumber(customerID string, issued time.Time) string {
	return fmt.Sprintf("TCL/PL/%s/%s", customerID, issued.Format("20060102"))
}

// RequestSanction builds the sanction letter request for an approved loan
// and hands it to the renderer through the event bus.
func (c *Controller) RequestSanction(ctx context.Context, conversationID string) (*model.SanctionRequest, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := c.tracer.Start(ctx, "dialogue.request_sanction")
	defer span.End()

	unlock := c.store.Lock(conversationID)
	defer unlock()

	conv, err := c.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Stage != model.StageApproval {
		return nil, ErrNotApproved
	}
	if c.underwriter == nil {
		return nil, &ConfigurationError{Reason: "underwriter not configured"}
	}

	p := conv.Profile
	terms := c.underwriter.Terms()
	emi := underwriting.EMI(p.LoanAmount, terms.AnnualRatePercent, terms.TenureMonths)

	customerID := p.CustomerID
	if customerID == "" {
		customerID = conv.ID
	}
	issued := c.now()

	req := &model.SanctionRequest{
		ConversationID:  conv.ID,
		ReferenceNumber: ReferenceNumber(customerID, issued),
		CustomerID:      p.CustomerID,
		Name:            p.Name,
		Age:             p.Age,
		City:            p.City,
		Phone:           p.Phone,
		Email:           p.Email,
		LoanAmount:      p.LoanAmount,
		InterestRate:    terms.AnnualRatePercent.String(),
		TenureMonths:    terms.TenureMonths,
		EMI:             emi.StringFixed(2),
		TotalPayable:    emi.Mul(decimal.NewFromInt(int64(terms.TenureMonths))).StringFixed(2),
		CreditScore:     p.CreditScore,
		IssuedAt:        issued,
		ValidUntil:      issued.Add(SanctionValidity),
	}

	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.publisher.PublishSanction(pctx, req)
	cancel()
	c.published(string(model.EventTypeSanctionRequest), conv.ID, err)
	if err != nil {
		span.RecordError(err)
		return nil, &ExternalServiceError{Service: c.publisher.Name(), Err: err}
	}

	c.logger.Info("sanction requested",
		zap.String("conversation_id", conv.ID),
		zap.String("reference", req.ReferenceNumber),
	)
	c.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Type:           model.EventTypeSanctionRequest,
		Metadata:       map[string]any{"reference_number": req.ReferenceNumber},
		CreatedAt:      issued,
	})
	return req, nil
}
