package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/policy"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
	"github.com/capitalize-ai/loan-assistant/pkg/metrics"
	"github.com/capitalize-ai/loan-assistant/pkg/money"
)

const amountPrompt = "What loan amount are you looking for? (e.g., 2 lakhs, 5 lakhs, 500000)"

// stay keeps the conversation in its stage with a reprompt.
func stay(stage model.Stage, action model.Action, message string) outcome {
	return outcome{next: stage, action: action, message: message}
}

// capture extracts and validates one field.
func (c *Controller) capture(field extract.Field, utterance string) (extract.Value, error) {
	v, ok := extract.Extract(field, utterance)
	if !ok {
		return v, &ExtractionError{Field: field}
	}
	if err := c.policy.Validate(v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *Controller) greeting(ctx context.Context, _ model.Conversation, utterance string) (outcome, error) {
	if !c.interpreter.Interested(ctx, utterance) {
		return stay(model.StageGreeting, model.ActionGreeting, c.interpreter.Greet(ctx, utterance)), nil
	}
	return outcome{
		next:    model.StageQualification,
		action:  model.ActionMoveToQualification,
		message: "Wonderful! I'd be glad to help you with a personal loan.\n\n" + amountPrompt,
	}, nil
}

func (c *Controller) qualification(ctx context.Context, _ model.Conversation, utterance string) (outcome, error) {
	n, ok := c.interpreter.LoanAmount(ctx, utterance)
	if !ok {
		return stay(model.StageQualification, model.ActionCollectAmount, policy.Reprompt(extract.FieldLoanAmount)), nil
	}
	if err := c.policy.Validate(extract.Value{Field: extract.FieldLoanAmount, Text: utterance, Number: n}); err != nil {
		return stay(model.StageQualification, model.ActionCollectAmount, reprompt(err)), nil
	}
	return outcome{
		next:    model.StagePersonalDetails,
		delta:   model.Profile{LoanAmount: n},
		action:  model.ActionMoveToPersonalDetails,
		message: fmt.Sprintf("Great! A loan of %s noted. Now, what's your full name?", money.Rupees(n)),
		data:    map[string]any{"loan_amount": n},
	}, nil
}

// personalDetails collects name, age and city in that order.
func (c *Controller) personalDetails(_ context.Context, conv model.Conversation, utterance string) (outcome, error) {
	p := conv.Profile
	switch {
	case p.Name == "":
		v, err := c.capture(extract.FieldName, utterance)
		if err != nil {
			return stay(model.StagePersonalDetails, model.ActionCollectName, reprompt(err)), nil
		}
		return outcome{
			next:    model.StagePersonalDetails,
			delta:   model.Profile{Name: v.Text},
			action:  model.ActionCollectAge,
			message: fmt.Sprintf("Nice to meet you, %s! What's your age?", v.Text),
			data:    map[string]any{"name": v.Text},
		}, nil

	case p.Age == 0:
		v, err := c.capture(extract.FieldAge, utterance)
		if err != nil {
			return stay(model.StagePersonalDetails, model.ActionCollectAge, reprompt(err)), nil
		}
		return outcome{
			next:    model.StagePersonalDetails,
			delta:   model.Profile{Age: int(v.Number)},
			action:  model.ActionCollectCity,
			message: "Thank you! Which city are you based in?",
			data:    map[string]any{"age": v.Number},
		}, nil

	default:
		v, err := c.capture(extract.FieldCity, utterance)
		if err != nil {
			return stay(model.StagePersonalDetails, model.ActionCollectCity, reprompt(err)), nil
		}
		return outcome{
			next:    model.StageVerification,
			delta:   model.Profile{City: v.Text},
			action:  model.ActionMoveToVerification,
			message: "Thanks! Now let's verify your identity. Please share your 10-digit mobile number.",
			data:    map[string]any{"city": v.Text},
		}, nil
	}
}

// verification collects phone and address, then asks the KYC collaborator.
// A verified record without an email keeps the stage until one is given.
func (c *Controller) verification(ctx context.Context, conv model.Conversation, utterance string) (outcome, error) {
	p := conv.Profile

	if p.Verified {
		v, err := c.capture(extract.FieldEmail, utterance)
		if err != nil {
			return stay(model.StageVerification, model.ActionCollectEmail, reprompt(err)), nil
		}
		p.Merge(model.Profile{Email: v.Text})
		return verified(p, model.Profile{Email: v.Text}), nil
	}

	if p.Phone == "" {
		v, err := c.capture(extract.FieldPhone, utterance)
		if err != nil {
			return stay(model.StageVerification, model.ActionCollectPhone, reprompt(err)), nil
		}
		return outcome{
			next:    model.StageVerification,
			delta:   model.Profile{Phone: v.Text},
			action:  model.ActionCollectAddress,
			message: "Thank you! Please share your current residential address.",
			data:    map[string]any{"phone": v.Text},
		}, nil
	}

	var delta model.Profile
	if p.Address == "" {
		v, err := c.capture(extract.FieldAddress, utterance)
		if err != nil {
			return stay(model.StageVerification, model.ActionCollectAddress, reprompt(err)), nil
		}
		delta.Address = v.Text
	}

	if c.verifier == nil {
		return outcome{}, &ConfigurationError{Reason: "kyc verifier not configured"}
	}

	p.Merge(delta)
	vctx, cancel := context.WithTimeout(ctx, c.timeout)
	res, err := c.verifier.Verify(vctx, p)
	cancel()
	if err != nil {
		c.logger.Warn("kyc verification failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(&ExternalServiceError{Service: "kyc", Err: err}),
		)
		return outcome{
			next:    model.StageVerification,
			delta:   delta,
			action:  model.ActionRetryVerification,
			message: "We couldn't reach our verification service just now. Please reply with anything to try again.",
		}, nil
	}

	if !res.Verified {
		return outcome{
			next:   model.StageRejected,
			delta:  delta,
			action: model.ActionVerificationFailed,
			message: "We're sorry, we could not verify your identity. The name and mobile number you provided " +
				"do not match our records, so we cannot proceed with this application.",
			data:   map[string]any{"verified": false},
			reason: "kyc record not found",
		}, nil
	}

	delta.Merge(res.Delta())
	p.Merge(res.Delta())
	if p.Email == "" {
		return outcome{
			next:    model.StageVerification,
			delta:   delta,
			action:  model.ActionCollectEmail,
			message: "Your identity has been verified. Please share your email address so we can send your loan documents.",
			data:    map[string]any{"verified": true, "customer_id": p.CustomerID},
		}, nil
	}
	return verified(p, delta), nil
}

func verified(p, delta model.Profile) outcome {
	return outcome{
		next:   model.StageUnderwriting,
		delta:  delta,
		action: model.ActionStartUnderwriting,
		message: fmt.Sprintf("Thank you, %s! Your identity has been verified (Customer ID: %s). "+
			"I'm now checking your credit eligibility.", p.Name, p.CustomerID),
		data: map[string]any{"verified": true, "customer_id": p.CustomerID, "email": p.Email},
	}
}

func (c *Controller) underwrite(ctx context.Context, conv model.Conversation) (outcome, error) {
	if c.underwriter == nil {
		return outcome{}, &ConfigurationError{Reason: "underwriter not configured"}
	}

	uctx, cancel := context.WithTimeout(ctx, c.timeout)
	res := c.underwriter.Evaluate(uctx, conv.Profile)
	cancel()

	metrics.RecordDecision(string(res.Decision), res.Degraded)
	if res.Degraded {
		c.logger.Warn("credit bureau unavailable, used default figures",
			zap.String("conversation_id", conv.ID),
		)
	}

	p := conv.Profile
	delta := model.Profile{CreditScore: res.CreditScore, PreApprovedLimit: res.PreApprovedLimit}

	switch res.Decision {
	case underwriting.DecisionApproved:
		return c.approvedOutcome(p, res, delta), nil
	case underwriting.DecisionSalarySlipRequired:
		return outcome{
			next:   model.StageSalaryVerification,
			delta:  delta,
			action: model.ActionUploadSalarySlip,
			message: fmt.Sprintf("Your requested amount of %s is above your pre-approved limit of %s. "+
				"To proceed, please upload your latest salary slip.",
				money.Rupees(res.RequestedAmount), money.Rupees(res.PreApprovedLimit)),
			data:   res.Data(),
			reason: string(res.Decision),
		}, nil
	case underwriting.DecisionRejected:
		return rejectedOutcome(p, res, delta), nil
	default:
		return outcome{}, &ConfigurationError{Reason: fmt.Sprintf("unknown underwriting decision %q", res.Decision)}
	}
}

func (c *Controller) approvedOutcome(p model.Profile, res underwriting.Result, delta model.Profile) outcome {
	data := res.Data()
	data["approved_amount"] = res.RequestedAmount
	data["term_options"] = underwriting.TermOptions(res.RequestedAmount, res.InterestRate, underwriting.DefaultTenures)

	return outcome{
		next:   model.StageApproval,
		delta:  delta,
		action: model.ActionLoanApproved,
		message: fmt.Sprintf("Congratulations %s! Your personal loan of %s has been approved.\n\n"+
			"Interest rate: %s%% p.a.\nTenure: %d months\nMonthly EMI: %s",
			p.Name, money.Rupees(res.RequestedAmount), res.InterestRate.String(),
			res.TenureMonths, money.RupeesPaise(res.EMI)),
		data:   data,
		reason: string(res.Decision),
	}
}

func rejectedOutcome(p model.Profile, res underwriting.Result, delta model.Profile) outcome {
	return outcome{
		next:    model.StageRejected,
		delta:   delta,
		action:  model.ActionLoanRejected,
		message: fmt.Sprintf("We're sorry %s, we cannot approve your loan application. %s.", p.Name, res.Reason),
		data:    res.Data(),
		reason:  res.Reason,
	}
}

// salaryVerification waits for the document event; conversational input is
// not interpreted here.
func (c *Controller) salaryVerification(_ context.Context, conv model.Conversation) (outcome, error) {
	return outcome{
		next:    model.StageSalaryVerification,
		action:  model.ActionWaitingForUpload,
		message: "We're waiting for your salary slip. Please upload it using the upload button to continue your application.",
		data:    map[string]any{"documents_verified": conv.Profile.DocumentsVerified},
	}, nil
}

func (c *Controller) approval(_ context.Context, conv model.Conversation) (outcome, error) {
	return outcome{
		next:   model.StageApproval,
		action: model.ActionGenerateSanction,
		message: fmt.Sprintf("Your loan of %s has been approved. You can now download your sanction letter.",
			money.Rupees(conv.Profile.LoanAmount)),
		data: map[string]any{"loan_amount": conv.Profile.LoanAmount},
	}, nil
}

func (c *Controller) rejected(_ context.Context, _ model.Conversation) (outcome, error) {
	return stay(model.StageRejected, model.ActionApplicationClosed,
		"This application has been closed. Please start a new conversation if you'd like to apply again."), nil
}
