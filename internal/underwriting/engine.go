package underwriting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/pkg/money"
)

// Decision is the outcome of an underwriting evaluation.
type Decision string

const (
	DecisionApproved           Decision = "approved"
	DecisionSalarySlipRequired Decision = "salary_slip_required"
	DecisionRejected           Decision = "rejected"
)

// Result is the transient underwriting outcome. It is folded into the
// profile and drives the next stage; it is not stored on its own.
type Result struct {
	Decision         Decision
	CreditScore      int
	PreApprovedLimit int64
	RequestedAmount  int64
	Reason           string
	InterestRate     decimal.Decimal
	TenureMonths     int
	EMI              decimal.Decimal
	MonthlyIncome    int64

	// Degraded is set when bureau data was unavailable and configured
	// defaults were used instead.
	Degraded bool
}

// Data renders the figures surfaced to the customer in a reply.
func (r Result) Data() map[string]any {
	data := map[string]any{
		"status":           string(r.Decision),
		"credit_score":     r.CreditScore,
		"requested_amount": r.RequestedAmount,
	}
	if r.PreApprovedLimit > 0 {
		data["pre_approved_limit"] = r.PreApprovedLimit
	}
	if r.Reason != "" {
		data["reason"] = r.Reason
	}
	if !r.EMI.IsZero() {
		data["emi"] = r.EMI.StringFixed(2)
		data["interest_rate"] = r.InterestRate.String()
		data["tenure_months"] = r.TenureMonths
	}
	if r.MonthlyIncome > 0 {
		data["monthly_income"] = r.MonthlyIncome
	}
	return data
}

// Bureau supplies credit data for a verified customer.
type Bureau interface {
	CreditScore(ctx context.Context, customerID string) (int, error)
	PreApprovedLimit(ctx context.Context, customerID string) (int64, error)
}

// Terms are the lending parameters applied by the engine.
type Terms struct {
	AnnualRatePercent decimal.Decimal
	TenureMonths      int
	MinCreditScore    int
	// MaxEMIRatio is the largest share of monthly income the EMI may take.
	MaxEMIRatio decimal.Decimal
	// Fallback values when the bureau cannot be reached.
	DefaultCreditScore int
	DefaultLimit       int64
}

// DefaultTerms returns 12% p.a. over 36 months, a 700 score floor and a
// 50% EMI-to-income cap.
func DefaultTerms() Terms {
	return Terms{
		AnnualRatePercent:  decimal.NewFromInt(12),
		TenureMonths:       36,
		MinCreditScore:     700,
		MaxEMIRatio:        decimal.RequireFromString("0.5"),
		DefaultCreditScore: 750,
		DefaultLimit:       500_000,
	}
}

// Engine is the rule-based underwriting collaborator.
type Engine struct {
	bureau Bureau
	terms  Terms
}

// NewEngine creates an engine over the given bureau.
func NewEngine(bureau Bureau, terms Terms) *Engine {
	return &Engine{bureau: bureau, terms: terms}
}

// Terms returns the lending parameters in use.
func (e *Engine) Terms() Terms {
	return e.terms
}

// Evaluate runs the decision tree:
//
//	score < floor            -> rejected
//	amount <= limit          -> approved
//	amount <= 2 * limit      -> salary slip required
//	otherwise                -> rejected
func (e *Engine) Evaluate(ctx context.Context, p model.Profile) Result {
	res := Result{
		RequestedAmount: p.LoanAmount,
		InterestRate:    e.terms.AnnualRatePercent,
		TenureMonths:    e.terms.TenureMonths,
	}

	score, err := e.bureau.CreditScore(ctx, p.CustomerID)
	if err != nil {
		score = e.terms.DefaultCreditScore
		res.Degraded = true
	}
	res.CreditScore = score

	if score < e.terms.MinCreditScore {
		res.Decision = DecisionRejected
		res.Reason = fmt.Sprintf("Credit score (%d) is below minimum requirement (%d)", score, e.terms.MinCreditScore)
		return res
	}

	limit, err := e.bureau.PreApprovedLimit(ctx, p.CustomerID)
	if err != nil {
		limit = e.terms.DefaultLimit
		res.Degraded = true
	}
	res.PreApprovedLimit = limit

	switch {
	case p.LoanAmount <= limit:
		res.Decision = DecisionApproved
		res.EMI = EMI(p.LoanAmount, e.terms.AnnualRatePercent, e.terms.TenureMonths)
	case p.LoanAmount <= 2*limit:
		res.Decision = DecisionSalarySlipRequired
	default:
		res.Decision = DecisionRejected
		res.Reason = fmt.Sprintf("Loan amount exceeds maximum limit (%s)", money.Rupees(2*limit))
	}
	return res
}

// Recheck is the document-based second look for a salary slip case: the loan
// is approved only if the EMI fits within MaxEMIRatio of monthly income.
func (e *Engine) Recheck(p model.Profile) Result {
	emi := EMI(p.LoanAmount, e.terms.AnnualRatePercent, e.terms.TenureMonths)
	res := Result{
		CreditScore:      p.CreditScore,
		PreApprovedLimit: p.PreApprovedLimit,
		RequestedAmount:  p.LoanAmount,
		InterestRate:     e.terms.AnnualRatePercent,
		TenureMonths:     e.terms.TenureMonths,
		EMI:              emi,
		MonthlyIncome:    p.MonthlyIncome,
	}

	ceiling := decimal.NewFromInt(p.MonthlyIncome).Mul(e.terms.MaxEMIRatio)
	if p.MonthlyIncome > 0 && emi.LessThanOrEqual(ceiling) {
		res.Decision = DecisionApproved
		return res
	}

	res.Decision = DecisionRejected
	res.Reason = fmt.Sprintf("EMI (%s) exceeds %s%% of monthly income",
		money.RupeesPaise(emi), e.terms.MaxEMIRatio.Mul(hundred).String())
	return res
}
