package underwriting_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
)

func TestEMI_MatchesClosedForm(t *testing.T) {
	const principal = 500_000
	rate := decimal.NewFromInt(12)
	tenure := 36

	emi := underwriting.EMI(principal, rate, tenure)

	r := 12.0 / 100 / 12
	f := math.Pow(1+r, float64(tenure))
	want := math.Round(principal*r*f/(f-1)*100) / 100

	assert.Equal(t, "16607.15", emi.StringFixed(2))
	assert.InDelta(t, want, emi.InexactFloat64(), 0.001)
	assert.True(t, emi.Mul(decimal.NewFromInt(int64(tenure))).GreaterThanOrEqual(decimal.NewFromInt(principal)),
		"total repaid must cover principal")
}

func TestEMI_EdgeCases(t *testing.T) {
	assert.True(t, underwriting.EMI(120_000, decimal.Zero, 12).Equal(decimal.NewFromInt(10_000)))
	assert.True(t, underwriting.EMI(0, decimal.NewFromInt(12), 12).IsZero())
	assert.True(t, underwriting.EMI(100_000, decimal.NewFromInt(12), 0).IsZero())
}

func TestTermOptions(t *testing.T) {
	opts := underwriting.TermOptions(500_000, decimal.NewFromInt(12), underwriting.DefaultTenures)
	require.Len(t, opts, 5)
	assert.Equal(t, 36, opts[2].TenureMonths)
	assert.Equal(t, "16607.15", opts[2].EMI)
	assert.Equal(t, "597857.40", opts[2].TotalAmount)
}

type fakeBureau struct {
	score    int
	limit    int64
	scoreErr error
	limitErr error
}

func (f fakeBureau) CreditScore(context.Context, string) (int, error) { return f.score, f.scoreErr }
func (f fakeBureau) PreApprovedLimit(context.Context, string) (int64, error) {
	return f.limit, f.limitErr
}

func TestEvaluate_DecisionTree(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		limit    int64
		amount   int64
		want     underwriting.Decision
		reason   string
		emiIsSet bool
	}{
		{"credit floor", 699, 500_000, 100_000, underwriting.DecisionRejected, "below minimum requirement (700)", false},
		{"at limit", 700, 500_000, 500_000, underwriting.DecisionApproved, "", true},
		{"just above limit", 750, 500_000, 500_001, underwriting.DecisionSalarySlipRequired, "", false},
		{"at twice limit", 750, 500_000, 1_000_000, underwriting.DecisionSalarySlipRequired, "", false},
		{"above twice limit", 750, 500_000, 1_000_001, underwriting.DecisionRejected, "exceeds maximum limit (₹10,00,000)", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := underwriting.NewEngine(fakeBureau{score: tc.score, limit: tc.limit}, underwriting.DefaultTerms())
			res := e.Evaluate(context.Background(), model.Profile{CustomerID: "CUST001", LoanAmount: tc.amount})

			assert.Equal(t, tc.want, res.Decision)
			assert.Equal(t, tc.score, res.CreditScore)
			assert.Equal(t, tc.amount, res.RequestedAmount)
			if tc.reason != "" {
				assert.Contains(t, res.Reason, tc.reason)
			}
			assert.Equal(t, tc.emiIsSet, !res.EMI.IsZero())
			assert.False(t, res.Degraded)
		})
	}
}

func TestEvaluate_BureauFailureUsesDefaults(t *testing.T) {
	boom := errors.New("bureau unreachable")
	e := underwriting.NewEngine(fakeBureau{scoreErr: boom, limitErr: boom}, underwriting.DefaultTerms())

	res := e.Evaluate(context.Background(), model.Profile{CustomerID: "X", LoanAmount: 200_000})

	assert.True(t, res.Degraded)
	assert.Equal(t, 750, res.CreditScore)
	assert.Equal(t, int64(500_000), res.PreApprovedLimit)
	assert.Equal(t, underwriting.DecisionApproved, res.Decision)
}

func TestRecheck_EMIAgainstIncome(t *testing.T) {
	e := underwriting.NewEngine(fakeBureau{}, underwriting.DefaultTerms())
	p := model.Profile{LoanAmount: 800_000, CreditScore: 780, PreApprovedLimit: 500_000}

	// EMI for 8 lakh at 12% / 36 months is 26571.45.
	p.MonthlyIncome = 60_000
	res := e.Recheck(p)
	assert.Equal(t, underwriting.DecisionApproved, res.Decision)
	assert.Equal(t, "26571.45", res.EMI.StringFixed(2))

	p.MonthlyIncome = 50_000
	res = e.Recheck(p)
	assert.Equal(t, underwriting.DecisionRejected, res.Decision)
	assert.Contains(t, res.Reason, "exceeds 50% of monthly income")

	p.MonthlyIncome = 0
	assert.Equal(t, underwriting.DecisionRejected, e.Recheck(p).Decision)
}

func TestResultData(t *testing.T) {
	e := underwriting.NewEngine(fakeBureau{score: 800, limit: 300_000}, underwriting.DefaultTerms())
	res := e.Evaluate(context.Background(), model.Profile{LoanAmount: 300_000})

	data := res.Data()
	assert.Equal(t, "approved", data["status"])
	assert.Equal(t, 800, data["credit_score"])
	assert.Equal(t, int64(300_000), data["pre_approved_limit"])
	assert.Equal(t, "12", data["interest_rate"])
	assert.Equal(t, 36, data["tenure_months"])
	assert.NotContains(t, data, "reason")
}

func TestLoadStaticBureau(t *testing.T) {
	dir := t.TempDir()
	scores := filepath.Join(dir, "credit_scores.csv")
	offers := filepath.Join(dir, "offers.csv")
	require.NoError(t, os.WriteFile(scores, []byte("customer_id,credit_score\nCUST001,810\nCUST002,640\n"), 0o600))
	require.NoError(t, os.WriteFile(offers, []byte("customer_id,pre_approved_limit,product\nCUST001,300000.0,personal\n"), 0o600))

	b, err := underwriting.LoadStaticBureau(scores, offers, 750, 500_000)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := b.CreditScore(ctx, "CUST002")
	require.NoError(t, err)
	assert.Equal(t, 640, s)

	s, err = b.CreditScore(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, 750, s)

	l, err := b.PreApprovedLimit(ctx, "CUST001")
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), l)

	_, err = underwriting.LoadStaticBureau(filepath.Join(dir, "missing.csv"), "", 750, 500_000)
	assert.NoError(t, err)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,score\n1,2\n"), 0o600))
	_, err = underwriting.LoadStaticBureau(bad, "", 750, 500_000)
	assert.Error(t, err)
}
