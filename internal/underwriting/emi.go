// Package underwriting implements the credit decision for a loan request and
// the EMI arithmetic behind it.
package underwriting

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EMI returns the equated monthly instalment for a fully amortizing loan,
// rounded to paise.
//
//	r   = annualRatePercent / 100 / 12
//	emi = P * r * (1+r)^n / ((1+r)^n - 1)
func EMI(principal int64, annualRatePercent decimal.Decimal, tenureMonths int) decimal.Decimal {
	if principal <= 0 || tenureMonths <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(principal)

	monthlyRate := annualRatePercent.Div(hundred).Div(decimal.NewFromInt(12)).InexactFloat64()
	if monthlyRate == 0 {
		return p.Div(decimal.NewFromInt(int64(tenureMonths))).Round(2)
	}

	// Power in float64, monetary result back in decimal.
	factor := math.Pow(1+monthlyRate, float64(tenureMonths))
	emi := p.InexactFloat64() * monthlyRate * factor / (factor - 1)
	return decimal.NewFromFloat(emi).Round(2)
}

// TermOption is one row of the repayment options table.
type TermOption struct {
	TenureMonths int    `json:"tenure"`
	EMI          string `json:"emi"`
	TotalAmount  string `json:"total_amount"`
}

// DefaultTenures are the tenures offered in the options table.
var DefaultTenures = []int{12, 24, 36, 48, 60}

// TermOptions lists the EMI and total payable for each tenure.
func TermOptions(principal int64, annualRatePercent decimal.Decimal, tenures []int) []TermOption {
	out := make([]TermOption, 0, len(tenures))
	for _, n := range tenures {
		emi := EMI(principal, annualRatePercent, n)
		out = append(out, TermOption{
			TenureMonths: n,
			EMI:          emi.StringFixed(2),
			TotalAmount:  emi.Mul(decimal.NewFromInt(int64(n))).StringFixed(2),
		})
	}
	return out
}
