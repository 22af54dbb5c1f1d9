package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/loan-assistant/pkg/money"
)

func TestRupees(t *testing.T) {
	tests := map[int64]string{
		0:        "₹0",
		999:      "₹999",
		1000:     "₹1,000",
		150000:   "₹1,50,000",
		500000:   "₹5,00,000",
		5000000:  "₹50,00,000",
		12345678: "₹1,23,45,678",
		-250000:  "₹-2,50,000",
	}
	for in, want := range tests {
		assert.Equal(t, want, money.Rupees(in))
	}
}

func TestRupeesPaise(t *testing.T) {
	assert.Equal(t, "₹16,607.15", money.RupeesPaise(decimal.RequireFromString("16607.145")))
	assert.Equal(t, "₹12.00", money.RupeesPaise(decimal.NewFromInt(12)))
}
