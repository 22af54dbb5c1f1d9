// Package money formats rupee amounts for customer-facing text.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rupees formats a whole rupee amount with Indian digit grouping,
// for example 500000 -> "₹5,00,000".
func Rupees(amount int64) string {
	return "₹" + group(decimal.NewFromInt(amount).String())
}

// RupeesPaise formats an amount with two decimal places,
// for example 16607.15 -> "₹16,607.15".
func RupeesPaise(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	return "₹" + group(whole) + "." + frac
}

// group inserts separators as lakh/crore grouping: the last three digits,
// then groups of two.
func group(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	if len(digits) <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	out := strings.Join(parts, ",") + "," + tail
	if neg {
		return "-" + out
	}
	return out
}
