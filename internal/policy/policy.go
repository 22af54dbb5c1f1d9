// Package policy holds the per-field acceptance rules applied to extracted
// values before they enter a customer profile.
package policy

import (
	"fmt"
	"net/mail"
	"regexp"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/pkg/money"
)

// Policy is the configured set of acceptance bounds.
type Policy struct {
	MinAge    int
	MaxAge    int
	MinAmount int64
	MaxAmount int64
}

// Default returns the bounds used when nothing is configured.
func Default() Policy {
	return Policy{
		MinAge:    21,
		MaxAge:    65,
		MinAmount: 10_000,
		MaxAmount: 5_000_000,
	}
}

// ValidationError reports a rejected value together with the reprompt that
// explains the accepted range or format.
type ValidationError struct {
	Field    extract.Field
	Reprompt string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reprompt)
}

var (
	mobileRe = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	emailRe  = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
)

// Validate checks v against the rule for its field. A nil error means the
// value may be stored.
func (p Policy) Validate(v extract.Value) error {
	switch v.Field {
	case extract.FieldAge:
		if v.Number < int64(p.MinAge) || v.Number > int64(p.MaxAge) {
			return p.reject(v.Field, fmt.Sprintf("Age should be between %d and %d years. Please enter a valid age.", p.MinAge, p.MaxAge))
		}
	case extract.FieldLoanAmount:
		if v.Number < p.MinAmount || v.Number > p.MaxAmount {
			return p.reject(v.Field, fmt.Sprintf("We offer loans from %s to %s. Please enter an amount in that range.",
				money.Rupees(p.MinAmount), money.Rupees(p.MaxAmount)))
		}
	case extract.FieldMonthlyIncome:
		if v.Number <= 0 {
			return p.reject(v.Field, "Please enter your monthly income in numbers (e.g., 50000).")
		}
	case extract.FieldPhone:
		if !mobileRe.MatchString(v.Text) {
			return p.reject(v.Field, "Please enter a valid 10-digit mobile number starting with 6, 7, 8, or 9.")
		}
	case extract.FieldEmail:
		addr, err := mail.ParseAddress(v.Text)
		if err != nil || addr.Address != v.Text || !emailRe.MatchString(v.Text) {
			return p.reject(v.Field, "Please enter a valid email address (e.g., example@gmail.com).")
		}
	case extract.FieldName, extract.FieldCity, extract.FieldAddress:
		if v.Text == "" {
			return p.reject(v.Field, Reprompt(v.Field))
		}
	default:
		return fmt.Errorf("no validation rule for field %q", v.Field)
	}
	return nil
}

func (p Policy) reject(field extract.Field, msg string) error {
	return &ValidationError{Field: field, Reprompt: msg}
}

// Reprompt is the message used when a field could not be extracted at all.
func Reprompt(field extract.Field) string {
	switch field {
	case extract.FieldName:
		return "Please tell me your full name (letters only)."
	case extract.FieldAge:
		return "Please enter your age in numbers (e.g., 25)."
	case extract.FieldCity:
		return "Please enter a valid city name."
	case extract.FieldPhone:
		return "Please enter a valid 10-digit mobile number starting with 6, 7, 8, or 9."
	case extract.FieldAddress:
		return "Please share your registered address."
	case extract.FieldEmail:
		return "Please enter a valid email address (e.g., example@gmail.com)."
	case extract.FieldLoanAmount:
		return "Could you please specify the loan amount? (e.g., 2 lakhs, 5 lakhs, 500000)"
	case extract.FieldMonthlyIncome:
		return "Please enter your monthly income in numbers (e.g., 50000)."
	default:
		return "Please provide your details."
	}
}
