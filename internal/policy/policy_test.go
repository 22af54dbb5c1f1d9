package policy_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/internal/policy"
)

func age(n int64) extract.Value {
	return extract.Value{Field: extract.FieldAge, Number: n}
}

func TestValidate_AgeBoundaries(t *testing.T) {
	p := policy.Default()

	assert.NoError(t, p.Validate(age(int64(p.MinAge))))
	assert.NoError(t, p.Validate(age(int64(p.MaxAge))))

	for _, n := range []int64{int64(p.MinAge) - 1, int64(p.MaxAge) + 1} {
		err := p.Validate(age(n))
		var verr *policy.ValidationError
		require.True(t, errors.As(err, &verr), "age %d", n)
		assert.Equal(t, extract.FieldAge, verr.Field)
		assert.Contains(t, verr.Reprompt, "between 21 and 65")
	}
}

func TestValidate_ConfiguredAgeRange(t *testing.T) {
	p := policy.Policy{MinAge: 18, MaxAge: 80, MinAmount: 1, MaxAmount: 10}
	assert.NoError(t, p.Validate(age(18)))
	assert.NoError(t, p.Validate(age(80)))
	assert.Error(t, p.Validate(age(17)))
	assert.Error(t, p.Validate(age(81)))
}

func TestValidate_LoanAmount(t *testing.T) {
	p := policy.Default()
	amount := func(n int64) extract.Value {
		return extract.Value{Field: extract.FieldLoanAmount, Number: n}
	}

	assert.NoError(t, p.Validate(amount(10_000)))
	assert.NoError(t, p.Validate(amount(5_000_000)))

	err := p.Validate(amount(9_999))
	var verr *policy.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reprompt, "₹10,000")
	assert.Contains(t, verr.Reprompt, "₹50,00,000")

	assert.Error(t, p.Validate(amount(5_000_001)))
}

func TestValidate_Phone(t *testing.T) {
	p := policy.Default()
	phone := func(s string) extract.Value {
		return extract.Value{Field: extract.FieldPhone, Text: s}
	}

	for _, ok := range []string{"9876543210", "6000000000", "7123456789", "8123456789"} {
		assert.NoError(t, p.Validate(phone(ok)), ok)
	}
	for _, bad := range []string{"5876543210", "987654321", "98765432101", "98765abcde"} {
		assert.Error(t, p.Validate(phone(bad)), bad)
	}
}

func TestValidate_Email(t *testing.T) {
	p := policy.Default()
	email := func(s string) extract.Value {
		return extract.Value{Field: extract.FieldEmail, Text: s}
	}

	assert.NoError(t, p.Validate(email("rahul.sharma@example.com")))
	assert.Error(t, p.Validate(email("rahul@localhost")))
	assert.Error(t, p.Validate(email("Rahul <rahul@example.com>")))
	assert.Error(t, p.Validate(email("a b@example.com")))
}

func TestValidate_UnknownField(t *testing.T) {
	err := policy.Default().Validate(extract.Value{Field: "pan", Text: "ABCDE1234F"})
	require.Error(t, err)
	var verr *policy.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestReprompt_NonEmpty(t *testing.T) {
	for _, f := range []extract.Field{
		extract.FieldName, extract.FieldAge, extract.FieldCity, extract.FieldPhone,
		extract.FieldAddress, extract.FieldEmail, extract.FieldLoanAmount, extract.FieldMonthlyIncome,
	} {
		assert.NotEmpty(t, policy.Reprompt(f), string(f))
	}
}
