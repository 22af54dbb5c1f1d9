// Package extract parses single typed fields out of free-form customer text.
//
// Extraction only proposes a candidate value. Whether the value is acceptable
// is decided by the validation policy.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Field identifies a profile field that can be extracted from an utterance.
type Field string

const (
	FieldName          Field = "name"
	FieldAge           Field = "age"
	FieldCity          Field = "city"
	FieldPhone         Field = "phone"
	FieldAddress       Field = "address"
	FieldEmail         Field = "email"
	FieldLoanAmount    Field = "loan_amount"
	FieldMonthlyIncome Field = "monthly_income"
)

// Value is an extracted candidate. Text is always set; Number is set for
// numeric fields.
type Value struct {
	Field  Field
	Text   string
	Number int64
}

// Extract dispatches to the pattern set of the given field kind.
func Extract(field Field, utterance string) (Value, bool) {
	switch field {
	case FieldName:
		s, ok := Name(utterance)
		return text(field, s, ok)
	case FieldCity:
		s, ok := City(utterance)
		return text(field, s, ok)
	case FieldAddress:
		s, ok := Address(utterance)
		return text(field, s, ok)
	case FieldPhone:
		s, ok := Phone(utterance)
		return text(field, s, ok)
	case FieldEmail:
		s, ok := Email(utterance)
		return text(field, s, ok)
	case FieldAge:
		n, ok := Age(utterance)
		return number(field, int64(n), ok)
	case FieldLoanAmount, FieldMonthlyIncome:
		n, ok := Amount(utterance)
		return number(field, n, ok)
	default:
		return Value{}, false
	}
}

func text(field Field, s string, ok bool) (Value, bool) {
	if !ok {
		return Value{}, false
	}
	return Value{Field: field, Text: s}, true
}

func number(field Field, n int64, ok bool) (Value, bool) {
	if !ok {
		return Value{}, false
	}
	return Value{Field: field, Text: strconv.FormatInt(n, 10), Number: n}, true
}

var (
	lakh     = decimal.NewFromInt(100_000)
	thousand = decimal.NewFromInt(1_000)
	// maxAmount is the largest value that converts to int64 without wrapping.
	maxAmount = decimal.NewFromInt(math.MaxInt64)

	// A number followed by a unit word. "k" only counts when it directly
	// follows the number as its own token ("50k", "50 k").
	unitAmountRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(lakhs?|lacs?|thousand|k)\b`)
	bareAmountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Amount parses rupee amounts such as "2 lakhs", "5 lac", "50 thousand",
// "₹1,50,000" or "150000". Fractions of a rupee are truncated. A signed
// amount ("-5 lakhs") or one that does not fit in an int64 is no match.
func Amount(utterance string) (int64, bool) {
	if m := unitAmountRe.FindStringSubmatchIndex(utterance); m != nil {
		if signed(utterance, m[2]) {
			return 0, false
		}
		n, err := decimal.NewFromString(strings.ReplaceAll(utterance[m[2]:m[3]], ",", ""))
		if err != nil {
			return 0, false
		}
		switch strings.ToLower(utterance[m[4]:m[5]]) {
		case "k", "thousand":
			n = n.Mul(thousand)
		default:
			n = n.Mul(lakh)
		}
		return positive(n)
	}

	m := bareAmountRe.FindStringIndex(utterance)
	if m == nil || signed(utterance, m[0]) {
		return 0, false
	}
	n, err := decimal.NewFromString(strings.ReplaceAll(utterance[m[0]:m[1]], ",", ""))
	if err != nil {
		return 0, false
	}
	return positive(n)
}

// signed reports whether the number starting at i carries a leading minus.
// A hyphen glued to a preceding word or number ("5-10 lakhs") is a range or
// an identifier, not a sign.
func signed(s string, i int) bool {
	if i == 0 || s[i-1] != '-' {
		return false
	}
	if i == 1 {
		return true
	}
	prev := strings.TrimRight(s[:i-1], "₹")
	if prev == "" {
		return true
	}
	r := prev[len(prev)-1]
	return r == ' ' || r == '\t' || r == '(' || r == '.' || r == ':'
}

func positive(n decimal.Decimal) (int64, bool) {
	if !n.IsPositive() || n.GreaterThan(maxAmount) {
		return 0, false
	}
	v := n.IntPart()
	if v <= 0 {
		return 0, false
	}
	return v, true
}

var ageRe = regexp.MustCompile(`(?:^|\D)(\d{1,3})(?:\D|$)`)

// Age returns the first integer of at most three digits.
func Age(utterance string) (int, bool) {
	m := ageRe.FindStringSubmatch(utterance)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	digitRunRe      = regexp.MustCompile(`\d+`)
)

// Phone returns a ten digit mobile number. A +91 or leading 0 trunk prefix is
// dropped. Runs that start with 6-9 are preferred over other ten digit runs.
func Phone(utterance string) (string, bool) {
	compact := phoneSeparators.Replace(utterance)

	var fallback string
	for _, run := range digitRunRe.FindAllString(compact, -1) {
		switch {
		case len(run) == 12 && strings.HasPrefix(run, "91"):
			run = run[2:]
		case len(run) == 11 && strings.HasPrefix(run, "0"):
			run = run[1:]
		}
		if len(run) != 10 {
			continue
		}
		if strings.ContainsAny(run[:1], "6789") {
			return run, true
		}
		if fallback == "" {
			fallback = run
		}
	}
	return fallback, fallback != ""
}

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// Email returns the first email-shaped token, lower-cased.
func Email(utterance string) (string, bool) {
	m := emailRe.FindString(utterance)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

var (
	namePrefixRe = regexp.MustCompile(`(?i)^(my name is|my name's|name is|i am|i'm|this is|it's|call me)\s+`)
	cityPrefixRe = regexp.MustCompile(`(?i)^(i live in|i am from|i'm from|i stay in|living in|from|in)\s+`)
)

// Name returns the trimmed utterance with a leading introduction removed.
// Text containing digits is not a name.
func Name(utterance string) (string, bool) {
	return freeText(namePrefixRe, utterance)
}

// City returns the trimmed utterance with a leading "I live in" style phrase
// removed. Text containing digits is not a city.
func City(utterance string) (string, bool) {
	return freeText(cityPrefixRe, utterance)
}

func freeText(prefix *regexp.Regexp, utterance string) (string, bool) {
	s := collapse(utterance)
	s = strings.TrimSpace(prefix.ReplaceAllString(s, ""))
	s = strings.TrimRight(s, ".!,")
	if s == "" || strings.IndexFunc(s, unicode.IsDigit) >= 0 {
		return "", false
	}
	return s, true
}

// Address returns the trimmed utterance with internal whitespace collapsed.
func Address(utterance string) (string, bool) {
	s := collapse(utterance)
	return s, s != ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
