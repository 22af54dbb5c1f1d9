package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
	"github.com/capitalize-ai/loan-assistant/pkg/metrics"
)

// Interpreter reads the free-form parts of the conversation that are not
// plain field captures. Both implementations always return a usable answer.
type Interpreter interface {
	// Mode names the implementation for health reporting.
	Mode() string
	// Greet returns the assistant's opening text for a greeting turn.
	Greet(ctx context.Context, utterance string) string
	// Interested classifies whether the customer wants a loan.
	Interested(ctx context.Context, utterance string) bool
	// LoanAmount reads a requested amount in rupees.
	LoanAmount(ctx context.Context, utterance string) (int64, bool)
}

// Interpreter modes.
const (
	ModeRules = "rules"
	ModeModel = "model"
)

const defaultGreeting = "Hello! Welcome to Capitalize Personal Loans. I can help you apply for a personal loan in a few minutes. Are you interested in a personal loan today?"

var (
	wordRe       = regexp.MustCompile(`[a-z']+`)
	negativeWord = map[string]bool{
		"no": true, "nope": true, "not": true, "nah": true, "later": true,
		"don't": true, "dont": true, "never": true, "cancel": true,
	}
	positiveWord = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "yup": true, "sure": true,
		"ok": true, "okay": true, "interested": true, "loan": true,
		"apply": true, "need": true, "want": true, "please": true,
		"start": true, "borrow": true, "money": true, "funds": true,
	}
)

// RuleInterpreter is the deterministic interpreter used when no language
// model is configured.
type RuleInterpreter struct{}

// Mode implements Interpreter.
func (RuleInterpreter) Mode() string { return ModeRules }

// Greet implements Interpreter.
func (RuleInterpreter) Greet(context.Context, string) string { return defaultGreeting }

// Interested reports true when the utterance contains an affirmative or
// loan-seeking word and no negation.
func (RuleInterpreter) Interested(_ context.Context, utterance string) bool {
	positive := false
	for _, w := range wordRe.FindAllString(strings.ToLower(utterance), -1) {
		if negativeWord[w] {
			return false
		}
		if positiveWord[w] {
			positive = true
		}
	}
	return positive
}

// LoanAmount implements Interpreter.
func (RuleInterpreter) LoanAmount(_ context.Context, utterance string) (int64, bool) {
	return extract.Amount(utterance)
}

// ModelInterpreter asks a language model and falls back to RuleInterpreter
// whenever the call fails, times out or returns something unusable.
type ModelInterpreter struct {
	client  Client
	timeout time.Duration
	rules   RuleInterpreter
	logger  *logger.Logger
}

// NewModelInterpreter wraps client. Every call is bounded by timeout.
func NewModelInterpreter(client Client, timeout time.Duration, log *logger.Logger) *ModelInterpreter {
	return &ModelInterpreter{
		client:  client,
		timeout: timeout,
		logger:  log.Named("interpreter"),
	}
}

// NewInterpreter selects the model interpreter when a client is available
// and the rule interpreter otherwise.
func NewInterpreter(client Client, timeout time.Duration, log *logger.Logger) Interpreter {
	if client == nil {
		return RuleInterpreter{}
	}
	return NewModelInterpreter(client, timeout, log)
}

// Mode implements Interpreter.
func (m *ModelInterpreter) Mode() string { return ModeModel }

const greetPrompt = "You are a friendly and professional personal loan assistant. " +
	"Greet the customer warmly and ask whether they are interested in a personal loan. " +
	"Keep the reply under three sentences."

// Greet implements Interpreter.
func (m *ModelInterpreter) Greet(ctx context.Context, utterance string) string {
	out, err := m.complete(ctx, "greet", greetPrompt, utterance, 0.7, 200)
	if err != nil || strings.TrimSpace(out) == "" {
		m.fallback("greet", err)
		return m.rules.Greet(ctx, utterance)
	}
	return strings.TrimSpace(out)
}

const interestPrompt = `Determine if the user is interested in a personal loan. Reply with only "yes" or "no".`

// Interested implements Interpreter.
func (m *ModelInterpreter) Interested(ctx context.Context, utterance string) bool {
	out, err := m.complete(ctx, "classify_interest", interestPrompt, utterance, 0.3, 10)
	if err != nil {
		m.fallback("classify_interest", err)
		return m.rules.Interested(ctx, utterance)
	}
	answer := strings.ToLower(strings.TrimSpace(out))
	switch {
	case strings.HasPrefix(answer, "yes"):
		return true
	case strings.HasPrefix(answer, "no"):
		return false
	default:
		m.fallback("classify_interest", fmt.Errorf("unexpected answer %q", out))
		return m.rules.Interested(ctx, utterance)
	}
}

const amountPrompt = `Extract the loan amount in rupees from the user's message. ` +
	`Amounts may look like "2 lakhs", "5 lac", "50 thousand" or "500000". ` +
	`Reply with only a JSON object: {"loan_amount": <integer or null>}`

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// LoanAmount tries the deterministic parser first and only asks the model
// when the rules find nothing.
func (m *ModelInterpreter) LoanAmount(ctx context.Context, utterance string) (int64, bool) {
	if n, ok := m.rules.LoanAmount(ctx, utterance); ok {
		return n, true
	}

	out, err := m.complete(ctx, "extract_amount", amountPrompt, utterance, 0, 50)
	if err != nil {
		m.fallback("extract_amount", err)
		return 0, false
	}

	var parsed struct {
		LoanAmount *float64 `json:"loan_amount"`
	}
	if err := json.Unmarshal([]byte(jsonObjectRe.FindString(out)), &parsed); err != nil {
		m.fallback("extract_amount", err)
		return 0, false
	}
	if parsed.LoanAmount == nil || *parsed.LoanAmount <= 0 {
		return 0, false
	}
	return int64(*parsed.LoanAmount), true
}

func (m *ModelInterpreter) complete(ctx context.Context, op, system, utterance string, temperature float64, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	resp, err := m.client.Complete(ctx, &CompletionRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: utterance},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		metrics.RecordLLMCall(m.client.Name(), "", op, "error", time.Since(start).Seconds(), 0, 0)
		return "", err
	}
	metrics.RecordLLMCall(m.client.Name(), resp.Model, op, "ok", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp.Content, nil
}

func (m *ModelInterpreter) fallback(op string, err error) {
	metrics.InterpreterFallbacks.WithLabelValues(op).Inc()
	m.logger.Warn("language model unavailable, using rules",
		zap.String("operation", op),
		zap.Error(err),
	)
}
