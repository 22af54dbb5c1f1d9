package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/llm"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

type fakeClient struct {
	reply string
	err   error
	block bool
	calls int
	last  *llm.CompletionRequest
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake-1"}, nil
}

func TestRuleInterpreter_Interested(t *testing.T) {
	r := llm.RuleInterpreter{}
	ctx := context.Background()

	for _, yes := range []string{"Yes please", "I need a personal loan", "sure", "OK, let's start"} {
		assert.True(t, r.Interested(ctx, yes), yes)
	}
	for _, no := range []string{"No thanks", "I'm not interested in a loan", "hello", "maybe later"} {
		assert.False(t, r.Interested(ctx, no), no)
	}
	assert.Equal(t, llm.ModeRules, r.Mode())
	assert.NotEmpty(t, r.Greet(ctx, "hi"))
}

func TestNewInterpreter_SelectsMode(t *testing.T) {
	assert.Equal(t, llm.ModeRules, llm.NewInterpreter(nil, time.Second, logger.Nop()).Mode())
	assert.Equal(t, llm.ModeModel, llm.NewInterpreter(&fakeClient{}, time.Second, logger.Nop()).Mode())
}

func TestModelInterpreter_Interested(t *testing.T) {
	ctx := context.Background()

	c := &fakeClient{reply: "Yes."}
	m := llm.NewModelInterpreter(c, time.Second, logger.Nop())
	assert.True(t, m.Interested(ctx, "tell me more"))
	require.Len(t, c.last.Messages, 2)
	assert.Equal(t, llm.RoleSystem, c.last.Messages[0].Role)
	assert.Equal(t, "tell me more", c.last.Messages[1].Content)

	c.reply = "no"
	assert.False(t, m.Interested(ctx, "yes please"))

	// Unusable answers and errors fall back to the keyword rules.
	c.reply = "perhaps"
	assert.True(t, m.Interested(ctx, "yes please"))
	c.err = errors.New("503")
	assert.True(t, m.Interested(ctx, "I need a loan"))
	assert.False(t, m.Interested(ctx, "no"))
}

func TestModelInterpreter_LoanAmount(t *testing.T) {
	ctx := context.Background()
	c := &fakeClient{reply: `Sure! {"loan_amount": 350000}`}
	m := llm.NewModelInterpreter(c, time.Second, logger.Nop())

	n, ok := m.LoanAmount(ctx, "2 lakhs")
	assert.True(t, ok)
	assert.Equal(t, int64(200_000), n)
	assert.Zero(t, c.calls, "rules answer without a model call")

	n, ok = m.LoanAmount(ctx, "three and a half lakh")
	assert.True(t, ok)
	assert.Equal(t, int64(350_000), n)
	assert.Equal(t, 1, c.calls)

	c.reply = `{"loan_amount": null}`
	_, ok = m.LoanAmount(ctx, "not sure yet")
	assert.False(t, ok)

	c.reply = "garbage"
	_, ok = m.LoanAmount(ctx, "not sure yet")
	assert.False(t, ok)
}

func TestModelInterpreter_TimeoutFallsBack(t *testing.T) {
	c := &fakeClient{block: true}
	m := llm.NewModelInterpreter(c, 20*time.Millisecond, logger.Nop())

	start := time.Now()
	assert.True(t, m.Interested(context.Background(), "yes"))
	assert.Less(t, time.Since(start), time.Second)

	assert.NotEmpty(t, m.Greet(context.Background(), "hi"))
}

func TestModelInterpreter_Greet(t *testing.T) {
	c := &fakeClient{reply: "  Namaste! Looking for a personal loan?  "}
	m := llm.NewModelInterpreter(c, time.Second, logger.Nop())
	assert.Equal(t, "Namaste! Looking for a personal loan?", m.Greet(context.Background(), "hi"))
}
