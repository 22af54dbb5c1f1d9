package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/internal/service"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "loan.conv.abc.msg.user", MessageSubject("abc", model.RoleUser))
	assert.Equal(t, "loan.conv.abc.event.stage_changed", EventSubject("abc", model.EventTypeStageChanged))
	assert.Equal(t, "loan.conv.abc.sanction", SanctionSubject("abc"))
	assert.Equal(t, "loan.documents.abc", DocumentSubject("abc"))
}

// fakeMsg records how a message was settled. Methods not overridden panic.
type fakeMsg struct {
	jetstream.Msg
	data    []byte
	settled string
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "loan.documents.test" }
func (m *fakeMsg) Ack() error      { m.settled = "ack"; return nil }
func (m *fakeMsg) Nak() error      { m.settled = "nak"; return nil }
func (m *fakeMsg) Term() error     { m.settled = "term"; return nil }

type fakeHandler struct {
	err  error
	seen []model.DocumentEvent
}

func (h *fakeHandler) ApplyDocumentEvent(_ context.Context, ev model.DocumentEvent) (*model.Reply, error) {
	h.seen = append(h.seen, ev)
	if h.err != nil {
		return nil, h.err
	}
	return &model.Reply{ConversationID: ev.ConversationID, Stage: model.StageApproval, Status: model.StatusCompleted}, nil
}

func TestDocumentConsumer_Settlement(t *testing.T) {
	valid, err := json.Marshal(model.DocumentEvent{
		ConversationID: "conv-1",
		Verified:       true,
		Fields:         map[string]string{"monthly_income": "60000"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		err     error
		settled string
	}{
		{"applied", valid, nil, "ack"},
		{"malformed", []byte("{"), nil, "term"},
		{"missing id", []byte(`{"verified":true}`), nil, "term"},
		{"unknown conversation", valid, service.ErrConversationNotFound, "term"},
		{"wrong stage", valid, fmt.Errorf("%w: stage is greeting", service.ErrNotAwaitingDocuments), "term"},
		{"transient", valid, errors.New("snapshot store down"), "nak"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &fakeHandler{err: tc.err}
			d := NewDocumentConsumer(nil, h, logger.Nop())
			msg := &fakeMsg{data: tc.data}

			d.handle(context.Background(), msg)
			assert.Equal(t, tc.settled, msg.settled)
		})
	}
}

func TestDocumentConsumer_PassesEvent(t *testing.T) {
	h := &fakeHandler{}
	d := NewDocumentConsumer(nil, h, logger.Nop())
	d.handle(context.Background(), &fakeMsg{data: []byte(`{"conversation_id":"c","verified":true,"fields":{"salary":"70000"}}`)})

	require.Len(t, h.seen, 1)
	assert.Equal(t, "c", h.seen[0].ConversationID)
	assert.Equal(t, "70000", h.seen[0].Fields["salary"])
}

func TestClientStatus_Disabled(t *testing.T) {
	var c *Client
	assert.Equal(t, "disabled", c.Status())
}
