package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher() (*Publisher, map[string]*fakeWriter) {
	p := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
	created := map[string]*fakeWriter{}
	p.newWriter = func(topic string) writer {
		w := &fakeWriter{}
		created[topic] = w
		return w
	}
	return p, created
}

func TestPublisher_RoutesByKind(t *testing.T) {
	p, writers := newTestPublisher()
	ctx := context.Background()

	require.NoError(t, p.PublishMessage(ctx, &model.Message{ConversationID: "c1", Role: model.RoleUser, Content: "hi"}))
	require.NoError(t, p.PublishMessage(ctx, &model.Message{ConversationID: "c1", Role: model.RoleAssistant, Content: "hello"}))
	require.NoError(t, p.PublishEvent(ctx, &model.ConversationEvent{ConversationID: "c1", Type: model.EventTypeStageChanged}))
	require.NoError(t, p.PublishSanction(ctx, &model.SanctionRequest{ConversationID: "c1", ReferenceNumber: "TCL/PL/CUST001/20261015"}))

	require.Len(t, writers, 3)
	assert.Len(t, writers["loan.messages"].msgs, 2, "one writer per topic is reused")
	require.Len(t, writers["loan.events"].msgs, 1)
	require.Len(t, writers["loan.sanctions"].msgs, 1)

	ev := writers["loan.events"].msgs[0]
	assert.Equal(t, "c1", string(ev.Key))
	assert.Contains(t, ev.Headers, kafkago.Header{Key: "event_type", Value: []byte("stage_changed")})

	var req model.SanctionRequest
	require.NoError(t, json.Unmarshal(writers["loan.sanctions"].msgs[0].Value, &req))
	assert.Equal(t, "TCL/PL/CUST001/20261015", req.ReferenceNumber)

	require.NoError(t, p.Close())
	for _, w := range writers {
		assert.True(t, w.closed)
	}
}

func TestPublisher_WrapsWriteErrors(t *testing.T) {
	p, _ := newTestPublisher()
	p.newWriter = func(string) writer { return &fakeWriter{err: errors.New("broker down")} }

	err := p.PublishEvent(context.Background(), &model.ConversationEvent{ConversationID: "c1", Type: model.EventTypeError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loan.events")
	assert.Equal(t, "kafka", p.Name())
}

func TestPublisher_TopicPrefix(t *testing.T) {
	p := NewPublisher(Config{TopicPrefix: "capitalize.loan"})
	assert.Equal(t, "capitalize.loan.events", p.Topic(TopicEvents))
}
