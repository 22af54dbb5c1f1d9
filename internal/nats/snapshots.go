package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

// SnapshotBucket is the KeyValue bucket holding the latest state of every
// conversation.
const SnapshotBucket = "LOAN_CONVERSATIONS"

// SnapshotStore persists conversations in a JetStream KeyValue bucket keyed
// by conversation id.
type SnapshotStore struct {
	kv jetstream.KeyValue
}

// NewSnapshotStore opens the snapshot bucket, creating it if needed.
func NewSnapshotStore(ctx context.Context, client *Client, ttl time.Duration) (*SnapshotStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, SnapshotBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      SnapshotBucket,
			Description: "Latest loan conversation snapshots",
			History:     1,
			TTL:         ttl,
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot bucket: %w", err)
	}
	return &SnapshotStore{kv: kv}, nil
}

// Save writes the snapshot of conv.
func (s *SnapshotStore) Save(ctx context.Context, conv model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, conv.ID, data); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot of one conversation.
func (s *SnapshotStore) Load(ctx context.Context, id string) (model.Conversation, bool, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return model.Conversation{}, false, nil
	}
	if err != nil {
		return model.Conversation{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return model.Conversation{}, false, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return conv, true, nil
}
