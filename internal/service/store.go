package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

// Snapshotter persists conversation snapshots outside the process.
type Snapshotter interface {
	Save(ctx context.Context, conv model.Conversation) error
	Load(ctx context.Context, id string) (model.Conversation, bool, error)
}

// Store owns every conversation. Callers hold the per-id lock from Lock
// across a Get/Commit pair; readers only ever see committed copies.
type Store struct {
	mu    sync.RWMutex
	convs map[string]model.Conversation
	locks map[string]*idLock

	snapshots Snapshotter
	logger    *logger.Logger
}

// NewStore creates an empty store. snapshots may be nil.
func NewStore(snapshots Snapshotter, log *logger.Logger) *Store {
	return &Store{
		convs:     make(map[string]model.Conversation),
		locks:     make(map[string]*idLock),
		snapshots: snapshots,
		logger:    log,
	}
}

// idLock is a per-conversation mutex shared by its current holders and
// waiters. It is dropped from the map when the last of them releases it.
type idLock struct {
	sync.Mutex
	refs int
}

// Lock serializes work on one conversation id and returns the unlock func.
// Only ids with a holder or waiter keep a lock entry.
func (s *Store) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// lockCount is the number of ids with a live lock entry.
func (s *Store) lockCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locks)
}

// Get returns a copy of the conversation, reloading it from the snapshot
// store if it is not in memory.
func (s *Store) Get(ctx context.Context, id string) (model.Conversation, bool, error) {
	s.mu.RLock()
	conv, ok := s.convs[id]
	s.mu.RUnlock()
	if ok {
		return conv.Clone(), true, nil
	}
	if s.snapshots == nil {
		return model.Conversation{}, false, nil
	}

	conv, ok, err := s.snapshots.Load(ctx, id)
	if err != nil || !ok {
		return model.Conversation{}, false, err
	}

	s.mu.Lock()
	if cur, exists := s.convs[id]; exists {
		conv = cur
	} else {
		s.convs[id] = conv
	}
	s.mu.Unlock()
	return conv.Clone(), true, nil
}

// Commit replaces the stored conversation with conv in one step. A failed
// snapshot write is logged; the in-memory state stays authoritative.
func (s *Store) Commit(ctx context.Context, conv model.Conversation) {
	stored := conv.Clone()

	s.mu.Lock()
	s.convs[conv.ID] = stored
	s.mu.Unlock()

	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, stored); err != nil {
		s.logger.Warn("failed to save conversation snapshot",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
}

// List returns summaries sorted by last update, newest first.
func (s *Store) List(limit, offset int) model.ListConversationsResponse {
	summaries := s.summaries()

	total := len(summaries)
	start := offset
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < total {
		end = start + limit
	}

	return model.ListConversationsResponse{
		Conversations: summaries[start:end],
		Total:         total,
		HasMore:       end < total,
	}
}

// Stats aggregates conversations by status.
func (s *Store) Stats() model.Stats {
	summaries := s.summaries()
	stats := model.Stats{
		TotalConversations: len(summaries),
		Conversations:      summaries,
	}
	for _, c := range summaries {
		switch c.Status {
		case model.StatusActive:
			stats.ActiveConversations++
		case model.StatusCompleted:
			stats.CompletedLoans++
		case model.StatusRejected:
			stats.RejectedLoans++
		case model.StatusPendingVerification, model.StatusDocumentsVerified:
			stats.PendingVerification++
		}
	}
	return stats
}

func (s *Store) summaries() []model.ConversationSummary {
	s.mu.RLock()
	out := make([]model.ConversationSummary, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
