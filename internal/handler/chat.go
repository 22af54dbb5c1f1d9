// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/middleware"
	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

// Dialogue is the stage controller as seen by the HTTP layer.
type Dialogue interface {
	Advance(ctx context.Context, conversationID, utterance string) (*model.Reply, error)
	Conversation(ctx context.Context, id string) (model.Conversation, error)
	Conversations(limit, offset int) model.ListConversationsResponse
	Stats() model.Stats
	ApplyDocumentEvent(ctx context.Context, event model.DocumentEvent) (*model.Reply, error)
	RequestSanction(ctx context.Context, conversationID string) (*model.SanctionRequest, error)
}

// ChatHandler handles the customer-facing chat endpoint.
type ChatHandler struct {
	dialogue Dialogue
	logger   *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(d Dialogue, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		dialogue: d,
		logger:   log,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUtterance(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	reply, err := h.dialogue.Advance(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		status, msg := statusFor(err)
		h.logger.Warn("chat request not processed",
			zap.String("conversation_id", req.ConversationID),
			zap.String("correlation_id", logger.CorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
