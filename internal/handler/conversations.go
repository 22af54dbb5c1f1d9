package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/middleware"
	"github.com/capitalize-ai/loan-assistant/internal/model"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

// ConversationHandler handles the agent-facing conversation endpoints.
type ConversationHandler struct {
	dialogue Dialogue
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(d Dialogue, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		dialogue: d,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20, 100)
	writeJSON(w, http.StatusOK, h.dialogue.Conversations(limit, offset))
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	conv, err := h.dialogue.Conversation(r.Context(), conversationID)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// MessagesResponse is one page of a conversation transcript.
type MessagesResponse struct {
	Messages []model.Message `json:"messages"`
	HasMore  bool            `json:"has_more"`
}

// Messages handles GET /api/v1/conversations/:id/messages. The after
// parameter is the number of messages already seen.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	conv, err := h.dialogue.Conversation(r.Context(), conversationID)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}

	after := 0
	if a := r.URL.Query().Get("after"); a != "" {
		if parsed, err := strconv.Atoi(a); err == nil && parsed >= 0 {
			after = parsed
		}
	}
	limit, _ := pagination(r, 50, 200)

	msgs := conv.Messages
	if after > len(msgs) {
		after = len(msgs)
	}
	end := after + limit
	if end > len(msgs) {
		end = len(msgs)
	}

	writeJSON(w, http.StatusOK, MessagesResponse{
		Messages: append([]model.Message{}, msgs[after:end]...),
		HasMore:  end < len(msgs),
	})
}

// Documents handles POST /api/v1/conversations/:id/documents. It accepts a
// processed salary slip result for a conversation in salary_verification.
func (h *ConversationHandler) Documents(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	var event model.DocumentEvent
	if err := decodeJSON(w, r, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.ConversationID != "" && event.ConversationID != conversationID {
		writeError(w, http.StatusBadRequest, "conversation_id does not match path")
		return
	}
	event.ConversationID = conversationID

	reply, err := h.dialogue.ApplyDocumentEvent(r.Context(), event)
	if err != nil {
		status, msg := statusFor(err)
		h.logger.Warn("document event not applied",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// Sanction handles POST /api/v1/conversations/:id/sanction
func (h *ConversationHandler) Sanction(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	req, err := h.dialogue.RequestSanction(r.Context(), conversationID)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("sanction request failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, req)
}

// Stats handles GET /api/v1/stats
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dialogue.Stats())
}

func conversationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
