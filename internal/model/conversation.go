// Package model defines data structures for the loan origination dialogue.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation transcript.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Action         Action    `json:"action,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the full state of one loan application dialogue.
type Conversation struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	Profile   Profile   `json:"customer_data"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Failed is set after a configuration error; the conversation makes no
	// further progress.
	Failed bool `json:"failed,omitempty"`
}

// Clone returns a deep copy safe to hand out to readers.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// ConversationSummary is the dashboard view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status"`
	LoanAmount   int64     `json:"loan_amount"`
	UpdatedAt    time.Time `json:"timestamp"`
}

// Summary builds the dashboard view of c.
func (c Conversation) Summary() ConversationSummary {
	name := c.Profile.Name
	if name == "" {
		name = "Unknown"
	}
	return ConversationSummary{
		ID:           c.ID,
		CustomerName: name,
		Stage:        c.Stage,
		Status:       c.Status,
		LoanAmount:   c.Profile.LoanAmount,
		UpdatedAt:    c.UpdatedAt,
	}
}

// Stats aggregates conversations by status.
type Stats struct {
	TotalConversations  int                   `json:"total_conversations"`
	ActiveConversations int                   `json:"active_conversations"`
	CompletedLoans      int                   `json:"completed_loans"`
	RejectedLoans       int                   `json:"rejected_loans"`
	PendingVerification int                   `json:"pending_verification"`
	Conversations       []ConversationSummary `json:"conversations"`
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	HasMore       bool                  `json:"has_more"`
}
