package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeStageChanged     EventType = "stage_changed"
	EventTypeDocumentVerified EventType = "document_verified"
	EventTypeSanctionRequest  EventType = "sanction_requested"
	EventTypeError            EventType = "error"
)

// ConversationEvent is published on the event bus for downstream consumers.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// DocumentEvent is produced by the document upload pipeline once a salary
// slip has been processed.
type DocumentEvent struct {
	ConversationID string            `json:"conversation_id"`
	Verified       bool              `json:"verified"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// SanctionRequest is handed to the sanction letter renderer.
type SanctionRequest struct {
	ConversationID  string    `json:"conversation_id"`
	ReferenceNumber string    `json:"reference_number"`
	CustomerID      string    `json:"customer_id"`
	Name            string    `json:"name"`
	Age             int       `json:"age,omitempty"`
	City            string    `json:"city,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
	LoanAmount      int64     `json:"loan_amount"`
	InterestRate    string    `json:"interest_rate"`
	TenureMonths    int       `json:"tenure_months"`
	EMI             string    `json:"emi"`
	TotalPayable    string    `json:"total_payable"`
	CreditScore     int       `json:"credit_score,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
	ValidUntil      time.Time `json:"valid_until"`
}
