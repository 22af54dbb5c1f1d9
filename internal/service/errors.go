package service

import (
	"errors"
	"fmt"

	"github.com/capitalize-ai/loan-assistant/internal/extract"
	"github.com/capitalize-ai/loan-assistant/internal/policy"
)

var (
	// ErrConversationNotFound is returned for an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationFailed is returned for a conversation halted by a
	// configuration error.
	ErrConversationFailed = errors.New("conversation failed")
	// ErrNotApproved is returned when a sanction letter is requested for a
	// loan that has not been approved.
	ErrNotApproved = errors.New("loan not approved")
	// ErrNotAwaitingDocuments is returned for a document event outside the
	// salary verification stage.
	ErrNotAwaitingDocuments = errors.New("conversation is not awaiting documents")
)

// ExtractionError means the utterance did not contain the expected field.
// It is recovered with a same-stage reprompt.
type ExtractionError struct {
	Field extract.Field
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no %s found in utterance", e.Field)
}

// ValidationError means an extracted value broke its acceptance rule.
type ValidationError = policy.ValidationError

// ExternalServiceError wraps a failing or timed-out collaborator call.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// ConfigurationError halts a conversation: unknown stage, illegal
// transition or a missing collaborator.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// reprompt returns the customer-facing text for a recoverable capture error.
func reprompt(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reprompt
	}
	var xerr *ExtractionError
	if errors.As(err, &xerr) {
		return policy.Reprompt(xerr.Field)
	}
	return policy.Reprompt("")
}
