package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxUtteranceLength bounds a single customer message in bytes.
const MaxUtteranceLength = 4000

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateUtterance validates a customer message.
func ValidateUtterance(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > MaxUtteranceLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a caller-supplied conversation id. Ids are
// UUIDs when the server allocates them, but any short slug is accepted.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return errors.New("invalid conversation ID format")
	}
	return nil
}
