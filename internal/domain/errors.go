package domain

import "errors"

// Common domain errors
var (
	// Conversation errors
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoConversation       = errors.New("no conversation selected")

	// Message errors
	ErrMessageNotFound    = errors.New("message not found")
	ErrEmptyMessage       = errors.New("message content is empty and no files are attached")
	ErrNoUserMessage      = errors.New("no user message available to regenerate from")
	ErrStreamActive       = errors.New("a response stream is already active for this conversation")
	ErrStreamNotActive    = errors.New("no response stream is active")
	ErrStreamInterrupted  = errors.New("response stream interrupted before completion")
	ErrPlaceholderMissing = errors.New("streaming placeholder message not found")

	// Document errors
	ErrDocumentTooLarge    = errors.New("document exceeds the maximum upload size")
	ErrDocumentUnsupported = errors.New("document type is not supported")
	ErrUploadFailed        = errors.New("document upload failed")

	// API errors
	ErrAPIUnavailable = errors.New("chat API unavailable")
	ErrAPIRequest     = errors.New("chat API request failed")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error with context
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// NewDomainErrorWithCode creates a new domain error with context and error code
func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
