package models

import (
	"errors"
	"fmt"
)

// ValidationError is a local, pre-network rejection of user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// MessageKind distinguishes success and failure notices
type MessageKind string

const (
	MessageNone    MessageKind = ""
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is the inline user-visible notice left by the last operation
type Message struct {
	Kind MessageKind `json:"kind,omitempty"`
	Text string      `json:"text,omitempty"`
}

// Success builds a success notice
func Success(format string, args ...any) Message {
	return Message{Kind: MessageSuccess, Text: fmt.Sprintf(format, args...)}
}

// Failure builds an error notice. The error text is appended when err is set
// so backend messages reach the user.
func Failure(err error, fallback string) Message {
	if err == nil {
		return Message{Kind: MessageError, Text: fallback}
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return Message{Kind: MessageError, Text: v.Message}
	}
	return Message{Kind: MessageError, Text: fmt.Sprintf("%s: %v", fallback, err)}
}

// IsZero reports whether no notice is set
func (m Message) IsZero() bool {
	return m.Kind == MessageNone && m.Text == ""
}
