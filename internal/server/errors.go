package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/convo-recap/internal/pipeline"
	"github.com/jonathan/convo-recap/internal/tokens"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrRunNotFound indicates no run exists for the given processing ID
type ErrRunNotFound struct {
	ProcessingID uuid.UUID
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.ProcessingID)
}

// ErrConversationNotFound indicates no run exists for a conversation
type ErrConversationNotFound struct {
	ConversationID string
}

func (e *ErrConversationNotFound) Error() string {
	return fmt.Sprintf("conversation not found: %s", e.ConversationID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if errors.Is(err, tokens.ErrInvalidOrExpired) {
		// Uniform response for unknown, used, and expired tokens.
		return http.StatusNotFound
	}
	if errors.Is(err, pipeline.ErrNotActive) {
		return http.StatusConflict
	}

	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrRunNotFound, *ErrConversationNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
