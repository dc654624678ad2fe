package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrConnection - backend unreachable or client could not be constructed
	ErrConnection = errors.New("connection error")

	// ErrTimeout - request exceeded its deadline
	ErrTimeout = errors.New("timeout")

	// ErrHTTP - backend answered with a non-2xx status
	ErrHTTP = errors.New("http error")

	// ErrAgentCreation - backend refused or failed to create the agent
	ErrAgentCreation = errors.New("agent creation failed")

	// ErrSessionCreation - backend refused or failed to create the agent session
	ErrSessionCreation = errors.New("session creation failed")

	// ErrExtraction - turn document had an unexpected shape
	ErrExtraction = errors.New("extraction error")

	// ErrInvalidInput - caller supplied an invalid prompt, model or option
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy - a request is already in flight for the conversation
	ErrBusy = errors.New("request in flight")
)

// HTTPError carries the status and body of a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return ErrHTTP
}

// NewHTTPError builds an HTTPError, truncating very long bodies.
func NewHTTPError(statusCode int, body string) *HTTPError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return &HTTPError{StatusCode: statusCode, Body: body}
}
