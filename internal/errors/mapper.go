package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Classify maps transport errors to the stackchat error taxonomy.
// Errors that already carry a category are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if hasCategory(err) {
		return err
	}

	// Propagate cancellation as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", joinCause(ErrTimeout, err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("request timeout: %w", joinCause(ErrTimeout, err))
	}

	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("backend unreachable: %w", joinCause(ErrConnection, err))
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return fmt.Errorf("backend unreachable: %w", joinCause(ErrConnection, err))
	case errors.As(err, &urlErr):
		return fmt.Errorf("backend unreachable: %w", joinCause(ErrConnection, err))
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w", joinCause(ErrTimeout, err))
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"), strings.Contains(errStr, "unreachable"):
		return fmt.Errorf("backend unreachable: %w", joinCause(ErrConnection, err))
	}

	return err
}

// UserMessage returns the fixed, user-readable message for an error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrBusy):
		return "⏳ Still waiting for the previous response."
	case errors.Is(err, ErrAgentCreation):
		return "❌ Could not create the agent on the model backend."
	case errors.Is(err, ErrSessionCreation):
		return "❌ Could not create an agent session on the model backend."
	case errors.Is(err, ErrTimeout):
		return "❌ The model backend took too long to respond. Please try again."
	case errors.As(err, &httpErr):
		return fmt.Sprintf("❌ The model backend returned an error (HTTP %d).", httpErr.StatusCode)
	case errors.Is(err, ErrConnection):
		return "❌ Could not connect to the model backend. Check that it is running and the URL is correct."
	case errors.Is(err, ErrExtraction):
		return "❌ The backend response could not be fully interpreted."
	case errors.Is(err, ErrInvalidInput):
		return "❌ The request was invalid."
	default:
		return fmt.Sprintf("❌ Unexpected error: %v", err)
	}
}

// Category returns the error category name for an error
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBusy):
		return "ErrBusy"
	case errors.Is(err, ErrAgentCreation):
		return "ErrAgentCreation"
	case errors.Is(err, ErrSessionCreation):
		return "ErrSessionCreation"
	case errors.Is(err, ErrTimeout):
		return "ErrTimeout"
	case errors.Is(err, ErrHTTP):
		return "ErrHTTP"
	case errors.Is(err, ErrConnection):
		return "ErrConnection"
	case errors.Is(err, ErrExtraction):
		return "ErrExtraction"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory wraps an error with a specific category while keeping the cause
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, joinCause(category, err))
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// Connection wraps error as connection error
func Connection(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConnection)
}

// Timeout wraps error as timeout
func Timeout(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTimeout)
}

// Extraction wraps error as extraction error
func Extraction(message string) error {
	return fmt.Errorf("%s: %w", message, ErrExtraction)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Busy wraps error as busy
func Busy(message string) error {
	return fmt.Errorf("%s: %w", message, ErrBusy)
}

func hasCategory(err error) bool {
	for _, category := range []error{
		ErrConnection, ErrTimeout, ErrHTTP, ErrAgentCreation, ErrSessionCreation,
		ErrExtraction, ErrInvalidInput, ErrBusy,
	} {
		if errors.Is(err, category) {
			return true
		}
	}
	return false
}

// joinCause keeps both the category and the original cause reachable via errors.Is/As.
func joinCause(category error, cause error) error {
	return &categorized{category: category, cause: cause}
}

type categorized struct {
	category error
	cause    error
}

func (c *categorized) Error() string {
	return c.cause.Error()
}

func (c *categorized) Unwrap() []error {
	return []error{c.category, c.cause}
}
