package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/joshsymonds/pocforge/internal/provider"
)

// ErrorType represents the type of execution error.
type ErrorType string

const (
	// ErrorTypeTransport indicates a timeout, network failure, 429, 5xx or transient 400.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeParameter indicates the provider rejected the token budget.
	ErrorTypeParameter ErrorType = "parameter"
	// ErrorTypeDeterministic indicates a request that will never succeed as sent.
	ErrorTypeDeterministic ErrorType = "deterministic"
	// ErrorTypeExhausted indicates the retry budget ran out.
	ErrorTypeExhausted ErrorType = "exhausted"
	// ErrorTypeCancelled indicates the caller's context ended.
	ErrorTypeCancelled ErrorType = "cancelled"
)

// MaxDetailLength bounds diagnostic detail carried by errors and outcomes.
const MaxDetailLength = 300

// ExecutionError is the terminal error for one request.
type ExecutionError struct {
	Err       error
	Type      ErrorType
	Provider  provider.Provider
	Message   string
	Detail    string
	Status    int
	Attempts  int
	Retryable bool
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s %s error: %s", e.Provider.Label(), e.Type, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s %s error: %d %s", e.Provider.Label(), e.Type, e.Status, e.Message)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(p provider.Provider, errType ErrorType, status, attempts int, message, detail string, err error) *ExecutionError {
	return &ExecutionError{
		Type:      errType,
		Provider:  p,
		Status:    status,
		Attempts:  attempts,
		Message:   message,
		Detail:    Truncate(detail, MaxDetailLength),
		Err:       err,
		Retryable: isRetryable(errType),
	}
}

func isRetryable(errType ErrorType) bool {
	switch errType {
	case ErrorTypeTransport, ErrorTypeParameter:
		return true
	default:
		return false
	}
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// IsDeterministic reports whether err is a non-retryable request error.
func IsDeterministic(err error) bool {
	return hasType(err, ErrorTypeDeterministic)
}

// IsExhausted reports whether err is a retry-budget exhaustion.
func IsExhausted(err error) bool {
	return hasType(err, ErrorTypeExhausted)
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return hasType(err, ErrorTypeCancelled)
}

// IsRetryable reports whether err is of a retryable category.
func IsRetryable(err error) bool {
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func hasType(err error, t ErrorType) bool {
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
