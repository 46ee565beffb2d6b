package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified scraping failure.
type ErrorCode string

const (
	ErrCodeStructural       ErrorCode = "structural"
	ErrCodeTransport        ErrorCode = "transport"
	ErrCodeTimeout          ErrorCode = "timeout"
	ErrCodeCancelled        ErrorCode = "cancelled"
	ErrCodeParse            ErrorCode = "parse_error"
	ErrCodeUnknownOperation ErrorCode = "unknown_operation"
	ErrCodeProcessing       ErrorCode = "processing_error"
)

// ScrapeError is the structured failure returned across the request boundary.
type ScrapeError struct {
	Code      ErrorCode
	Operation string
	Message   string
	Cause     error
}

func (e *ScrapeError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects err and returns a *ScrapeError with the matching code.
// Sentinels are checked before message patterns; anything unmatched becomes
// ErrCodeProcessing.
func ClassifyError(err error, operation string) *ScrapeError {
	if err == nil {
		return nil
	}

	var existing *ScrapeError
	if errors.As(err, &existing) {
		if existing.Operation == "" {
			existing.Operation = operation
		}
		return existing
	}

	se := &ScrapeError{
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
	}

	switch {
	case errors.Is(err, ErrTransport):
		se.Code = ErrCodeTransport
		return se
	case errors.Is(err, ErrStructural):
		se.Code = ErrCodeStructural
		return se
	case errors.Is(err, ErrUnknownOperation):
		se.Code = ErrCodeUnknownOperation
		return se
	case errors.Is(err, context.DeadlineExceeded):
		se.Code = ErrCodeTimeout
		se.Message = "operation timed out"
		return se
	case errors.Is(err, context.Canceled):
		se.Code = ErrCodeCancelled
		se.Message = "operation cancelled"
		return se
	}

	lower := strings.ToLower(err.Error())

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "i/o timeout") || strings.Contains(lower, "broken pipe") {
		se.Code = ErrCodeTransport
		return se
	}

	if strings.Contains(lower, "parsing html") || strings.Contains(lower, "parse snapshot") ||
		strings.Contains(lower, "malformed") {
		se.Code = ErrCodeParse
		return se
	}

	se.Code = ErrCodeProcessing
	return se
}

// CodeOf returns the classified code of err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if se := ClassifyError(err, ""); se != nil {
		return se.Code
	}
	return ""
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(CodeOf(err))
}
