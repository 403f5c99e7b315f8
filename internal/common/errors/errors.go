// Package errors provides standardized error handling for the validation pipeline.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeProviderFailed        ErrorCode = "PROVIDER_FAILED"
	ErrCodeProviderTimeout       ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"

	ErrCodePartialPanel   ErrorCode = "PARTIAL_PANEL"
	ErrCodeInvalidVerdict ErrorCode = "INVALID_VERDICT"

	ErrCodeCitationNotFound ErrorCode = "CITATION_NOT_FOUND"
	ErrCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeJobNotFound      ErrorCode = "JOB_NOT_FOUND"
	ErrCodeItemNotClaimed   ErrorCode = "ITEM_NOT_CLAIMED"

	ErrCodeDatabaseOperationFailed ErrorCode = "DATABASE_OPERATION_FAILED"
	ErrCodeEventPublishFailed      ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProviderFailedError wraps a verdict provider failure for one agent.
func NewProviderFailedError(agentID string, err error) *StandardError {
	return newError(ErrCodeProviderFailed, "Verdict provider call failed",
		fmt.Sprintf("agent: %s, error: %v", agentID, err), true, err).
		WithMetadata("agent", agentID)
}

// NewProviderTimeoutError reports a provider call that ran out of time.
func NewProviderTimeoutError(agentID string, err error) *StandardError {
	return newError(ErrCodeProviderTimeout, "Verdict provider call timed out",
		fmt.Sprintf("agent: %s", agentID), true, err).
		WithMetadata("agent", agentID)
}

// NewProviderNotConfiguredError reports missing provider credentials.
func NewProviderNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeProviderNotConfigured, "Verdict provider is not configured", details, false, nil)
}

// NewPartialPanelError reports a panel that returned fewer verdicts than required.
func NewPartialPanelError(tier string, got, want int) *StandardError {
	return newError(ErrCodePartialPanel, "Panel returned an incomplete set of verdicts",
		fmt.Sprintf("tier: %s, got %d of %d", tier, got, want), true, nil)
}

// NewInvalidVerdictError reports a provider response that did not parse into a verdict.
func NewInvalidVerdictError(agentID string, details string) *StandardError {
	return newError(ErrCodeInvalidVerdict, "Agent returned an invalid verdict",
		fmt.Sprintf("agent: %s, %s", agentID, details), true, nil).
		WithMetadata("agent", agentID)
}

// NewCitationNotFoundError reports a queue item whose citation left the document.
func NewCitationNotFoundError(citationID string, index int) *StandardError {
	return newError(ErrCodeCitationNotFound, "Citation no longer present in document",
		fmt.Sprintf("citationId: %s, index: %d", citationID, index), false, nil)
}

// NewDocumentNotFoundError reports an unknown document version.
func NewDocumentNotFoundError(checkID string) *StandardError {
	return newError(ErrCodeDocumentNotFound, "Document version not found",
		fmt.Sprintf("checkId: %s", checkID), false, nil)
}

// NewJobNotFoundError reports an unknown validation job.
func NewJobNotFoundError(jobID string) *StandardError {
	return newError(ErrCodeJobNotFound, "Validation job not found",
		fmt.Sprintf("jobId: %s", jobID), false, nil)
}

// NewItemNotClaimedError reports a complete/fail on an item that is not processing.
func NewItemNotClaimedError(itemID string) *StandardError {
	return newError(ErrCodeItemNotClaimed, "Queue item is not in processing state",
		fmt.Sprintf("itemId: %s", itemID), false, nil)
}

// NewDatabaseOperationFailedError wraps a store failure.
func NewDatabaseOperationFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseOperationFailed, "Database operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

// NewEventPublishFailedError wraps a progress event publishing failure.
func NewEventPublishFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, "Progress event publish failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

// ==========================
// 3. Classification
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return newError(ErrCodeProviderTimeout, "Operation timed out", err.Error(), true, err)
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// CodeOf returns the error code of err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsCode reports whether err normalizes to code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether a manual re-drive of err is expected to help.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Retryable
}

// GetErrorCategory returns the failure class of a code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeProviderNotConfigured:
		return "CONFIGURATION"
	case strings.HasPrefix(codeStr, "PROVIDER"):
		return "PROVIDER"
	case code == ErrCodePartialPanel || code == ErrCodeInvalidVerdict:
		return "PANEL"
	case strings.HasSuffix(codeStr, "NOT_FOUND") || code == ErrCodeItemNotClaimed:
		return "DATA_INTEGRITY"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	default:
		return "OTHER"
	}
}

// FormatItemError renders err as the message stored on a failed queue item.
func FormatItemError(err error) string {
	if err == nil {
		return ""
	}
	return Normalize(err).Error()
}
