// internal/common/errors/handler.go
package errors

import (
	"context"
	"fmt"

	"citation-validator/internal/models"
)

// ItemFailer marks a claimed queue item as failed.
type ItemFailer interface {
	FailItem(ctx context.Context, itemID, reason string) error
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns item-level errors into failed queue items. One failed
// citation never aborts the worker or its siblings.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleItemError normalizes err, logs it and records it on the item.
// The returned error is non-nil only when the item itself could not be failed.
func (h *ErrorHandler) HandleItemError(ctx context.Context, failer ItemFailer, item models.ValidationQueueItem, err error) (*StandardError, error) {
	stdErr := Normalize(err)

	h.logger.Error("queue item failed", map[string]interface{}{
		"itemId":        item.ID,
		"jobId":         item.JobID,
		"citationId":    item.CitationID,
		"tier":          string(item.Tier),
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
	})

	if failErr := failer.FailItem(ctx, item.ID, FormatItemError(stdErr)); failErr != nil {
		h.logger.Error("failed to record item failure", map[string]interface{}{
			"itemId": item.ID,
			"error":  failErr.Error(),
		})
		return stdErr, fmt.Errorf("fail item %s: %w", item.ID, failErr)
	}
	return stdErr, nil
}
