// internal/workers/validation/queue-worker/handler.go
package queueworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/metrics"
	"citation-validator/internal/models"
	"citation-validator/internal/store"
)

const TaskType = "queue-worker"

type Tier2Evaluator interface {
	Evaluate(ctx context.Context, citation models.Citation, cctx models.CitationContext) (*models.Tier2Result, error)
}

type Tier3Evaluator interface {
	Evaluate(ctx context.Context, citation models.Citation, cctx models.CitationContext, tier2 *models.Tier2Result) (*models.Tier3Result, error)
}

// Tracker recomputes a job after one of its items finished.
type Tracker interface {
	ItemFinished(ctx context.Context, item models.ValidationQueueItem) (*models.ValidationJob, error)
}

// Outcome is what happened to one claimed item.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeLost means the item left processing under us and nothing was written.
	OutcomeLost Outcome = "lost"
)

// BatchResult summarizes one or more batches.
type BatchResult struct {
	Processed int  `json:"processed"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Batches   int  `json:"batches"`
	HasMore   bool `json:"hasMore"`
}

func (r *BatchResult) add(o BatchResult) {
	r.Processed += o.Processed
	r.Completed += o.Completed
	r.Failed += o.Failed
	r.Batches += o.Batches
	r.HasMore = o.HasMore
}

type Handler struct {
	config     *Config
	queue      store.Queue
	tier2      Tier2Evaluator
	tier3      Tier3Evaluator
	tracker    Tracker
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, queue store.Queue, tier2 Tier2Evaluator, tier3 Tier3Evaluator, tracker Tracker, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		queue:      queue,
		tier2:      tier2,
		tier3:      tier3,
		tracker:    tracker,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
	}
}

// Drain runs batches until the queue is empty or the continuation cap is hit.
// HasMore on the result means work remained when Drain gave up.
func (h *Handler) Drain(ctx context.Context) (BatchResult, error) {
	var total BatchResult
	for {
		res, err := h.ProcessBatch(ctx)
		total.add(res)
		if err != nil || !res.HasMore || ctx.Err() != nil {
			return total, err
		}
		if total.Batches > h.config.MaxContinuations {
			h.logger.Warn("continuation cap reached", map[string]interface{}{
				"batches":   total.Batches,
				"processed": total.Processed,
			})
			return total, nil
		}
		metrics.BatchContinuations.Inc()
	}
}

// ProcessBatch claims and processes items until the queue is empty, the
// batch size is reached or the batch deadline passes.
func (h *Handler) ProcessBatch(ctx context.Context) (BatchResult, error) {
	res := BatchResult{Batches: 1}
	deadline := time.Now().Add(h.config.BatchDeadline)

	for h.config.BatchSize <= 0 || res.Processed < h.config.BatchSize {
		if h.config.BatchDeadline > 0 && !time.Now().Before(deadline) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		outcome, err := h.ProcessNext(ctx)
		if errors.Is(err, store.ErrNoPendingItems) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Processed++
		switch outcome {
		case OutcomeCompleted:
			res.Completed++
		case OutcomeFailed:
			res.Failed++
		}
	}

	more, err := h.queue.HasPending(ctx)
	if err != nil {
		return res, apperrors.NewDatabaseOperationFailedError("check pending items", err)
	}
	res.HasMore = more
	return res, nil
}

// ProcessNext claims one item and drives it to completed or failed.
// It returns store.ErrNoPendingItems when nothing is claimable.
func (h *Handler) ProcessNext(ctx context.Context) (Outcome, error) {
	claimed, err := h.queue.ClaimNext(ctx)
	if errors.Is(err, store.ErrNoPendingItems) {
		return "", err
	}
	if err != nil && claimed == nil {
		return "", apperrors.NewDatabaseOperationFailedError("claim next item", err)
	}

	item := claimed.Item
	tier := string(item.Tier)
	metrics.QueueItemsClaimed.WithLabelValues(tier).Inc()
	defer metrics.QueueItemsClaimed.WithLabelValues(tier).Dec()

	// A claimed item is finished even if the caller is shutting down.
	itemCtx := context.WithoutCancel(ctx)
	if h.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(itemCtx, h.config.ItemTimeout)
		defer cancel()
	}

	var outcome Outcome
	switch {
	case errors.Is(err, store.ErrDocumentNotFound):
		outcome = h.fail(itemCtx, item, apperrors.NewDocumentNotFoundError(claimed.Job.CheckID))
	case err != nil:
		outcome = h.fail(itemCtx, item, apperrors.NewDatabaseOperationFailedError("load document", err))
	default:
		outcome = h.process(itemCtx, claimed)
	}

	metrics.QueueItemsProcessed.WithLabelValues(tier, string(outcome)).Inc()
	if outcome != OutcomeLost {
		if _, err := h.tracker.ItemFinished(itemCtx, item); err != nil {
			h.logger.Error("job recompute failed", map[string]interface{}{
				"jobId":  item.JobID,
				"itemId": item.ID,
				"error":  err.Error(),
			})
		}
	}
	return outcome, nil
}

func (h *Handler) process(ctx context.Context, claimed *models.ClaimedItem) Outcome {
	item := claimed.Item
	log := h.logger.WithFields(map[string]interface{}{
		"itemId":     item.ID,
		"jobId":      item.JobID,
		"citationId": item.CitationID,
		"tier":       string(item.Tier),
	})

	citation, ok := claimed.Document.CitationAt(item.CitationIndex, item.CitationID)
	if !ok {
		return h.fail(ctx, item, apperrors.NewCitationNotFoundError(item.CitationID, item.CitationIndex))
	}
	cctx := claimed.Document.ContextFor(citation, h.config.ContextWindow)

	log.Debug("processing queue item", map[string]interface{}{"attempt": item.Attempts})

	var completion store.Completion
	switch item.Tier {
	case models.Tier2:
		res, err := h.tier2.Evaluate(ctx, *citation, cctx)
		if err != nil {
			return h.fail(ctx, item, err)
		}
		completion = store.Completion{
			Patch:    models.CitationPatch{Tier2: res},
			Usage:    res.Usage,
			Escalate: res.Consensus.Tier3Trigger || claimed.Job.ForceTier3,
		}
		if completion.Result, err = json.Marshal(res); err != nil {
			return h.fail(ctx, item, fmt.Errorf("encode tier2 result: %w", err))
		}
		if completion.Escalate {
			reason := "trigger"
			if !res.Consensus.Tier3Trigger {
				reason = "forced"
			}
			metrics.Escalations.WithLabelValues(reason).Inc()
		}

	case models.Tier3:
		res, err := h.tier3.Evaluate(ctx, *citation, cctx, citation.Tier2)
		if err != nil {
			return h.fail(ctx, item, err)
		}
		completion = store.Completion{
			Patch: models.CitationPatch{Tier3: res},
			Usage: res.Usage,
		}
		if completion.Result, err = json.Marshal(res); err != nil {
			return h.fail(ctx, item, fmt.Errorf("encode tier3 result: %w", err))
		}

	default:
		return h.fail(ctx, item, fmt.Errorf("unknown tier %q", item.Tier))
	}

	if err := h.queue.CompleteItem(ctx, item.ID, completion); err != nil {
		switch {
		case errors.Is(err, store.ErrItemNotProcessing):
			log.Warn("item no longer processing, result dropped", nil)
			return OutcomeLost
		case errors.Is(err, store.ErrCitationNotFound):
			return h.fail(ctx, item, apperrors.NewCitationNotFoundError(item.CitationID, item.CitationIndex))
		default:
			return h.fail(ctx, item, apperrors.NewDatabaseOperationFailedError("complete item", err))
		}
	}

	log.Info("queue item completed", map[string]interface{}{
		"escalated": completion.Escalate,
		"tokens":    completion.Usage.TotalTokens,
	})
	return OutcomeCompleted
}

func (h *Handler) fail(ctx context.Context, item models.ValidationQueueItem, err error) Outcome {
	stdErr, failErr := h.errHandler.HandleItemError(ctx, h.queue, item, err)
	if failErr != nil {
		if errors.Is(failErr, store.ErrItemNotProcessing) {
			return OutcomeLost
		}
		// The item stays in processing; a manual re-drive is needed.
		metrics.QueueItemsFailed.WithLabelValues(string(item.Tier), string(apperrors.ErrCodeDatabaseOperationFailed)).Inc()
		return OutcomeFailed
	}
	metrics.QueueItemsFailed.WithLabelValues(string(item.Tier), string(stdErr.Code)).Inc()
	return OutcomeFailed
}
