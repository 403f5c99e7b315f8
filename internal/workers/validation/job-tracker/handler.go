// internal/workers/validation/job-tracker/handler.go
package jobtracker

import (
	"context"
	"errors"
	"time"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/events"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/metrics"
	"citation-validator/internal/models"
	"citation-validator/internal/store"
)

const TaskType = "job-tracker"

// Notifier is told about jobs that reached a terminal status.
type Notifier interface {
	NotifyJobFinished(ctx context.Context, job models.ValidationJob) error
}

// Handler derives job status from the job's queue items.
type Handler struct {
	queue    store.Queue
	bus      events.Publisher
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewHandler builds a tracker. bus and notifier may be nil.
func NewHandler(queue store.Queue, bus events.Publisher, notifier Notifier, log logger.Logger) *Handler {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Handler{
		queue:    queue,
		bus:      bus,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemFinished announces a finished item and recomputes its job.
func (h *Handler) ItemFinished(ctx context.Context, item models.ValidationQueueItem) (*models.ValidationJob, error) {
	h.publish(ctx, events.Event{
		Type:   events.EventItemFinished,
		JobID:  item.JobID,
		ItemID: item.ID,
		Tier:   item.Tier,
		At:     h.now(),
	})
	return h.Recompute(ctx, item.JobID)
}

// Recompute re-derives the job status from item counts and persists it when
// it changed.
func (h *Handler) Recompute(ctx context.Context, jobID string) (*models.ValidationJob, error) {
	job, err := h.queue.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, apperrors.NewJobNotFoundError(jobID)
		}
		return nil, apperrors.NewDatabaseOperationFailedError("get job", err)
	}
	counts, err := h.queue.CountItems(ctx, jobID)
	if err != nil {
		return nil, apperrors.NewDatabaseOperationFailedError("count items", err)
	}

	var firstErr string
	if counts.Tier2.Failed+counts.Tier3.Failed > 0 {
		if firstErr, err = h.queue.FirstItemError(ctx, jobID); err != nil {
			return nil, apperrors.NewDatabaseOperationFailedError("first item error", err)
		}
	}

	status, errMsg, ok := Decide(job, counts, firstErr)
	if !ok {
		h.logger.Warn("job counters disagree with queue items", map[string]interface{}{
			"jobId":          jobID,
			"tier2Completed": job.Tier2Completed,
			"tier2Total":     job.Tier2Total,
			"tier3Completed": job.Tier3Completed,
			"tier3Total":     job.Tier3Total,
		})
		return job, nil
	}
	if status == job.Status && errMsg == job.Error {
		return job, nil
	}

	updated, err := h.queue.UpdateJobStatus(ctx, jobID, job.Status, status, errMsg)
	if errors.Is(err, store.ErrStatusConflict) {
		// Another worker already moved the job and announced it.
		current, err := h.queue.GetJob(ctx, jobID)
		if err != nil {
			return nil, apperrors.NewDatabaseOperationFailedError("get job", err)
		}
		return current, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseOperationFailedError("update job status", err)
	}
	if status != job.Status {
		h.transitioned(ctx, job.Status, updated)
	}
	return updated, nil
}

// Decide returns the status a job should hold given its item counts.
// ok is false when the items are exhausted but the counters are not
// satisfied, in which case the status is left alone.
func Decide(job *models.ValidationJob, counts models.ItemCounts, firstErr string) (status models.JobStatus, errMsg string, ok bool) {
	active := counts.Tier2.Active() + counts.Tier3.Active()
	if active > 0 {
		started := job.Status == models.JobStatusProcessing ||
			counts.Tier2.Processing+counts.Tier3.Processing > 0 ||
			counts.Tier2.Completed+counts.Tier3.Completed > 0 ||
			counts.Tier2.Failed+counts.Tier3.Failed > 0
		if started {
			return models.JobStatusProcessing, "", true
		}
		return models.JobStatusPending, "", true
	}

	if counts.Tier2.Failed+counts.Tier3.Failed > 0 {
		if firstErr == "" {
			firstErr = "one or more citations failed validation"
		}
		return models.JobStatusFailed, firstErr, true
	}

	tier2Done := job.Tier2Completed >= job.Tier2Total
	tier3Done := job.Tier3Total == 0 || job.Tier3Completed >= job.Tier3Total
	if tier2Done && tier3Done {
		return models.JobStatusCompleted, "", true
	}
	return job.Status, job.Error, false
}

func (h *Handler) transitioned(ctx context.Context, from models.JobStatus, job *models.ValidationJob) {
	metrics.JobTransitions.WithLabelValues(string(job.Status)).Inc()
	h.logger.Info("job status changed", map[string]interface{}{
		"jobId":  job.ID,
		"from":   string(from),
		"to":     string(job.Status),
		"error":  job.Error,
		"tokens": job.Usage.TotalTokens,
		"cost":   job.Usage.Cost,
	})

	h.publish(ctx, events.Event{
		Type:   events.EventJobStatus,
		JobID:  job.ID,
		Status: job.Status,
		At:     h.now(),
	})

	if job.Status.Terminal() && h.notifier != nil {
		if err := h.notifier.NotifyJobFinished(ctx, *job); err != nil {
			h.logger.Warn("job notification failed", map[string]interface{}{
				"jobId": job.ID,
				"error": err.Error(),
			})
		}
	}
}

// publish is best effort. Stream readers also poll.
func (h *Handler) publish(ctx context.Context, ev events.Event) {
	if err := h.bus.Publish(ctx, ev); err != nil {
		h.logger.Warn("progress event dropped", map[string]interface{}{
			"jobId": ev.JobID,
			"type":  string(ev.Type),
			"error": err.Error(),
		})
	}
}

// Status builds the job status view returned to callers.
func (h *Handler) Status(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	job, err := h.queue.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, apperrors.NewJobNotFoundError(jobID)
		}
		return nil, apperrors.NewDatabaseOperationFailedError("get job", err)
	}
	counts, err := h.queue.CountItems(ctx, jobID)
	if err != nil {
		return nil, apperrors.NewDatabaseOperationFailedError("count items", err)
	}
	return View(job, counts), nil
}

// View combines a job with its item counts.
func View(job *models.ValidationJob, counts models.ItemCounts) *models.JobStatusView {
	return &models.JobStatusView{
		JobID:         job.ID,
		CheckID:       job.CheckID,
		Status:        job.Status,
		Tier2Progress: ProgressOf(job.Tier2Completed, job.Tier2Total, counts.Tier2),
		Tier3Progress: ProgressOf(job.Tier3Completed, job.Tier3Total, counts.Tier3),
		Error:         job.Error,
		Usage:         job.Usage,
		UpdatedAt:     job.UpdatedAt,
	}
}

// ProgressOf is the per-tier progress. Percentage is floored and 0 when
// total is 0.
func ProgressOf(current, total int, c models.TierCounts) models.Progress {
	pct := 0
	if total > 0 {
		pct = current * 100 / total
		if pct > 100 {
			pct = 100
		}
	}
	return models.Progress{
		Current:    current,
		Total:      total,
		Percentage: pct,
		Pending:    c.Pending,
		Processing: c.Processing,
		Completed:  c.Completed,
		Failed:     c.Failed,
	}
}
