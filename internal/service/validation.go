// internal/service/validation.go
package service

import (
	"context"
	"errors"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/verdict"
	"citation-validator/internal/models"
	"citation-validator/internal/store"
	jobtracker "citation-validator/internal/workers/validation/job-tracker"
)

// Waker is nudged when new work was enqueued.
type Waker interface {
	Wake()
}

type StartOptions struct {
	ForceTier3 bool `json:"forceTier3"`
}

// ValidationService is the entry point used by the HTTP API.
type ValidationService struct {
	store       store.Store
	tracker     *jobtracker.Handler
	credentials verdict.CredentialChecker
	waker       Waker
	logger      logger.Logger
}

// NewValidationService builds the service. credentials and waker may be nil.
func NewValidationService(st store.Store, tracker *jobtracker.Handler, credentials verdict.CredentialChecker, waker Waker, log logger.Logger) *ValidationService {
	return &ValidationService{
		store:       st,
		tracker:     tracker,
		credentials: credentials,
		waker:       waker,
		logger:      logger.Component(log, "validation-service"),
	}
}

// StartValidation creates a job with one tier2 item per citation of checkID.
// It fails before touching the queue when the provider has no credentials.
func (s *ValidationService) StartValidation(ctx context.Context, checkID string, opts StartOptions) (*models.ValidationJob, error) {
	if s.credentials != nil {
		if err := s.credentials.CheckCredentials(); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.GetDocumentVersion(ctx, checkID)
	if err != nil {
		return nil, mapStoreError(err, "get document", checkID)
	}

	refs := store.RefsOf(doc.Citations)
	if skipped := len(doc.Citations) - len(refs); skipped > 0 {
		s.logger.Warn("citations without id skipped", map[string]interface{}{
			"checkId": checkID,
			"skipped": skipped,
		})
	}

	job, err := s.store.CreateJob(ctx, checkID, opts.ForceTier3, refs)
	if err != nil {
		return nil, mapStoreError(err, "create job", checkID)
	}

	s.logger.Info("validation job created", map[string]interface{}{
		"jobId":      job.ID,
		"checkId":    checkID,
		"citations":  len(refs),
		"forceTier3": opts.ForceTier3,
	})

	if len(refs) == 0 {
		// Nothing to claim, so no worker would ever finish this job.
		if job, err = s.tracker.Recompute(ctx, job.ID); err != nil {
			return nil, err
		}
		return job, nil
	}

	s.wake()
	return job, nil
}

func (s *ValidationService) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	return s.tracker.Status(ctx, jobID)
}

func (s *ValidationService) GetJob(ctx context.Context, jobID string) (*models.ValidationJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, mapStoreError(err, "get job", jobID)
	}
	return job, nil
}

// RetryFailed re-drives a job's failed items.
func (s *ValidationService) RetryFailed(ctx context.Context, jobID string) (int, error) {
	n, err := s.store.RetryFailed(ctx, jobID)
	if err != nil {
		return 0, mapStoreError(err, "retry failed items", jobID)
	}
	s.logger.Info("failed items re-queued", map[string]interface{}{
		"jobId": jobID,
		"items": n,
	})
	if n > 0 {
		s.wake()
	}
	return n, nil
}

func (s *ValidationService) ListItems(ctx context.Context, jobID string) ([]models.ValidationQueueItem, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, jobID)
	if err != nil {
		return nil, apperrors.NewDatabaseOperationFailedError("list items", err)
	}
	return items, nil
}

func (s *ValidationService) GetDocument(ctx context.Context, id string) (*models.CitationDocument, error) {
	doc, err := s.store.GetDocumentVersion(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "get document", id)
	}
	return doc, nil
}

func (s *ValidationService) SaveDocument(ctx context.Context, doc *models.CitationDocument) error {
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return apperrors.NewDatabaseOperationFailedError("save document", err)
	}
	return nil
}

func (s *ValidationService) CreateDocumentVersion(ctx context.Context, sourceID string) (*models.CitationDocument, error) {
	doc, err := s.store.CreateDocumentVersion(ctx, sourceID)
	if err != nil {
		return nil, mapStoreError(err, "create document version", sourceID)
	}
	s.logger.Info("document version created", map[string]interface{}{
		"sourceId": sourceID,
		"id":       doc.ID,
		"version":  doc.Version,
	})
	return doc, nil
}

func (s *ValidationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ValidationService) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

func mapStoreError(err error, op, id string) error {
	switch {
	case errors.Is(err, store.ErrDocumentNotFound):
		return apperrors.NewDocumentNotFoundError(id)
	case errors.Is(err, store.ErrJobNotFound):
		return apperrors.NewJobNotFoundError(id)
	default:
		return apperrors.NewDatabaseOperationFailedError(op, err)
	}
}
