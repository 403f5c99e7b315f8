// Package store persists citation documents, validation jobs and the queue.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"citation-validator/internal/models"
)

var (
	ErrNoPendingItems    = errors.New("no pending queue items")
	ErrItemNotProcessing = errors.New("queue item is not processing")
	ErrCitationNotFound  = errors.New("citation not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrJobNotFound       = errors.New("job not found")
	// ErrStatusConflict means the job no longer held the expected status.
	ErrStatusConflict    = errors.New("job status changed concurrently")
)

// CitationRef identifies a citation at enqueue time.
type CitationRef struct {
	ID    string
	Index int
}

// RefsOf returns one ref per citation that has a stable id, in document order.
func RefsOf(citations []models.Citation) []CitationRef {
	refs := make([]CitationRef, 0, len(citations))
	for i, c := range citations {
		if c.ID == "" {
			continue
		}
		refs = append(refs, CitationRef{ID: c.ID, Index: i})
	}
	return refs
}

// Completion is everything CompleteItem writes in one unit.
type Completion struct {
	Result json.RawMessage
	Patch  models.CitationPatch
	Usage  models.Usage
	// Escalate enqueues a tier3 item for the same citation. Ignored for tier3 items.
	Escalate bool
}

type DocumentStore interface {
	GetDocumentVersion(ctx context.Context, checkID string) (*models.CitationDocument, error)
	// UpdateDocumentCitation merges patch into the citation with citationID.
	UpdateDocumentCitation(ctx context.Context, checkID, citationID string, patch models.CitationPatch) (*models.CitationDocument, error)
	// CreateDocumentVersion copies sourceID, citations and their results
	// included, into a new version of the same source file.
	CreateDocumentVersion(ctx context.Context, sourceID string) (*models.CitationDocument, error)
	SaveDocument(ctx context.Context, doc *models.CitationDocument) error
}

type Queue interface {
	// CreateJob inserts a pending job and one pending tier2 item per ref.
	CreateJob(ctx context.Context, checkID string, forceTier3 bool, refs []CitationRef) (*models.ValidationJob, error)
	// Enqueue adds pending items of tier and raises the job's tier total.
	Enqueue(ctx context.Context, jobID string, refs []CitationRef, tier models.Tier) error
	// ClaimNext moves one pending item to processing. At most one caller can
	// claim a given item. Returns ErrNoPendingItems when the queue is drained.
	ClaimNext(ctx context.Context) (*models.ClaimedItem, error)
	// CompleteItem atomically completes the item, patches its citation,
	// advances the job counters and optionally escalates.
	CompleteItem(ctx context.Context, itemID string, c Completion) error
	FailItem(ctx context.Context, itemID, reason string) error
	// RetryFailed puts a job's failed items back to pending.
	RetryFailed(ctx context.Context, jobID string) (int, error)

	GetJob(ctx context.Context, jobID string) (*models.ValidationJob, error)
	// UpdateJobStatus moves the job from status from to status. It returns
	// ErrStatusConflict when the job is no longer in from.
	UpdateJobStatus(ctx context.Context, jobID string, from, status models.JobStatus, errMsg string) (*models.ValidationJob, error)
	CountItems(ctx context.Context, jobID string) (models.ItemCounts, error)
	ListItems(ctx context.Context, jobID string) ([]models.ValidationQueueItem, error)
	// FirstItemError is the error of the earliest failed item, or "".
	FirstItemError(ctx context.Context, jobID string) (string, error)
	HasPending(ctx context.Context) (bool, error)
}

type Store interface {
	DocumentStore
	Queue
	Ping(ctx context.Context) error
}
