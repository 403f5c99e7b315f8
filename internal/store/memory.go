package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"citation-validator/internal/models"
)

// MemoryStore is a process-local Store for tests and single-node runs.
// A single mutex serializes every operation, which gives the same
// claim and completion guarantees as the Postgres transactions.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]*models.CitationDocument
	jobs  map[string]*models.ValidationJob
	items map[string]*models.ValidationQueueItem
	// order is the FIFO claim order of item ids.
	order []string
	newID func() string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*models.CitationDocument),
		jobs:  make(map[string]*models.ValidationJob),
		items: make(map[string]*models.ValidationQueueItem),
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) GetDocumentVersion(ctx context.Context, checkID string) (*models.CitationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[checkID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return copyDocument(doc)
}

func (s *MemoryStore) SaveDocument(ctx context.Context, doc *models.CitationDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = s.newID()
	}
	if doc.SourceFileID == "" {
		doc.SourceFileID = doc.ID
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	seen := make(map[string]bool, len(doc.Citations))
	for i, c := range doc.Citations {
		if c.ID == "" {
			return fmt.Errorf("citation at position %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate citation id %s", c.ID)
		}
		seen[c.ID] = true
	}
	cp, err := copyDocument(doc)
	if err != nil {
		return err
	}
	s.docs[doc.ID] = cp
	return nil
}

func (s *MemoryStore) UpdateDocumentCitation(ctx context.Context, checkID, citationID string, patch models.CitationPatch) (*models.CitationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.patchLocked(checkID, citationID, patch); err != nil {
		return nil, err
	}
	return copyDocument(s.docs[checkID])
}

func (s *MemoryStore) patchLocked(checkID, citationID string, patch models.CitationPatch) error {
	doc, ok := s.docs[checkID]
	if !ok {
		return ErrDocumentNotFound
	}
	c, ok := doc.CitationByID(citationID)
	if !ok {
		return ErrCitationNotFound
	}
	patch.Apply(c)
	return nil
}

func (s *MemoryStore) CreateDocumentVersion(ctx context.Context, sourceID string) (*models.CitationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.docs[sourceID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	version := 0
	for _, d := range s.docs {
		if d.SourceFileID == src.SourceFileID && d.Version > version {
			version = d.Version
		}
	}
	cp, err := copyDocument(src)
	if err != nil {
		return nil, err
	}
	cp.ID = s.newID()
	cp.Version = version + 1
	cp.CreatedAt = s.now()
	s.docs[cp.ID] = cp
	return copyDocument(cp)
}

func (s *MemoryStore) CreateJob(ctx context.Context, checkID string, forceTier3 bool, refs []CitationRef) (*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[checkID]; !ok {
		return nil, ErrDocumentNotFound
	}
	now := s.now()
	job := &models.ValidationJob{
		ID:         s.newID(),
		CheckID:    checkID,
		Status:     models.JobStatusPending,
		Tier2Total: len(refs),
		ForceTier3: forceTier3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.jobs[job.ID] = job
	for _, ref := range refs {
		s.enqueueLocked(job.ID, ref, models.Tier2)
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) enqueueLocked(jobID string, ref CitationRef, tier models.Tier) {
	item := &models.ValidationQueueItem{
		ID:            s.newID(),
		JobID:         jobID,
		CitationID:    ref.ID,
		CitationIndex: ref.Index,
		Tier:          tier,
		Status:        models.ItemStatusPending,
		CreatedAt:     s.now(),
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
}

func (s *MemoryStore) Enqueue(ctx context.Context, jobID string, refs []CitationRef, tier models.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if tier == models.Tier3 {
		job.Tier3Total += len(refs)
	} else {
		job.Tier2Total += len(refs)
	}
	job.UpdatedAt = s.now()
	for _, ref := range refs {
		s.enqueueLocked(jobID, ref, tier)
	}
	return nil
}

func (s *MemoryStore) ClaimNext(ctx context.Context) (*models.ClaimedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		item := s.items[id]
		if item.Status != models.ItemStatusPending {
			continue
		}
		now := s.now()
		item.Status = models.ItemStatusProcessing
		item.Attempts++
		item.StartedAt = &now

		job := s.jobs[item.JobID]
		if job.Status == models.JobStatusPending {
			job.Status = models.JobStatusProcessing
			job.UpdatedAt = now
		}

		claimed := &models.ClaimedItem{Item: copyItem(item), Job: *job}
		doc, ok := s.docs[job.CheckID]
		if !ok {
			return claimed, ErrDocumentNotFound
		}
		cp, err := copyDocument(doc)
		if err != nil {
			return claimed, err
		}
		claimed.Document = *cp
		return claimed, nil
	}
	return nil, ErrNoPendingItems
}

func (s *MemoryStore) CompleteItem(ctx context.Context, itemID string, c Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.Status != models.ItemStatusProcessing {
		return ErrItemNotProcessing
	}
	job, ok := s.jobs[item.JobID]
	if !ok {
		return ErrJobNotFound
	}
	// Patch first so a missing citation leaves item and job untouched.
	if err := s.patchLocked(job.CheckID, item.CitationID, c.Patch); err != nil {
		return err
	}

	now := s.now()
	item.Status = models.ItemStatusCompleted
	item.Result = append(json.RawMessage(nil), c.Result...)
	item.Error = ""
	item.FinishedAt = &now

	if item.Tier == models.Tier3 {
		job.Tier3Completed++
	} else {
		job.Tier2Completed++
	}
	job.Usage = job.Usage.Add(c.Usage)
	job.UpdatedAt = now

	if c.Escalate && item.Tier == models.Tier2 {
		job.Tier3Total++
		s.enqueueLocked(job.ID, CitationRef{ID: item.CitationID, Index: item.CitationIndex}, models.Tier3)
	}
	return nil
}

func (s *MemoryStore) FailItem(ctx context.Context, itemID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.Status != models.ItemStatusProcessing {
		return ErrItemNotProcessing
	}
	now := s.now()
	item.Status = models.ItemStatusFailed
	item.Error = reason
	item.FinishedAt = &now
	return nil
}

func (s *MemoryStore) RetryFailed(ctx context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return 0, ErrJobNotFound
	}
	reset := 0
	for _, id := range s.order {
		item := s.items[id]
		if item.JobID != jobID || item.Status != models.ItemStatusFailed {
			continue
		}
		item.Status = models.ItemStatusPending
		item.Error = ""
		item.StartedAt = nil
		item.FinishedAt = nil
		reset++
	}
	if reset > 0 {
		job.Status = models.JobStatusProcessing
		job.Error = ""
		job.CompletedAt = nil
		job.UpdatedAt = s.now()
	}
	return reset, nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) UpdateJobStatus(ctx context.Context, jobID string, from, status models.JobStatus, errMsg string) (*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != from {
		return nil, ErrStatusConflict
	}
	now := s.now()
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = now
	if status.Terminal() {
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}
	} else {
		job.CompletedAt = nil
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) CountItems(ctx context.Context, jobID string) (models.ItemCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts models.ItemCounts
	for _, item := range s.items {
		if item.JobID != jobID {
			continue
		}
		tc := &counts.Tier2
		if item.Tier == models.Tier3 {
			tc = &counts.Tier3
		}
		switch item.Status {
		case models.ItemStatusPending:
			tc.Pending++
		case models.ItemStatusProcessing:
			tc.Processing++
		case models.ItemStatusCompleted:
			tc.Completed++
		case models.ItemStatusFailed:
			tc.Failed++
		}
	}
	return counts, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, jobID string) ([]models.ValidationQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []models.ValidationQueueItem{}
	for _, id := range s.order {
		if item := s.items[id]; item.JobID == jobID {
			items = append(items, copyItem(item))
		}
	}
	return items, nil
}

func (s *MemoryStore) FirstItemError(ctx context.Context, jobID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []*models.ValidationQueueItem
	for _, id := range s.order {
		if item := s.items[id]; item.JobID == jobID && item.Status == models.ItemStatusFailed {
			failed = append(failed, item)
		}
	}
	if len(failed) == 0 {
		return "", nil
	}
	sort.SliceStable(failed, func(i, j int) bool {
		a, b := failed[i], failed[j]
		if a.FinishedAt != nil && b.FinishedAt != nil && !a.FinishedAt.Equal(*b.FinishedAt) {
			return a.FinishedAt.Before(*b.FinishedAt)
		}
		return false
	})
	return failed[0].Error, nil
}

func (s *MemoryStore) HasPending(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Status == models.ItemStatusPending {
			return true, nil
		}
	}
	return false, nil
}

// copyDocument deep-copies through JSON so callers never share the stored
// citation results.
func copyDocument(doc *models.CitationDocument) (*models.CitationDocument, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	var cp models.CitationDocument
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return &cp, nil
}

func copyItem(item *models.ValidationQueueItem) models.ValidationQueueItem {
	cp := *item
	if item.Result != nil {
		cp.Result = append(json.RawMessage(nil), item.Result...)
	}
	return cp
}

var _ Store = (*MemoryStore)(nil)
