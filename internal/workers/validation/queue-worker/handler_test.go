package queueworker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/models"
	"citation-validator/internal/store"
	jobtracker "citation-validator/internal/workers/validation/job-tracker"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeTier2 struct {
	calls atomic.Int32
	fn    func(c models.Citation) (*models.Tier2Result, error)
}

func (f *fakeTier2) Evaluate(ctx context.Context, c models.Citation, cctx models.CitationContext) (*models.Tier2Result, error) {
	f.calls.Add(1)
	return f.fn(c)
}

type fakeTier3 struct {
	calls    atomic.Int32
	sawTier2 atomic.Bool
}

func (f *fakeTier3) Evaluate(ctx context.Context, c models.Citation, cctx models.CitationContext, t2 *models.Tier2Result) (*models.Tier3Result, error) {
	f.calls.Add(1)
	if t2 != nil {
		f.sawTier2.Store(true)
	}
	return &models.Tier3Result{
		Consensus: models.Tier3Consensus{FinalRiskLevel: models.RiskLow, AgreementLevel: models.AgreementUnanimous},
		Usage:     models.Usage{TotalTokens: 30},
	}, nil
}

func tier2Result(trigger bool) *models.Tier2Result {
	rec := models.RecommendationLikelyValid
	agreement := models.AgreementUnanimous
	if trigger {
		rec = models.RecommendationUncertain
		agreement = models.AgreementSplit
	}
	return &models.Tier2Result{
		Consensus: models.Consensus{AgreementLevel: agreement, Recommendation: rec, Tier3Trigger: trigger},
		Usage:     models.Usage{TotalTokens: 100, Cost: 0.01},
	}
}

func createTestConfig() *Config {
	return &Config{
		Concurrency:      2,
		BatchSize:        50,
		BatchDeadline:    10 * time.Second,
		MaxContinuations: 5,
		PollInterval:     10 * time.Millisecond,
		ItemTimeout:      5 * time.Second,
		ContextWindow:    200,
	}
}

type fixture struct {
	store   *store.MemoryStore
	handler *Handler
	tier2   *fakeTier2
	tier3   *fakeTier3
	doc     *models.CitationDocument
}

func newFixture(t *testing.T, cfg *Config, ids ...string) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	doc := &models.CitationDocument{
		Blocks: []models.ContentBlock{{ID: "b1", Text: "The court relied on Smith v. Jones for this."}},
	}
	for _, id := range ids {
		doc.Citations = append(doc.Citations, models.Citation{ID: id, Text: "Smith v. Jones", BlockID: "b1"})
	}
	require.NoError(t, s.SaveDocument(context.Background(), doc))

	f := &fixture{
		store: s,
		tier2: &fakeTier2{fn: func(models.Citation) (*models.Tier2Result, error) { return tier2Result(false), nil }},
		tier3: &fakeTier3{},
		doc:   doc,
	}
	log := logger.NewTestLogger(t)
	tracker := jobtracker.NewHandler(s, nil, nil, log)
	f.handler = NewHandler(cfg, s, f.tier2, f.tier3, tracker, log)
	return f
}

func (f *fixture) start(t *testing.T, force bool, refs []store.CitationRef) *models.ValidationJob {
	t.Helper()
	if refs == nil {
		refs = store.RefsOf(f.doc.Citations)
	}
	job, err := f.store.CreateJob(context.Background(), f.doc.ID, force, refs)
	require.NoError(t, err)
	return job
}

func (f *fixture) job(t *testing.T, id string) *models.ValidationJob {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

// ==========================
// Handler Tests
// ==========================

func TestDrain_UnanimousValidCompletesWithoutEscalation(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2")
	job := f.start(t, false, nil)

	res, err := f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Completed)
	assert.False(t, res.HasMore)
	assert.Zero(t, f.tier3.calls.Load())

	got := f.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Tier2Completed)
	assert.Zero(t, got.Tier3Total)
	assert.Equal(t, 200, got.Usage.TotalTokens)
}

func TestDrain_TriggerEscalatesToTier3(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2")
	f.tier2.fn = func(c models.Citation) (*models.Tier2Result, error) {
		return tier2Result(c.ID == "c2"), nil
	}
	job := f.start(t, false, nil)

	res, err := f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, int32(1), f.tier3.calls.Load())
	assert.True(t, f.tier3.sawTier2.Load())

	got := f.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Tier3Total)
	assert.Equal(t, 1, got.Tier3Completed)

	doc, err := f.store.GetDocumentVersion(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.Citations[0].Tier3)
	require.NotNil(t, doc.Citations[1].Tier3)
	assert.Equal(t, models.RiskLow, doc.Citations[1].Tier3.Consensus.FinalRiskLevel)
}

func TestDrain_ForceTier3EscalatesEveryCitation(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2")
	job := f.start(t, true, nil)

	_, err := f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tier3.calls.Load())
	assert.Equal(t, 2, f.job(t, job.ID).Tier3Completed)
}

func TestDrain_ProviderFailureIsIsolated(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2", "c3")
	f.tier2.fn = func(c models.Citation) (*models.Tier2Result, error) {
		if c.ID == "c2" {
			return nil, apperrors.NewProviderFailedError("authority-validator", errors.New("502 bad gateway"))
		}
		return tier2Result(false), nil
	}
	job := f.start(t, false, nil)

	res, err := f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 1, res.Failed)

	got := f.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.True(t, strings.HasPrefix(got.Error, string(apperrors.ErrCodeProviderFailed)), got.Error)

	items, err := f.store.ListItems(context.Background(), job.ID)
	require.NoError(t, err)
	statuses := map[string]models.ItemStatus{}
	for _, it := range items {
		statuses[it.CitationID] = it.Status
	}
	assert.Equal(t, models.ItemStatusCompleted, statuses["c1"])
	assert.Equal(t, models.ItemStatusFailed, statuses["c2"])
	assert.Equal(t, models.ItemStatusCompleted, statuses["c3"])
}

func TestProcessNext_MissingCitationFailsItem(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1")
	job := f.start(t, false, []store.CitationRef{{ID: "ghost", Index: 9}})

	outcome, err := f.handler.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, f.tier2.calls.Load())

	got := f.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, string(apperrors.ErrCodeCitationNotFound))
}

// claimErrQueue hands out real claims paired with a document load error.
type claimErrQueue struct {
	*store.MemoryStore
	err error
}

func (q *claimErrQueue) ClaimNext(ctx context.Context) (*models.ClaimedItem, error) {
	claimed, err := q.MemoryStore.ClaimNext(ctx)
	if err != nil {
		return claimed, err
	}
	return claimed, q.err
}

func TestProcessNext_DocumentLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"document missing", store.ErrDocumentNotFound, apperrors.ErrCodeDocumentNotFound},
		{"database error", errors.New("connection reset by peer"), apperrors.ErrCodeDatabaseOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, createTestConfig(), "c1")
			job := f.start(t, false, nil)

			q := &claimErrQueue{MemoryStore: f.store, err: tt.err}
			log := logger.NewTestLogger(t)
			h := NewHandler(createTestConfig(), q, f.tier2, f.tier3, jobtracker.NewHandler(f.store, nil, nil, log), log)

			outcome, err := h.ProcessNext(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.Zero(t, f.tier2.calls.Load())

			got := f.job(t, job.ID)
			assert.Equal(t, models.JobStatusFailed, got.Status)
			assert.Contains(t, got.Error, string(tt.wantCode))
		})
	}
}

func TestProcessNext_IndexFallsBackToID(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2")
	// Index points at c1 but the item belongs to c2.
	job := f.start(t, false, []store.CitationRef{{ID: "c2", Index: 0}})

	outcome, err := f.handler.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	doc, err := f.store.GetDocumentVersion(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.Citations[0].Tier2)
	assert.NotNil(t, doc.Citations[1].Tier2)
	assert.Equal(t, models.JobStatusCompleted, f.job(t, job.ID).Status)
}

func TestProcessNext_Empty(t *testing.T) {
	f := newFixture(t, createTestConfig())
	_, err := f.handler.ProcessNext(context.Background())
	assert.ErrorIs(t, err, store.ErrNoPendingItems)
}

func TestProcessBatch_ReportsHasMore(t *testing.T) {
	cfg := createTestConfig()
	cfg.BatchSize = 2
	f := newFixture(t, cfg, "c1", "c2", "c3", "c4", "c5")
	f.start(t, false, nil)

	res, err := f.handler.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.True(t, res.HasMore)
}

func TestDrain_ContinuationCap(t *testing.T) {
	cfg := createTestConfig()
	cfg.BatchSize = 2
	cfg.MaxContinuations = 1
	f := newFixture(t, cfg, "c1", "c2", "c3", "c4", "c5")
	job := f.start(t, false, nil)

	res, err := f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 4, res.Processed)
	assert.True(t, res.HasMore)
	assert.Equal(t, models.JobStatusProcessing, f.job(t, job.ID).Status)

	res, err = f.handler.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.False(t, res.HasMore)
	assert.Equal(t, models.JobStatusCompleted, f.job(t, job.ID).Status)
}

// ==========================
// Pool Tests
// ==========================

func TestPool_DrainsQueue(t *testing.T) {
	f := newFixture(t, createTestConfig(), "c1", "c2", "c3", "c4")
	f.tier2.fn = func(c models.Citation) (*models.Tier2Result, error) {
		return tier2Result(c.ID == "c4"), nil
	}
	job := f.start(t, false, nil)

	pool := NewPool(createTestConfig(), f.handler, logger.NewNoOpLogger())
	pool.Start(context.Background())
	defer pool.Stop()
	pool.Wake()

	assert.Eventually(t, func() bool {
		return f.job(t, job.ID).Status == models.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(4), f.tier2.calls.Load())
	assert.Equal(t, int32(1), f.tier3.calls.Load())
}

func TestPool_StopWaitsForLoops(t *testing.T) {
	f := newFixture(t, createTestConfig())
	pool := NewPool(createTestConfig(), f.handler, logger.NewNoOpLogger())
	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}
