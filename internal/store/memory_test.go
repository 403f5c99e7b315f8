package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citation-validator/internal/models"
)

func seedDocument(t *testing.T, s *MemoryStore, ids ...string) *models.CitationDocument {
	t.Helper()
	doc := &models.CitationDocument{
		SourceFileID: "file-1",
		Blocks:       []models.ContentBlock{{ID: "b1", Text: "As held in X v. Y, the rule applies."}},
	}
	for _, id := range ids {
		doc.Citations = append(doc.Citations, models.Citation{ID: id, Text: "X v. Y", Type: models.CitationTypeCase, BlockID: "b1"})
	}
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	return doc
}

func TestMemoryStore_ConcurrentClaimsAreExclusive(t *testing.T) {
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1", "c2", "c3", "c4", "c5")
	_, err := s.CreateJob(context.Background(), doc.ID, false, RefsOf(doc.Citations))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, err := s.ClaimNext(context.Background())
				if errors.Is(err, ErrNoPendingItems) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				claimed[c.Item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, 5)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "item %s claimed more than once", id)
	}
}

func TestMemoryStore_ClaimNext_FIFOAndJobProcessing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1", "c2")
	job, err := s.CreateJob(ctx, doc.ID, false, RefsOf(doc.Citations))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	first, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", first.Item.CitationID)
	assert.Equal(t, models.ItemStatusProcessing, first.Item.Status)
	assert.Equal(t, 1, first.Item.Attempts)
	assert.Equal(t, models.JobStatusProcessing, first.Job.Status)
	assert.Len(t, first.Document.Citations, 2)

	second, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", second.Item.CitationID)

	_, err = s.ClaimNext(ctx)
	assert.ErrorIs(t, err, ErrNoPendingItems)
}

func TestMemoryStore_CompleteItem_PatchesAndEscalates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1")
	job, err := s.CreateJob(ctx, doc.ID, false, RefsOf(doc.Citations))
	require.NoError(t, err)

	c, err := s.ClaimNext(ctx)
	require.NoError(t, err)

	t2 := &models.Tier2Result{Consensus: models.Consensus{Recommendation: models.RecommendationUncertain, Tier3Trigger: true}}
	err = s.CompleteItem(ctx, c.Item.ID, Completion{
		Result:   []byte(`{"ok":true}`),
		Patch:    models.CitationPatch{Tier2: t2},
		Usage:    models.Usage{TotalTokens: 500, Cost: 0.05},
		Escalate: true,
	})
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Tier2Completed)
	assert.Equal(t, 1, got.Tier3Total)
	assert.Equal(t, 500, got.Usage.TotalTokens)

	stored, err := s.GetDocumentVersion(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Citations[0].Tier2)
	assert.Equal(t, models.RecommendationUncertain, stored.Citations[0].Tier2.Consensus.Recommendation)

	next, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Tier3, next.Item.Tier)
	assert.Equal(t, "c1", next.Item.CitationID)

	// Completing twice is rejected.
	err = s.CompleteItem(ctx, c.Item.ID, Completion{})
	assert.ErrorIs(t, err, ErrItemNotProcessing)
}

func TestMemoryStore_CompleteItem_MissingCitationIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1")
	job, err := s.CreateJob(ctx, doc.ID, false, []CitationRef{{ID: "ghost", Index: 7}})
	require.NoError(t, err)

	c, err := s.ClaimNext(ctx)
	require.NoError(t, err)

	err = s.CompleteItem(ctx, c.Item.ID, Completion{Patch: models.CitationPatch{Tier2: &models.Tier2Result{}}, Escalate: true})
	assert.ErrorIs(t, err, ErrCitationNotFound)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Tier2Completed)
	assert.Zero(t, got.Tier3Total)

	counts, err := s.CountItems(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Tier2.Processing)
	assert.Zero(t, counts.Tier3.Total())
}

func TestMemoryStore_FailAndRetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1", "c2")
	job, err := s.CreateJob(ctx, doc.ID, false, RefsOf(doc.Citations))
	require.NoError(t, err)

	a, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	b, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailItem(ctx, a.Item.ID, "PROVIDER_FAILED: first"))
	require.NoError(t, s.FailItem(ctx, b.Item.ID, "PROVIDER_FAILED: second"))
	assert.ErrorIs(t, s.FailItem(ctx, a.Item.ID, "again"), ErrItemNotProcessing)

	msg, err := s.FirstItemError(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "PROVIDER_FAILED: first", msg)

	_, err = s.UpdateJobStatus(ctx, job.ID, models.JobStatusProcessing, models.JobStatusFailed, msg)
	require.NoError(t, err)

	_, err = s.UpdateJobStatus(ctx, job.ID, models.JobStatusProcessing, models.JobStatusCompleted, "")
	assert.ErrorIs(t, err, ErrStatusConflict)

	n, err := s.RetryFailed(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.CompletedAt)

	pending, err := s.HasPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	c, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Item.Attempts)
}

func TestMemoryStore_CreateDocumentVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1")
	_, err := s.UpdateDocumentCitation(ctx, doc.ID, "c1", models.CitationPatch{Tier2: &models.Tier2Result{}})
	require.NoError(t, err)

	v2, err := s.CreateDocumentVersion(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, v2.ID)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "file-1", v2.SourceFileID)
	require.Len(t, v2.Citations, 1)
	assert.NotNil(t, v2.Citations[0].Tier2)

	v3, err := s.CreateDocumentVersion(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)

	_, err = s.CreateDocumentVersion(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMemoryStore_ReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := seedDocument(t, s, "c1")

	got, err := s.GetDocumentVersion(ctx, doc.ID)
	require.NoError(t, err)
	got.Citations[0].Text = "mutated"

	again, err := s.GetDocumentVersion(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "X v. Y", again.Citations[0].Text)
}

func TestMemoryStore_SaveDocumentRejectsDuplicateIDs(t *testing.T) {
	s := NewMemoryStore()
	err := s.SaveDocument(context.Background(), &models.CitationDocument{
		Citations: []models.Citation{{ID: "c1"}, {ID: "c1"}},
	})
	assert.Error(t, err)
}

func TestRefsOf_SkipsCitationsWithoutID(t *testing.T) {
	refs := RefsOf([]models.Citation{{ID: "a"}, {}, {ID: "c"}})
	assert.Equal(t, []CitationRef{{ID: "a", Index: 0}, {ID: "c", Index: 2}}, refs)
}
