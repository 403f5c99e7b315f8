package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/verdict"
	"citation-validator/internal/models"
	"citation-validator/internal/store"
	jobtracker "citation-validator/internal/workers/validation/job-tracker"
)

type credentialFunc func() error

func (f credentialFunc) CheckCredentials() error { return f() }

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

func newTestService(t *testing.T, creds credentialFunc) (*ValidationService, *store.MemoryStore, *countingWaker) {
	t.Helper()
	s := store.NewMemoryStore()
	log := logger.NewTestLogger(t)
	w := &countingWaker{}
	var checker verdict.CredentialChecker
	if creds != nil {
		checker = creds
	}
	svc := NewValidationService(s, jobtracker.NewHandler(s, nil, nil, log), checker, w, log)
	return svc, s, w
}

func saveDoc(t *testing.T, s *store.MemoryStore, citations ...models.Citation) string {
	t.Helper()
	doc := &models.CitationDocument{Citations: citations}
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	return doc.ID
}

func TestStartValidation_EnqueuesOneItemPerCitation(t *testing.T) {
	ctx := context.Background()
	svc, s, w := newTestService(t, nil)
	checkID := saveDoc(t, s, models.Citation{ID: "c1"}, models.Citation{ID: "c2"})

	job, err := svc.StartValidation(ctx, checkID, StartOptions{ForceTier3: true})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.Tier2Total)
	assert.True(t, job.ForceTier3)
	assert.Equal(t, 1, w.n)

	items, err := svc.ListItems(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for i, it := range items {
		assert.Equal(t, models.Tier2, it.Tier)
		assert.Equal(t, i, it.CitationIndex)
	}
}

func TestStartValidation_ZeroCitationsCompletes(t *testing.T) {
	svc, s, w := newTestService(t, nil)
	checkID := saveDoc(t, s)

	job, err := svc.StartValidation(context.Background(), checkID, StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Zero(t, w.n)
}

func TestStartValidation_ProviderNotConfigured(t *testing.T) {
	svc, s, _ := newTestService(t, func() error {
		return apperrors.NewProviderNotConfiguredError("provider.api_key is empty")
	})
	checkID := saveDoc(t, s, models.Citation{ID: "c1"})

	_, err := svc.StartValidation(context.Background(), checkID, StartOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderNotConfigured))

	pending, err := s.HasPending(context.Background())
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestStartValidation_UnknownDocument(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.StartValidation(context.Background(), "missing", StartOptions{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDocumentNotFound))
}

func TestRetryFailed(t *testing.T) {
	ctx := context.Background()
	svc, s, w := newTestService(t, nil)
	checkID := saveDoc(t, s, models.Citation{ID: "c1"})
	job, err := svc.StartValidation(ctx, checkID, StartOptions{})
	require.NoError(t, err)

	claimed, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailItem(ctx, claimed.Item.ID, "PROVIDER_FAILED: boom"))

	n, err := svc.RetryFailed(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, w.n)

	view, err := svc.GetJobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, view.Status)
	assert.Equal(t, 1, view.Tier2Progress.Pending)

	_, err = svc.RetryFailed(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeJobNotFound))
}

func TestCreateDocumentVersion(t *testing.T) {
	svc, s, _ := newTestService(t, nil)
	checkID := saveDoc(t, s, models.Citation{ID: "c1"})

	v2, err := svc.CreateDocumentVersion(context.Background(), checkID)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	_, err = svc.CreateDocumentVersion(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDocumentNotFound))
}

func TestGetJobStatus_Unknown(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.GetJobStatus(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeJobNotFound))
}
