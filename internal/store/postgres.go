package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"citation-validator/internal/common/database"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/models"
)

const jobColumns = `id, check_id, status, tier2_completed, tier2_total, tier3_completed, tier3_total,
	force_tier3, COALESCE(error, ''), prompt_tokens, completion_tokens, total_tokens, total_cost,
	created_at, updated_at, completed_at`

const itemColumns = `id, job_id, citation_id, citation_index, tier, status, result, COALESCE(error, ''),
	attempts, created_at, started_at, finished_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// PostgresStore is the durable Store.
type PostgresStore struct {
	db     *database.PostgresClient
	logger logger.Logger
	newID  func() string
}

func NewPostgresStore(db *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.Component(log, "postgres-store"),
		newID:  uuid.NewString,
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ==========================
// Documents
// ==========================

func (s *PostgresStore) GetDocumentVersion(ctx context.Context, checkID string) (*models.CitationDocument, error) {
	return loadDocument(ctx, s.db.DB, checkID)
}

func loadDocument(ctx context.Context, q querier, id string) (*models.CitationDocument, error) {
	var doc models.CitationDocument
	var metadata, content []byte
	err := q.QueryRowContext(ctx, `
		SELECT id, source_file_id, version, metadata, content, created_at
		FROM citation_documents WHERE id = $1`, id).Scan(
		&doc.ID, &doc.SourceFileID, &doc.Version, &metadata, &content, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &doc.Blocks); err != nil {
			return nil, fmt.Errorf("decode document content: %w", err)
		}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT citation_id, text, type, components, COALESCE(block_id, ''), tier_1, tier_2, tier_3
		FROM document_citations WHERE document_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load citations of %s: %w", id, err)
	}
	defer rows.Close()

	doc.Citations = []models.Citation{}
	for rows.Next() {
		var c models.Citation
		var components, tier1, tier2, tier3 []byte
		if err := rows.Scan(&c.ID, &c.Text, &c.Type, &components, &c.BlockID, &tier1, &tier2, &tier3); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		if len(components) > 0 {
			if err := json.Unmarshal(components, &c.Components); err != nil {
				return nil, fmt.Errorf("decode citation %s components: %w", c.ID, err)
			}
		}
		if len(tier1) > 0 {
			c.Tier1 = json.RawMessage(tier1)
		}
		if len(tier2) > 0 {
			c.Tier2 = &models.Tier2Result{}
			if err := json.Unmarshal(tier2, c.Tier2); err != nil {
				return nil, fmt.Errorf("decode citation %s tier_2: %w", c.ID, err)
			}
		}
		if len(tier3) > 0 {
			c.Tier3 = &models.Tier3Result{}
			if err := json.Unmarshal(tier3, c.Tier3); err != nil {
				return nil, fmt.Errorf("decode citation %s tier_3: %w", c.ID, err)
			}
		}
		doc.Citations = append(doc.Citations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc *models.CitationDocument) error {
	if doc.ID == "" {
		doc.ID = s.newID()
	}
	if doc.SourceFileID == "" {
		doc.SourceFileID = doc.ID
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	content, err := json.Marshal(doc.Blocks)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO citation_documents (id, source_file_id, version, metadata, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			doc.ID, doc.SourceFileID, doc.Version, metadata, content,
		).Scan(&doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		for i := range doc.Citations {
			if err := insertCitation(ctx, tx, doc.ID, i, &doc.Citations[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertCitation(ctx context.Context, tx *sql.Tx, documentID string, position int, c *models.Citation) error {
	if c.ID == "" {
		return fmt.Errorf("citation at position %d has no id", position)
	}
	components, err := nullJSON(c.Components)
	if err != nil {
		return err
	}
	tier2, err := nullJSON(c.Tier2)
	if err != nil {
		return err
	}
	tier3, err := nullJSON(c.Tier3)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_citations
			(document_id, citation_id, position, text, type, components, block_id, tier_1, tier_2, tier_3)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		documentID, c.ID, position, c.Text, string(c.Type), components, c.BlockID, rawOrNull(c.Tier1), tier2, tier3,
	)
	if err != nil {
		return fmt.Errorf("insert citation %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentCitation(ctx context.Context, checkID, citationID string, patch models.CitationPatch) (*models.CitationDocument, error) {
	var doc *models.CitationDocument
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := patchCitation(ctx, tx, checkID, citationID, patch); err != nil {
			return err
		}
		var err error
		doc, err = loadDocument(ctx, tx, checkID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func patchCitation(ctx context.Context, q querier, documentID, citationID string, patch models.CitationPatch) error {
	tier2, err := nullJSON(patch.Tier2)
	if err != nil {
		return err
	}
	tier3, err := nullJSON(patch.Tier3)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE document_citations
		SET tier_1 = COALESCE($3::jsonb, tier_1),
		    tier_2 = COALESCE($4::jsonb, tier_2),
		    tier_3 = COALESCE($5::jsonb, tier_3),
		    updated_at = now()
		WHERE document_id = $1 AND citation_id = $2`,
		documentID, citationID, rawOrNull(patch.Tier1), tier2, tier3,
	)
	if err != nil {
		return fmt.Errorf("patch citation %s: %w", citationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch citation %s: %w", citationID, err)
	}
	if n == 0 {
		return ErrCitationNotFound
	}
	return nil
}

func (s *PostgresStore) CreateDocumentVersion(ctx context.Context, sourceID string) (*models.CitationDocument, error) {
	newID := s.newID()
	var doc *models.CitationDocument
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var sourceFileID string
		err := tx.QueryRowContext(ctx, `
			SELECT source_file_id FROM citation_documents WHERE id = $1 FOR UPDATE`, sourceID,
		).Scan(&sourceFileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock source document: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO citation_documents (id, source_file_id, version, metadata, content)
			SELECT $1, source_file_id,
			       (SELECT COALESCE(MAX(version), 0) + 1 FROM citation_documents WHERE source_file_id = $3),
			       metadata, content
			FROM citation_documents WHERE id = $2`,
			newID, sourceID, sourceFileID,
		)
		if err != nil {
			return fmt.Errorf("insert document version: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_citations
				(document_id, citation_id, position, text, type, components, block_id, tier_1, tier_2, tier_3)
			SELECT $1, citation_id, position, text, type, components, block_id, tier_1, tier_2, tier_3
			FROM document_citations WHERE document_id = $2`,
			newID, sourceID,
		)
		if err != nil {
			return fmt.Errorf("copy citations: %w", err)
		}

		doc, err = loadDocument(ctx, tx, newID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ==========================
// Jobs and queue
// ==========================

func (s *PostgresStore) CreateJob(ctx context.Context, checkID string, forceTier3 bool, refs []CitationRef) (*models.ValidationJob, error) {
	jobID := s.newID()
	var job *models.ValidationJob
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM citation_documents WHERE id = $1)`, checkID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if !exists {
			return ErrDocumentNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO validation_jobs (id, check_id, status, tier2_total, force_tier3)
			VALUES ($1, $2, 'pending', $3, $4)`,
			jobID, checkID, len(refs), forceTier3,
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for _, ref := range refs {
			if err := s.insertItem(ctx, tx, jobID, ref, models.Tier2); err != nil {
				return err
			}
		}

		var err error
		job, err = scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM validation_jobs WHERE id = $1`, jobID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStore) insertItem(ctx context.Context, q querier, jobID string, ref CitationRef, tier models.Tier) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO validation_queue (id, job_id, citation_id, citation_index, tier, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')`,
		s.newID(), jobID, ref.ID, ref.Index, string(tier),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s item for citation %s: %w", tier, ref.ID, err)
	}
	return nil
}

func (s *PostgresStore) Enqueue(ctx context.Context, jobID string, refs []CitationRef, tier models.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", tier)
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE validation_jobs
			SET tier2_total = tier2_total + $2, tier3_total = tier3_total + $3, updated_at = now()
			WHERE id = $1`,
			jobID, tierDelta(tier, models.Tier2, len(refs)), tierDelta(tier, models.Tier3, len(refs)),
		)
		if err != nil {
			return fmt.Errorf("raise job totals: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrJobNotFound
		}
		for _, ref := range refs {
			if err := s.insertItem(ctx, tx, jobID, ref, tier); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClaimNext relies on FOR UPDATE SKIP LOCKED: concurrent claimers lock
// different rows, and a row already claimed no longer matches status = 'pending'.
func (s *PostgresStore) ClaimNext(ctx context.Context) (*models.ClaimedItem, error) {
	var claimed models.ClaimedItem
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := scanItem(tx.QueryRowContext(ctx, `
			UPDATE validation_queue
			SET status = 'processing', started_at = now(), attempts = attempts + 1
			WHERE id = (
				SELECT id FROM validation_queue
				WHERE status = 'pending'
				ORDER BY created_at, id
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING `+itemColumns))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPendingItems
		}
		if err != nil {
			return fmt.Errorf("claim item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE validation_jobs SET status = 'processing', updated_at = now()
			WHERE id = $1 AND status = 'pending'`, item.JobID,
		); err != nil {
			return fmt.Errorf("mark job processing: %w", err)
		}

		job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM validation_jobs WHERE id = $1`, item.JobID))
		if err != nil {
			return err
		}

		claimed.Item = *item
		claimed.Job = *job
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := s.GetDocumentVersion(ctx, claimed.Job.CheckID)
	if err != nil {
		// The item stays claimed; the caller fails it.
		return &claimed, err
	}
	claimed.Document = *doc
	return &claimed, nil
}

func (s *PostgresStore) CompleteItem(ctx context.Context, itemID string, c Completion) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var jobID, citationID, tierStr string
		var citationIndex int
		err := tx.QueryRowContext(ctx, `
			UPDATE validation_queue
			SET status = 'completed', result = $2, error = NULL, finished_at = now()
			WHERE id = $1 AND status = 'processing'
			RETURNING job_id, citation_id, citation_index, tier`,
			itemID, rawOrNull(c.Result),
		).Scan(&jobID, &citationID, &citationIndex, &tierStr)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotProcessing
		}
		if err != nil {
			return fmt.Errorf("complete item %s: %w", itemID, err)
		}
		tier := models.Tier(tierStr)

		var checkID string
		if err := tx.QueryRowContext(ctx, `
			SELECT check_id FROM validation_jobs WHERE id = $1 FOR UPDATE`, jobID,
		).Scan(&checkID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrJobNotFound
			}
			return fmt.Errorf("lock job %s: %w", jobID, err)
		}

		if err := patchCitation(ctx, tx, checkID, citationID, c.Patch); err != nil {
			return err
		}

		escalate := c.Escalate && tier == models.Tier2
		tier3Total := 0
		if escalate {
			tier3Total = 1
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE validation_jobs
			SET tier2_completed = tier2_completed + $2,
			    tier3_completed = tier3_completed + $3,
			    tier3_total = tier3_total + $4,
			    prompt_tokens = prompt_tokens + $5,
			    completion_tokens = completion_tokens + $6,
			    total_tokens = total_tokens + $7,
			    total_cost = total_cost + $8,
			    updated_at = now()
			WHERE id = $1`,
			jobID, tierDelta(tier, models.Tier2, 1), tierDelta(tier, models.Tier3, 1), tier3Total,
			c.Usage.PromptTokens, c.Usage.CompletionTokens, c.Usage.TotalTokens, c.Usage.Cost,
		); err != nil {
			return fmt.Errorf("advance job counters: %w", err)
		}

		if escalate {
			return s.insertItem(ctx, tx, jobID, CitationRef{ID: citationID, Index: citationIndex}, models.Tier3)
		}
		return nil
	})
}

func (s *PostgresStore) FailItem(ctx context.Context, itemID, reason string) error {
	res, err := s.db.Exec(ctx, `
		UPDATE validation_queue
		SET status = 'failed', error = $2, finished_at = now()
		WHERE id = $1 AND status = 'processing'`, itemID, reason)
	if err != nil {
		return fmt.Errorf("fail item %s: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail item %s: %w", itemID, err)
	}
	if n == 0 {
		return ErrItemNotProcessing
	}
	return nil
}

func (s *PostgresStore) RetryFailed(ctx context.Context, jobID string) (int, error) {
	var reset int
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM validation_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("lock job %s: %w", jobID, err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE validation_queue
			SET status = 'pending', error = NULL, started_at = NULL, finished_at = NULL
			WHERE job_id = $1 AND status = 'failed'`, jobID)
		if err != nil {
			return fmt.Errorf("reset failed items: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reset failed items: %w", err)
		}
		reset = int(n)
		if reset == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE validation_jobs
			SET status = 'processing', error = NULL, completed_at = NULL, updated_at = now()
			WHERE id = $1`, jobID); err != nil {
			return fmt.Errorf("reopen job: %w", err)
		}
		return nil
	})
	return reset, err
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.ValidationJob, error) {
	return scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM validation_jobs WHERE id = $1`, jobID))
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, from, status models.JobStatus, errMsg string) (*models.ValidationJob, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `
		UPDATE validation_jobs
		SET status = $2::text,
		    error = NULLIF($3, ''),
		    completed_at = CASE WHEN $2::text IN ('completed', 'failed') THEN COALESCE(completed_at, now()) ELSE NULL END,
		    updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+jobColumns,
		jobID, string(status), errMsg, string(from),
	))
	if !errors.Is(err, ErrJobNotFound) {
		return job, err
	}
	// No row matched: either the job is gone or another writer moved it.
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return nil, ErrStatusConflict
}

func (s *PostgresStore) CountItems(ctx context.Context, jobID string) (models.ItemCounts, error) {
	var counts models.ItemCounts
	rows, err := s.db.Query(ctx, `
		SELECT tier, status, COUNT(*) FROM validation_queue
		WHERE job_id = $1 GROUP BY tier, status`, jobID)
	if err != nil {
		return counts, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier, status string
		var n int
		if err := rows.Scan(&tier, &status, &n); err != nil {
			return counts, fmt.Errorf("scan item count: %w", err)
		}
		tc := &counts.Tier2
		if models.Tier(tier) == models.Tier3 {
			tc = &counts.Tier3
		}
		switch models.ItemStatus(status) {
		case models.ItemStatusPending:
			tc.Pending += n
		case models.ItemStatusProcessing:
			tc.Processing += n
		case models.ItemStatusCompleted:
			tc.Completed += n
		case models.ItemStatusFailed:
			tc.Failed += n
		}
	}
	return counts, rows.Err()
}

func (s *PostgresStore) ListItems(ctx context.Context, jobID string) ([]models.ValidationQueueItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+itemColumns+` FROM validation_queue
		WHERE job_id = $1 ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.ValidationQueueItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) FirstItemError(ctx context.Context, jobID string) (string, error) {
	var msg string
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(error, '') FROM validation_queue
		WHERE job_id = $1 AND status = 'failed'
		ORDER BY finished_at ASC NULLS LAST, created_at ASC
		LIMIT 1`, jobID).Scan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("first item error: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) HasPending(ctx context.Context) (bool, error) {
	var pending bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM validation_queue WHERE status = 'pending')`).Scan(&pending); err != nil {
		return false, fmt.Errorf("check pending items: %w", err)
	}
	return pending, nil
}

// ==========================
// Scanning helpers
// ==========================

func scanJob(row scanner) (*models.ValidationJob, error) {
	var job models.ValidationJob
	var status string
	var completedAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.CheckID, &status,
		&job.Tier2Completed, &job.Tier2Total, &job.Tier3Completed, &job.Tier3Total,
		&job.ForceTier3, &job.Error,
		&job.Usage.PromptTokens, &job.Usage.CompletionTokens, &job.Usage.TotalTokens, &job.Usage.Cost,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = models.JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanItem(row scanner) (*models.ValidationQueueItem, error) {
	var item models.ValidationQueueItem
	var tier, status string
	var result []byte
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(
		&item.ID, &item.JobID, &item.CitationID, &item.CitationIndex, &tier, &status,
		&result, &item.Error, &item.Attempts, &item.CreatedAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	item.Tier = models.Tier(tier)
	item.Status = models.ItemStatus(status)
	if len(result) > 0 {
		item.Result = json.RawMessage(result)
	}
	if startedAt.Valid {
		t := startedAt.Time
		item.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		item.FinishedAt = &t
	}
	return &item, nil
}

func tierDelta(tier, want models.Tier, n int) int {
	if tier == want {
		return n
	}
	return 0
}

// nullJSON encodes v, mapping nil pointers and empty maps to SQL NULL.
func nullJSON(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case *models.Tier2Result:
		if t == nil {
			return nil, nil
		}
	case *models.Tier3Result:
		if t == nil {
			return nil, nil
		}
	case map[string]string:
		if len(t) == 0 {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

func rawOrNull(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

var _ Store = (*PostgresStore)(nil)
