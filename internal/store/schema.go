package store

// Schema is the Postgres DDL. Citations are rows keyed by (document_id,
// citation_id) so completing one citation never rewrites its siblings.
const Schema = `
CREATE TABLE IF NOT EXISTS citation_documents (
    id             TEXT PRIMARY KEY,
    source_file_id TEXT NOT NULL,
    version        INTEGER NOT NULL,
    metadata       JSONB,
    content        JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source_file_id, version)
);

CREATE TABLE IF NOT EXISTS document_citations (
    document_id TEXT NOT NULL REFERENCES citation_documents(id) ON DELETE CASCADE,
    citation_id TEXT NOT NULL,
    position    INTEGER NOT NULL,
    text        TEXT NOT NULL,
    type        TEXT NOT NULL DEFAULT '',
    components  JSONB,
    block_id    TEXT,
    tier_1      JSONB,
    tier_2      JSONB,
    tier_3      JSONB,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (document_id, citation_id)
);

CREATE TABLE IF NOT EXISTS validation_jobs (
    id                TEXT PRIMARY KEY,
    check_id          TEXT NOT NULL REFERENCES citation_documents(id),
    status            TEXT NOT NULL DEFAULT 'pending',
    tier2_completed   INTEGER NOT NULL DEFAULT 0,
    tier2_total       INTEGER NOT NULL DEFAULT 0,
    tier3_completed   INTEGER NOT NULL DEFAULT 0,
    tier3_total       INTEGER NOT NULL DEFAULT 0,
    force_tier3       BOOLEAN NOT NULL DEFAULT false,
    error             TEXT,
    prompt_tokens     BIGINT NOT NULL DEFAULT 0,
    completion_tokens BIGINT NOT NULL DEFAULT 0,
    total_tokens      BIGINT NOT NULL DEFAULT 0,
    total_cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS validation_queue (
    id             TEXT PRIMARY KEY,
    job_id         TEXT NOT NULL REFERENCES validation_jobs(id) ON DELETE CASCADE,
    citation_id    TEXT NOT NULL,
    citation_index INTEGER NOT NULL,
    tier           TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    result         JSONB,
    error          TEXT,
    attempts       INTEGER NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    started_at     TIMESTAMPTZ,
    finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_validation_queue_pending
    ON validation_queue (created_at, id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_validation_queue_job
    ON validation_queue (job_id, tier, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_validation_queue_citation_tier
    ON validation_queue (job_id, citation_id, tier);
`
