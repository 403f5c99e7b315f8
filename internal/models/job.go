// internal/models/job.go
package models

import (
	"encoding/json"
	"time"
)

// Tier identifies the panel a queue item is routed to.
type Tier string

const (
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// Valid reports whether t is a routable tier.
func (t Tier) Valid() bool {
	return t == Tier2 || t == Tier3
}

// JobStatus is the lifecycle of a validation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are expected without a re-drive.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidationJob is one validation run over one CitationDocument version.
// CheckID references the document version.
type ValidationJob struct {
	ID             string     `json:"id"`
	CheckID        string     `json:"checkId"`
	Status         JobStatus  `json:"status"`
	Tier2Completed int        `json:"tier2Completed"`
	Tier2Total     int        `json:"tier2Total"`
	Tier3Completed int        `json:"tier3Completed"`
	Tier3Total     int        `json:"tier3Total"`
	ForceTier3     bool       `json:"forceTier3"`
	Error          string     `json:"error,omitempty"`
	Usage          Usage      `json:"usage"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// ItemStatus is the per-item queue state machine:
// pending -> processing -> completed | failed.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// ValidationQueueItem is one unit of per-citation, per-tier work.
type ValidationQueueItem struct {
	ID            string          `json:"id"`
	JobID         string          `json:"jobId"`
	CitationID    string          `json:"citationId"`
	CitationIndex int             `json:"citationIndex"`
	Tier          Tier            `json:"tier"`
	Status        ItemStatus      `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
}

// ClaimedItem is what a claim hands to a worker: the item in processing state
// plus snapshots of its job and document.
type ClaimedItem struct {
	Item     ValidationQueueItem
	Job      ValidationJob
	Document CitationDocument
}

// TierCounts is the number of items in each status for one tier of one job.
type TierCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Active is the number of items not yet finished.
func (c TierCounts) Active() int {
	return c.Pending + c.Processing
}

// Total is the number of items of the tier.
func (c TierCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// ItemCounts groups TierCounts for both tiers.
type ItemCounts struct {
	Tier2 TierCounts `json:"tier2"`
	Tier3 TierCounts `json:"tier3"`
}

// For returns the counts of tier t.
func (c ItemCounts) For(t Tier) TierCounts {
	if t == Tier3 {
		return c.Tier3
	}
	return c.Tier2
}

// Progress is the per-tier progress view of the job status API.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobStatusView is the response of getJobStatus.
type JobStatusView struct {
	JobID         string    `json:"jobId"`
	CheckID       string    `json:"checkId"`
	Status        JobStatus `json:"status"`
	Tier2Progress Progress  `json:"tier2Progress"`
	Tier3Progress Progress  `json:"tier3Progress"`
	Error         string    `json:"error,omitempty"`
	Usage         Usage     `json:"usage"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
