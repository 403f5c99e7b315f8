// Package events fans out validation job progress notifications to stream
// subscribers. Events are wake-up hints; subscribers re-read job state.
package events

import (
	"context"
	"time"

	"citation-validator/internal/models"
)

// EventType names a progress notification.
type EventType string

const (
	EventItemFinished EventType = "item_finished"
	EventJobStatus    EventType = "job_status"
)

// Event is one progress notification for a job.
type Event struct {
	Type   EventType        `json:"type"`
	JobID  string           `json:"jobId"`
	ItemID string           `json:"itemId,omitempty"`
	Tier   models.Tier      `json:"tier,omitempty"`
	Status models.JobStatus `json:"status,omitempty"`
	At     time.Time        `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscriber delivers a job's events until ctx is done or the returned
// cancel func is called. The channel is closed afterwards.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan Event, func(), error)
}

type Bus interface {
	Publisher
	Subscriber
}

// ChannelFor is the pub/sub channel name of a job.
func ChannelFor(jobID string) string {
	return "validation:job:" + jobID
}

// NopBus drops every event and never delivers any.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, ev Event) error { return nil }

func (NopBus) Subscribe(ctx context.Context, jobID string) (<-chan Event, func(), error) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}, nil
}
