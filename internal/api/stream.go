// internal/api/stream.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"citation-validator/internal/models"
)

// Stream event names.
const (
	EventStart         = "start"
	EventTier2Progress = "tier2_progress"
	EventTier3Progress = "tier3_progress"
	EventTier2Complete = "tier2_complete"
	EventComplete      = "complete"
	EventError         = "error"
)

// progressStream remembers what the client has already been told.
type progressStream struct {
	tier2     models.Progress
	tier3     models.Progress
	tier2Done bool
}

// next returns the events that move the client from the last view to v, and
// whether v is terminal.
func (s *progressStream) next(v *models.JobStatusView) ([]sseEvent, bool) {
	var out []sseEvent
	if v.Tier2Progress != s.tier2 {
		s.tier2 = v.Tier2Progress
		out = append(out, sseEvent{EventTier2Progress, v.Tier2Progress})
	}
	if v.Tier3Progress != s.tier3 {
		s.tier3 = v.Tier3Progress
		out = append(out, sseEvent{EventTier3Progress, v.Tier3Progress})
	}
	if !s.tier2Done && v.Tier2Progress.Pending == 0 && v.Tier2Progress.Processing == 0 {
		s.tier2Done = true
		out = append(out, sseEvent{EventTier2Complete, gin.H{
			"completed": v.Tier2Progress.Completed,
			"failed":    v.Tier2Progress.Failed,
			"escalated": v.Tier3Progress.Total,
		}})
	}

	switch v.Status {
	case models.JobStatusCompleted:
		return append(out, sseEvent{EventComplete, v}), true
	case models.JobStatusFailed:
		return append(out, sseEvent{EventError, gin.H{"jobId": v.JobID, "error": v.Error, "status": v}}), true
	}
	return out, false
}

type sseEvent struct {
	name string
	data interface{}
}

// StreamJob handles GET /api/jobs/:id/stream
//
// The job is re-read on every bus notification and poll tick, so a dropped
// notification only delays an update.
func (h *ValidationHandler) StreamJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	view, err := h.svc.GetJobStatus(ctx, jobID)
	if err != nil {
		h.fail(c, err)
		return
	}

	notifications, stop, err := h.subscriber.Subscribe(ctx, jobID)
	if err != nil {
		h.logger.Warn("stream falling back to polling", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
		notifications = nil
	} else {
		defer stop()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	s := &progressStream{tier2: view.Tier2Progress, tier3: view.Tier3Progress}
	h.write(c, sseEvent{EventStart, view})
	if h.emit(c, s, view) {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
		case <-ticker.C:
		}

		view, err := h.svc.GetJobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.write(c, sseEvent{EventError, gin.H{"jobId": jobID, "error": err.Error()}})
			return
		}
		if h.emit(c, s, view) {
			return
		}
	}
}

func (h *ValidationHandler) emit(c *gin.Context, s *progressStream, v *models.JobStatusView) bool {
	evs, done := s.next(v)
	for _, ev := range evs {
		h.write(c, ev)
	}
	return done
}

func (h *ValidationHandler) write(c *gin.Context, ev sseEvent) {
	c.SSEvent(ev.name, ev.data)
	c.Writer.Flush()
}
