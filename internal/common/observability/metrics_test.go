package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservability_ZeroValueIsNoOp(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordPanelUsage(context.Background(), "tier2", 10, 5, 0.01)
		o.RecordPanelDuration(context.Background(), "tier2", time.Second, "ok")
		o.Shutdown()
	})

	empty := &Observability{}
	assert.NotPanics(t, func() {
		empty.RecordPanelUsage(context.Background(), "tier3", 1, 1, 0)
		empty.Shutdown()
	})
}

func TestObservability_New(t *testing.T) {
	o := New("citation-validator-test")
	defer o.Shutdown()

	assert.NotPanics(t, func() {
		o.RecordPanelUsage(context.Background(), "tier2", 120, 40, 0.002)
		o.RecordPanelDuration(context.Background(), "tier2", 1500*time.Millisecond, "ok")
	})
}
