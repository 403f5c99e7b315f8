package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/models"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewRedisBus(client, logger.NewTestLogger(t))
	ctx := context.Background()

	ch, stop, err := bus.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventItemFinished, JobID: "job-1", ItemID: "item-1", Tier: models.Tier2}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventItemFinished, JobID: "job-2", ItemID: "other"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventJobStatus, JobID: "job-1", Status: models.JobStatusCompleted}))

	first := receive(t, ch)
	assert.Equal(t, EventItemFinished, first.Type)
	assert.Equal(t, "item-1", first.ItemID)
	assert.False(t, first.At.IsZero())

	second := receive(t, ch)
	assert.Equal(t, EventJobStatus, second.Type)
	assert.Equal(t, models.JobStatusCompleted, second.Status)
}

func TestRedisBus_StopClosesChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewRedisBus(client, logger.NewNoOpLogger())
	ch, stop, err := bus.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)

	stop()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after stop")
	}
}

func TestRedisBus_PublishFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	bus := NewRedisBus(db, logger.NewNoOpLogger())

	ev := Event{Type: EventItemFinished, JobID: "job-1", At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	mock.ExpectPublish(ChannelFor("job-1"), payload).SetErr(errors.New("connection refused"))

	err = bus.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEventPublishFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryBus(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, stop, err := bus.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, 1, bus.Subscribers("job-1"))

	require.NoError(t, bus.Publish(ctx, Event{Type: EventItemFinished, JobID: "job-1"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventItemFinished, JobID: "job-2"}))
	ev := receive(t, ch)
	assert.Equal(t, "job-1", ev.JobID)

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers("job-1") == 0 }, time.Second, 5*time.Millisecond)
	stop()
}

func TestMemoryBus_DropsWhenFull(t *testing.T) {
	bus := NewMemoryBus()
	_, stop, err := bus.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer stop()

	for i := 0; i < 100; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{JobID: "job-1"}))
	}
}

func TestNopBus(t *testing.T) {
	var bus Bus = NopBus{}
	require.NoError(t, bus.Publish(context.Background(), Event{JobID: "x"}))
	ch, stop, err := bus.Subscribe(context.Background(), "x")
	require.NoError(t, err)
	stop()
	_, ok := <-ch
	assert.False(t, ok)
}
