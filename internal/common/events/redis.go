package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
)

// RedisBus publishes events over Redis pub/sub so every API replica sees
// progress made by any worker.
type RedisBus struct {
	client redis.UniversalClient
	logger logger.Logger
}

func NewRedisBus(client redis.UniversalClient, log logger.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger.Component(log, "event-bus")}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := ChannelFor(ev.JobID)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return apperrors.NewEventPublishFailedError(channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, jobID string) (<-chan Event, func(), error) {
	channel := ChannelFor(jobID)
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Event, 16)
	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		defer stop()
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed event", map[string]interface{}{
						"channel": channel,
						"error":   err.Error(),
					})
					continue
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, stop, nil
}

var _ Bus = (*RedisBus)(nil)
