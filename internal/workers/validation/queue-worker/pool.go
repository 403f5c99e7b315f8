// internal/workers/validation/queue-worker/pool.go
package queueworker

import (
	"context"
	"sync"
	"time"

	"citation-validator/internal/common/logger"
)

// Pool runs Concurrency goroutines, each draining the queue and sleeping
// PollInterval when it comes up empty.
type Pool struct {
	handler      *Handler
	concurrency  int
	pollInterval time.Duration
	logger       logger.Logger

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(config *Config, handler *Handler, log logger.Logger) *Pool {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Pool{
		handler:      handler,
		concurrency:  concurrency,
		pollInterval: poll,
		logger:       logger.Component(log, "worker-pool"),
		wake:         make(chan struct{}, 1),
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	p.logger.Info("worker pool started", map[string]interface{}{
		"concurrency":  p.concurrency,
		"pollInterval": p.pollInterval.String(),
	})
}

// Wake cuts the current poll sleep of one idle goroutine short.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop stops claiming new items and waits for in-flight items to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped", nil)
}

func (p *Pool) loop(ctx context.Context, n int) {
	defer p.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		res, err := p.handler.Drain(ctx)
		if err != nil {
			p.logger.Error("drain failed", map[string]interface{}{
				"worker": n,
				"error":  err.Error(),
			})
		} else if res.Processed > 0 {
			p.logger.Debug("drain finished", map[string]interface{}{
				"worker":    n,
				"processed": res.Processed,
				"completed": res.Completed,
				"failed":    res.Failed,
				"hasMore":   res.HasMore,
			})
		}

		next := p.pollInterval
		if err == nil && res.HasMore {
			next = 0
		}
		timer.Reset(next)
	}
}
