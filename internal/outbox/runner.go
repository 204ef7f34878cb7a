package outbox

import (
	"context"
	"time"

	"alumnet-chat/pkg/logger"
)

// Runner drives the processor on a fixed interval until the context is
// cancelled. Started once from main alongside the HTTP server.
type Runner struct {
	processor *Processor
	interval  time.Duration
	log       *logger.Logger
}

func NewRunner(processor *Processor, interval time.Duration, log *logger.Logger) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{processor: processor, interval: interval, log: log}
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick first moves retryable failures back into the pending queue, so
// an event that failed while the broker was down is picked up again on
// the next pass, then drains pending events until the queue is empty.
func (r *Runner) tick(ctx context.Context) {
	if err := r.processor.RequeueFailed(ctx); err != nil {
		r.log.Errorf("outbox requeue failed: %v", err)
	}
	for {
		n, err := r.processor.ProcessBatch(ctx)
		if err != nil {
			r.log.Errorf("outbox batch failed: %v", err)
			return
		}
		if n == 0 {
			return
		}
	}
}
