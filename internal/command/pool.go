package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrQueueFull indicates that a command was rejected because too many commands are waiting.
var ErrQueueFull = errors.New("too many commands in the queue")

// WorkerPool executes commands on a bounded number of workers. Commands wait for a
// free worker in a bounded queue.
type WorkerPool struct {
	slots chan struct{}

	maxWaiting int64
	waiting    atomic.Int64
	running    atomic.Int64
}

// Stats is a snapshot of the load of a WorkerPool.
type Stats struct {
	Workers    int   `json:"workers"`
	Running    int64 `json:"running"`
	MaxWaiting int64 `json:"maxWaiting"`
	Waiting    int64 `json:"waiting"`
}

// NewWorkerPool creates a new WorkerPool running at most workers commands at once and
// holding at most maxWaiting commands waiting for a worker.
func NewWorkerPool(workers int, maxWaiting int) *WorkerPool {
	slots := make(chan struct{}, workers)
	for range workers {
		slots <- struct{}{}
	}

	return &WorkerPool{
		slots:      slots,
		maxWaiting: int64(maxWaiting),
	}
}

// Spawn executes cmd once a worker is available. A full queue is reported as a deadline
// exceeded error, matching ErrQueueFull.
func (p *WorkerPool) Spawn(ctx context.Context, cmd Command) error {
	if p.waiting.Add(1) > p.maxWaiting {
		p.waiting.Add(-1)

		return fmt.Errorf("%w: %w", ErrQueueFull, context.DeadlineExceeded)
	}

	select {
	case <-ctx.Done():
		p.waiting.Add(-1)

		return ctx.Err()
	case <-p.slots:
		p.waiting.Add(-1)
	}

	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.slots <- struct{}{}
	}()

	return cmd.Exec(ctx)
}

// Stats returns the current load of the pool.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:    cap(p.slots),
		Running:    p.running.Load(),
		MaxWaiting: p.maxWaiting,
		Waiting:    p.waiting.Load(),
	}
}
