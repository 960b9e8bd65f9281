package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

var ErrQueueClosed = errors.New("write queue is not running")

// WriteJob allocates an identifier and appends the row for one submission.
type WriteJob func(ctx context.Context) (core.LedgerEntry, error)

type jobResult struct {
	entry core.LedgerEntry
	err   error
}

type queuedJob struct {
	ctx    context.Context
	run    WriteJob
	result chan jobResult
}

// WriteQueue runs write jobs one at a time on a single goroutine, so an
// allocation never overlaps another submission's append in this process.
type WriteQueue struct {
	jobs chan queuedJob

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWriteQueue(size int) *WriteQueue {
	if size < 1 {
		size = 1
	}
	return &WriteQueue{jobs: make(chan queuedJob, size)}
}

// Start launches the worker goroutine. It runs until Stop.
func (q *WriteQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("write queue is already running")
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	q.mu.Unlock()

	go q.runLoop(q.stopCh, q.doneCh)

	slog.InfoContext(ctx, "Write queue started", log.FieldComponent, log.ComponentLedger, "capacity", cap(q.jobs))
	return nil
}

// Stop refuses new jobs, finishes the ones already queued and waits for the
// worker to exit or ctx to end.
func (q *WriteQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.stopCh)
	done := q.doneCh
	q.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Write queue stopped gracefully", log.FieldComponent, log.ComponentLedger)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Write queue stop timed out", log.FieldComponent, log.ComponentLedger)
		return ctx.Err()
	}
}

func (q *WriteQueue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

// Do enqueues job and waits for its result. Only waiting for a queue slot
// honours ctx: once a job has been accepted it runs to completion with a
// detached context and Do returns its result.
func (q *WriteQueue) Do(ctx context.Context, job WriteJob) (core.LedgerEntry, error) {
	j := queuedJob{ctx: context.WithoutCancel(ctx), run: job, result: make(chan jobResult, 1)}

	q.mu.RLock()
	if !q.running {
		q.mu.RUnlock()
		return core.LedgerEntry{}, ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		metrics.WriteQueueDepth.Inc()
	case <-ctx.Done():
		q.mu.RUnlock()
		return core.LedgerEntry{}, ctx.Err()
	}
	q.mu.RUnlock()

	// An accepted job appends its row whatever happens to ctx; its outcome is
	// the only truthful answer.
	res := <-j.result
	return res.entry, res.err
}

func (q *WriteQueue) runLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case j := <-q.jobs:
			q.run(j)
		case <-stopCh:
			for {
				select {
				case j := <-q.jobs:
					q.run(j)
				default:
					return
				}
			}
		}
	}
}

func (q *WriteQueue) run(j queuedJob) {
	metrics.WriteQueueDepth.Dec()
	entry, err := j.run(j.ctx)
	j.result <- jobResult{entry: entry, err: err}
}
