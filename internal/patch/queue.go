// queue.go serializes every mutating operation through a single worker.
// At most one executor run is in flight per Serializer; requests resolve
// strictly in arrival order. Restores and prunes ride the same queue so
// a prune can never delete a backup a concurrent restore is reading.
package patch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"strictpatch/internal/backup"
	"strictpatch/internal/logging"
	"strictpatch/internal/telemetry"
)

// ErrSerializerClosed is returned by Submit, Restore and Prune once
// Close has been called.
var ErrSerializerClosed = errors.New("serializer closed")

type taskKind int

const (
	taskPatch taskKind = iota
	taskRestore
	taskPrune
)

type outcome struct {
	result  *Result
	restore *RestoreResult
	prune   backup.PruneStats
	err     error
}

type task struct {
	kind        taskKind
	ctx         context.Context
	req         *Request
	backupID    string
	submittedAt time.Time

	// buffered so the worker never blocks on an abandoned caller
	done chan outcome
}

// Serializer owns the FIFO queue and the single worker draining it.
// Each instance is fully independent; tests can run many side by side.
type Serializer struct {
	exec   *Executor
	policy *backup.Policy

	tasks chan *task

	// mu guards closed so no send can race the channel close
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewSerializer starts the worker goroutine. depth bounds the pending
// queue; Submit blocks the caller once it is full.
func NewSerializer(exec *Executor, policy *backup.Policy, depth int) *Serializer {
	if depth <= 0 {
		depth = 64
	}
	s := &Serializer{
		exec:    exec,
		policy:  policy,
		tasks:   make(chan *task, depth),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops accepting work and waits for queued tasks to drain.
// Later Submit/Restore/Prune calls return ErrSerializerClosed.
func (s *Serializer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.tasks)
		s.mu.Unlock()
	})
	<-s.stopped
}

// Submit enqueues a patch request and blocks until it resolves.
// One request's failure never blocks or cancels others; the worker
// keeps draining regardless of individual outcomes.
func (s *Serializer) Submit(ctx context.Context, req *Request) (*Result, error) {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	out, err := s.dispatch(ctx, &task{
		kind:        taskPatch,
		ctx:         ctx,
		req:         req,
		submittedAt: req.SubmittedAt,
	})
	if err != nil {
		return nil, err
	}
	return out.result, out.err
}

// Restore enqueues an explicit rollback-to-backup.
func (s *Serializer) Restore(ctx context.Context, backupID string) (*RestoreResult, error) {
	out, err := s.dispatch(ctx, &task{
		kind:        taskRestore,
		ctx:         ctx,
		backupID:    backupID,
		submittedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return out.restore, out.err
}

// Prune enqueues an explicit retention pass.
func (s *Serializer) Prune(ctx context.Context) (backup.PruneStats, error) {
	out, err := s.dispatch(ctx, &task{
		kind:        taskPrune,
		ctx:         ctx,
		submittedAt: time.Now(),
	})
	if err != nil {
		return backup.PruneStats{}, err
	}
	return out.prune, out.err
}

func (s *Serializer) dispatch(ctx context.Context, t *task) (outcome, error) {
	t.done = make(chan outcome, 1)

	if err := s.enqueue(ctx, t); err != nil {
		return outcome{}, err
	}

	select {
	case out := <-t.done:
		return out, nil
	case <-ctx.Done():
		// The worker discards abandoned mutations when it dequeues
		// them; the buffered done channel absorbs that outcome.
		return outcome{}, fmt.Errorf("request abandoned while queued: %w", ctx.Err())
	}
}

// enqueue sends the task to the worker. The read lock is held across
// the send so Close cannot close the channel underneath it.
func (s *Serializer) enqueue(ctx context.Context, t *task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSerializerClosed
	}

	select {
	case s.tasks <- t:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("request not enqueued: %w", ctx.Err())
	}
}

func (s *Serializer) run() {
	defer close(s.stopped)

	for t := range s.tasks {
		wait := time.Since(t.submittedAt)
		logging.QueueDebug("dequeued task kind=%d after %v (queue depth %d)", t.kind, wait, len(s.tasks))

		// A mutation whose caller already gave up must not land:
		// the caller was told the request failed.
		if t.kind != taskPrune {
			if err := t.ctx.Err(); err != nil {
				logging.Queue("dropping abandoned task kind=%d: %v", t.kind, err)
				t.done <- outcome{err: fmt.Errorf("request abandoned before execution: %w", err)}
				continue
			}
		}

		switch t.kind {
		case taskPatch:
			res, err := s.exec.Execute(t.ctx, t.req)
			if res != nil {
				res.QueueWait = wait
			}
			t.done <- outcome{result: res, err: err}

			if err == nil {
				telemetry.ObservePatchApplied(wait)
				// Fire-and-forget relative to the caller's result,
				// but still serialized with patch execution.
				stats := s.policy.Prune(context.Background())
				telemetry.ObservePruned(stats.Removed)
			}

		case taskRestore:
			restore, err := s.exec.Restore(t.ctx, t.backupID)
			t.done <- outcome{restore: restore, err: err}

		case taskPrune:
			stats := s.policy.Prune(t.ctx)
			telemetry.ObservePruned(stats.Removed)
			t.done <- outcome{prune: stats}
		}
	}
}
