package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docquery/internal/logger"
)

// Supervisor tracks background indexing workers. It guarantees at most one
// live worker per index id and provides a bounded graceful shutdown.
type Supervisor struct {
	mu      sync.Mutex
	workers map[string]*workerHandle
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{
		workers: make(map[string]*workerHandle),
	}
}

// Enqueue starts fn in a background goroutine keyed by id. The worker runs
// on a fresh context detached from any request lifetime. Enqueueing an id
// that already has a live worker is a no-op and returns false.
func (s *Supervisor) Enqueue(id string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workers[id]; exists {
		logger.Debug("Worker for %s already running, not enqueueing", id)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &workerHandle{cancel: cancel, done: make(chan struct{})}
	s.workers[id] = handle

	go func() {
		defer func() {
			cancel()
			close(handle.done)
			s.mu.Lock()
			delete(s.workers, id)
			s.mu.Unlock()
		}()
		fn(ctx)
	}()

	return true
}

// Running reports whether a worker for id is still live.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[id]
	return ok
}

// Interrupt cancels the worker context for id, if one is live. The worker
// still finishes its own cleanup before deregistering.
func (s *Supervisor) Interrupt(id string) {
	s.mu.Lock()
	handle, ok := s.workers[id]
	s.mu.Unlock()
	if ok {
		handle.cancel()
	}
}

// Stop waits up to grace for live workers to finish, then force-cancels
// whatever remains and waits for those workers to drain.
func (s *Supervisor) Stop(grace time.Duration) {
	s.mu.Lock()
	handles := make([]*workerHandle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	if len(handles) == 0 {
		return
	}
	logger.Info("Waiting up to %s for %d indexing worker(s)", grace, len(handles))

	deadline := time.After(grace)
	for _, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			logger.Warn("Grace period elapsed, cancelling remaining workers")
			for _, rem := range handles {
				rem.cancel()
			}
			for _, rem := range handles {
				<-rem.done
			}
			return
		}
	}
}
