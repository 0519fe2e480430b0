package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupervisor_EnqueueRunsWorker(t *testing.T) {
	s := NewSupervisor()
	done := make(chan struct{})

	ok := s.Enqueue("idx-1", func(_ context.Context) {
		close(done)
	})
	assert.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker never ran")
	}
}

func TestSupervisor_EnqueueIsIdempotentWhileRunning(t *testing.T) {
	s := NewSupervisor()
	release := make(chan struct{})
	var runs atomic.Int32

	s.Enqueue("idx-1", func(_ context.Context) {
		runs.Add(1)
		<-release
	})
	// Give the first worker time to register and start.
	waitFor(t, func() bool { return s.Running("idx-1") })

	ok := s.Enqueue("idx-1", func(_ context.Context) {
		runs.Add(1)
	})
	assert.False(t, ok, "second enqueue for a live worker must be refused")

	close(release)
	waitFor(t, func() bool { return !s.Running("idx-1") })
	assert.Equal(t, int32(1), runs.Load())
}

func TestSupervisor_DeregistersAfterExit(t *testing.T) {
	s := NewSupervisor()
	s.Enqueue("idx-1", func(_ context.Context) {})

	waitFor(t, func() bool { return !s.Running("idx-1") })

	ok := s.Enqueue("idx-1", func(_ context.Context) {})
	assert.True(t, ok, "a finished id can be enqueued again")
}

func TestSupervisor_InterruptCancelsContext(t *testing.T) {
	s := NewSupervisor()
	cancelled := make(chan struct{})

	s.Enqueue("idx-1", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	waitFor(t, func() bool { return s.Running("idx-1") })

	s.Interrupt("idx-1")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("worker context was never cancelled")
	}
}

func TestSupervisor_StopForcesSlowWorkers(t *testing.T) {
	s := NewSupervisor()
	exited := make(chan struct{})

	s.Enqueue("slow", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})
	waitFor(t, func() bool { return s.Running("slow") })

	start := time.Now()
	s.Stop(50 * time.Millisecond)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("worker survived Stop")
	}
	assert.Less(t, time.Since(start), time.Second)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
