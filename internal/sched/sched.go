// Package sched provides the single-threaded task scheduler that owns all
// controller state mutation.
package sched

import (
	"log/slog"
	"sync"
)

// queueDepth bounds the number of pending tasks before Submit blocks.
const queueDepth = 64

// Scheduler runs submitted tasks one at a time on a single goroutine.
// Tasks run to completion without preemption, so state touched only from
// scheduler tasks needs no locking. Blocking work must not run here; hand
// it off to a worker goroutine and Submit the state mutation back.
type Scheduler struct {
	logger *slog.Logger

	tasks  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		tasks:  make(chan func(), queueDepth),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
	s.logger.Debug("scheduler started")
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.stopCh:
			// Drain whatever was accepted before the stop.
			for {
				select {
				case task := <-s.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task to run exactly once on the scheduler goroutine.
// Tasks submitted after Stop are dropped.
func (s *Scheduler) Submit(task func()) {
	select {
	case <-s.stopCh:
		s.logger.Debug("task dropped, scheduler stopped")
	case s.tasks <- task:
	}
}

// Do runs the task on the scheduler goroutine and waits for it to finish.
// Must not be called from a scheduler task.
func (s *Scheduler) Do(task func()) {
	done := make(chan struct{})
	s.Submit(func() {
		defer close(done)
		task()
	})
	select {
	case <-done:
	case <-s.doneCh:
	}
}

// Stop stops the loop after draining accepted tasks and waits for it to
// exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	s.logger.Debug("scheduler stopped")
}
