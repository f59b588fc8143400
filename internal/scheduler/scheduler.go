package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Queue is the slice of the queue engine the scheduler drives.
type Queue interface {
	ProcessTick(ctx context.Context) (int, error)
	NudgeChan() <-chan struct{}
}

// SweepFunc runs one retention sweep.
type SweepFunc func(ctx context.Context) error

// Scheduler owns the two process-wide timers: the queue tick and the daily
// cleanup. It has an explicit lifecycle so tests and shutdown paths can stop
// it cleanly; a tick that panics is logged and never kills the timer.
type Scheduler struct {
	tickEvery time.Duration
	cleanup   cron.Schedule
	queue     Queue
	sweep     SweepFunc
	log       zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a scheduler. cleanupSpec is a standard 5-field cron expression;
// the next fire time is computed from it rather than polling wall-clock
// windows.
func New(tickEvery time.Duration, cleanupSpec string, queue Queue, sweep SweepFunc, log zerolog.Logger) (*Scheduler, error) {
	if tickEvery <= 0 {
		tickEvery = 30 * time.Second
	}
	sched, err := cron.ParseStandard(cleanupSpec)
	if err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", cleanupSpec, err)
	}
	return &Scheduler{
		tickEvery: tickEvery,
		cleanup:   sched,
		queue:     queue,
		sweep:     sweep,
		log:       log,
	}, nil
}

// Start launches the tick and cleanup loops. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh

	s.wg.Add(2)
	go s.tickLoop(ctx, stopCh)
	go s.cleanupLoop(ctx, stopCh)
	s.log.Info().Dur("tick", s.tickEvery).Msg("scheduler started")
}

// Stop terminates both loops and waits for them to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		case <-s.queue.NudgeChan():
			// best-effort out-of-band pass for freshly enqueued work
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) cleanupLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		next := s.cleanup.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Any("panic", r).Str("stack", string(debug.Stack())).Msg("panic in queue tick")
		}
	}()
	processed, err := s.queue.ProcessTick(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("queue tick failed")
		return
	}
	if processed > 0 {
		s.log.Debug().Int("processed", processed).Msg("queue tick")
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Any("panic", r).Str("stack", string(debug.Stack())).Msg("panic in cleanup sweep")
		}
	}()
	if err := s.sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("cleanup sweep failed")
	}
}
