package scheduler

import (
	"context"
	"sync"
	"time"

	"humormapper/internal/logger"
)

// SessionPruner removes expired sessions. service.AuthService implements it.
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// Scheduler periodically prunes expired sessions so the sessions table does
// not grow without bound.
type Scheduler struct {
	pruner   SessionPruner
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(pruner SessionPruner, interval time.Duration) *Scheduler {
	timeout := interval
	if timeout > time.Minute {
		timeout = time.Minute
	}
	return &Scheduler{
		pruner:   pruner,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("scheduler started", "module", "scheduler", "action", "prune", "resource", "session", "result", "ok", "interval_ms", s.interval.Milliseconds())
}

// Stop waits for an in-flight prune to finish. It is safe to call twice.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		logger.Info("scheduler stopped", "module", "scheduler", "action", "prune", "resource", "session", "result", "ok")
	})
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.pruner.PruneSessions(ctx)
	if err != nil {
		logger.Error("session prune failed", "module", "scheduler", "action", "prune", "resource", "session", "result", "failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("expired sessions pruned", "module", "scheduler", "action", "prune", "resource", "session", "result", "ok", "count", n)
	}
}
