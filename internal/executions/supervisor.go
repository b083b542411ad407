package executions

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/sift/pkg/lifecycle"
)

// TimeoutReason is recorded on executions failed by the supervisor.
const TimeoutReason = "timeout"

// Supervisor fails executions that make no progress within a deadline. It is an
// ordinary caller of Fail and races with collaborator signals like any other.
type Supervisor struct {
	sys      System
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSupervisor creates a Supervisor. A zero timeout disables it.
func NewSupervisor(sys System, timeout, interval time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		sys:      sys,
		timeout:  timeout,
		interval: interval,
		logger:   logger.With("system", "supervisor"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the sweep loop until the coordinator shuts down.
func (s *Supervisor) Start(lc *lifecycle.Coordinator) error {
	if s.timeout <= 0 {
		s.logger.Info("supervisor disabled")
		return nil
	}

	lc.OnShutdown(func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("supervisor started", "timeout", s.timeout, "interval", s.interval)
		for {
			select {
			case <-lc.Context().Done():
				s.logger.Info("supervisor stopped")
				return
			case <-ticker.C:
				if _, err := s.Sweep(lc.Context()); err != nil {
					s.logger.Warn("sweep failed", "error", err)
				}
			}
		}
	})
	return nil
}

// Sweep fails every stale execution and returns how many it failed.
func (s *Supervisor) Sweep(ctx context.Context) (int, error) {
	stale, err := s.sys.Stale(ctx, s.now().Add(-s.timeout))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, e := range stale {
		if _, err := s.sys.Fail(ctx, e.ID, TimeoutReason); err != nil {
			s.logger.Debug("timeout not applied", "id", e.ID, "error", err)
			continue
		}
		failed++
	}

	if failed > 0 {
		s.logger.Info("stale executions failed", "count", failed)
	}
	return failed, nil
}
