package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-sync/core/reconcile"

	"go.uber.org/zap"
)

// ErrBusy is returned while another run is in progress.
var ErrBusy = errors.New("a sync run is already in progress")

// Runner runs one reconciliation. *reconcile.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, opts reconcile.RunOptions) (*reconcile.Report, error)
}

// Service serializes sync runs and remembers the last applied report.
type Service struct {
	runner   Runner
	defaults reconcile.RunOptions
	logger   *zap.Logger

	running sync.Mutex

	mu     sync.RWMutex
	last   *reconcile.Report
	lastAt time.Time
}

// NewService creates a service. defaults supplies the worker count and
// timeout of every run.
func NewService(runner Runner, defaults reconcile.RunOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{runner: runner, defaults: defaults, logger: logger}
}

// Run runs one reconciliation. Only one run executes at a time; a concurrent
// call fails with ErrBusy instead of queueing.
func (s *Service) Run(ctx context.Context, mode reconcile.Mode, unmatched reconcile.UnmatchedPolicy) (*reconcile.Report, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	opts := s.defaults
	opts.Mode = mode
	opts.Unmatched = unmatched

	report, err := s.runner.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	if mode == reconcile.ModeApply {
		s.mu.Lock()
		s.last = report
		s.lastAt = time.Now()
		s.mu.Unlock()
	}
	return report, nil
}

// Last returns the report of the last apply run and when it finished.
func (s *Service) Last() (*reconcile.Report, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastAt, s.last != nil
}
