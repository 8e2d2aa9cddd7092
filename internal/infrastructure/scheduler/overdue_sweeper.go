package scheduler

import (
	"context"
	"sync"
	"time"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"go.uber.org/zap"
)

// OverdueSweeper periodically marks past-due open debts as OVERDUE across all
// tenants. The sweep itself is idempotent, so overlapping or repeated runs are
// harmless.
type OverdueSweeper struct {
	service   *appsettlement.SettlementService
	logger    *zap.Logger
	config    OverdueSweeperConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// OverdueSweeperConfig holds configuration for the overdue sweeper
type OverdueSweeperConfig struct {
	// Enabled determines if the sweeper is active
	Enabled bool

	// Interval is the time between sweep runs
	Interval time.Duration

	// SweepTimeout is the maximum time for a single sweep run
	SweepTimeout time.Duration
}

// DefaultOverdueSweeperConfig returns default configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Enabled:      true,
		Interval:     time.Hour,
		SweepTimeout: 5 * time.Minute,
	}
}

// NewOverdueSweeper creates a new overdue sweeper
func NewOverdueSweeper(
	service *appsettlement.SettlementService,
	logger *zap.Logger,
	config OverdueSweeperConfig,
) *OverdueSweeper {
	return &OverdueSweeper{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweep loop. The first sweep runs after one interval, not
// immediately, so a crash-looping process does not hammer the database.
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweeper is disabled")
		return nil
	}
	if s.config.Interval <= 0 {
		s.mu.Unlock()
		return ErrInvalidConfig
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop gracefully stops the sweeper
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for the loop to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

// run sweeps on every tick until the context is cancelled
func (s *OverdueSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Overdue sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one sweep across all tenants
func (s *OverdueSweeper) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.service.SweepAllTenants(sweepCtx, startTime)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Overdue sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Overdue sweep completed",
		zap.Duration("duration", duration),
		zap.Int("tenants", result.Tenants),
		zap.Int64("debts_marked", result.Affected),
	)
}

// TriggerImmediateSweep triggers a sweep run outside the regular interval
func (s *OverdueSweeper) TriggerImmediateSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate overdue sweep")

	go func() {
		defer s.wg.Done()
		s.executeSweep(ctx)
	}()

	return nil
}

// IsRunning returns whether the sweeper is running
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
