package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stock_watcher/internal/domain"
)

type Policy string

const (
	// PolicyGap waits a product's check interval after its last run.
	PolicyGap Policy = "gap"
	// PolicyFixed makes every candidate due on every tick.
	PolicyFixed Policy = "fixed"
)

// Runner executes one availability check.
type Runner interface {
	Run(ctx context.Context, productID int64) (*domain.ExecutionOutcome, error)
}

// CandidateStore lists the products eligible for scheduling.
type CandidateStore interface {
	ListScheduleCandidates(ctx context.Context) ([]domain.ScheduleCandidate, error)
}

type Config struct {
	Tick    time.Duration
	Workers int
	Policy  Policy
}

type Scheduler struct {
	runner     Runner
	candidates CandidateStore
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewScheduler(runner Runner, candidates CandidateStore, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyGap
	}
	return &Scheduler{
		runner:     runner,
		candidates: candidates,
		cfg:        cfg,
		logger:     logger.With("component", "scheduler"),
		now:        func() time.Time { return time.Now().UTC() },
		inFlight:   make(map[int64]struct{}),
	}
}

// NextEligible is the earliest instant a product last run at lastRun may run
// again.
func NextEligible(lastRun time.Time, interval time.Duration) time.Time {
	return lastRun.Add(interval)
}

// DueProducts returns the ids of the products that should run at now.
// Products that never ran are always due.
func (s *Scheduler) DueProducts(ctx context.Context, now time.Time) ([]int64, error) {
	candidates, err := s.candidates.ListScheduleCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedule candidates: %w", err)
	}

	var due []int64
	for _, c := range candidates {
		if s.cfg.Policy == PolicyFixed || c.LastExecutedAt == nil {
			due = append(due, c.ProductID)
			continue
		}
		interval := time.Duration(c.CheckIntervalSeconds) * time.Second
		if !now.Before(NextEligible(*c.LastExecutedAt, interval)) {
			due = append(due, c.ProductID)
		}
	}

	return due, nil
}

// Start runs due products on every tick until ctx is cancelled, then waits for
// the runs already started.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"tick", s.cfg.Tick,
		"workers", s.cfg.Workers,
		"policy", s.cfg.Policy,
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)

	s.dispatch(ctx, g)

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for running checks")
			_ = g.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.dispatch(ctx, g)
		}
	}
}

// dispatch hands due products to the pool without blocking. Products still
// in flight are left alone; anything that does not fit in the pool waits for
// the next tick.
func (s *Scheduler) dispatch(ctx context.Context, g *errgroup.Group) int {
	due, err := s.DueProducts(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to compute due products", "error", err)
		return 0
	}

	started := 0
	for _, id := range due {
		if !s.claim(id) {
			continue
		}

		// In-flight runs finish on shutdown; each is bounded by its own run timeout.
		runCtx := context.WithoutCancel(ctx)
		if !g.TryGo(func() error {
			defer s.release(id)
			s.runProduct(runCtx, id)
			return nil
		}) {
			s.release(id)
			s.logger.Debug("worker pool saturated", "deferred", len(due)-started)
			break
		}
		started++
	}

	if started > 0 {
		s.logger.Debug("dispatched due products", "due", len(due), "started", started)
	}
	return started
}

func (s *Scheduler) runProduct(ctx context.Context, productID int64) {
	outcome, err := s.runner.Run(ctx, productID)
	if err != nil {
		s.logger.Error("run failed", "product_id", productID, "error", err)
		return
	}
	if !outcome.Success {
		s.logger.Warn("run did not succeed", "product_id", productID, "message", outcome.Message)
	}
}

func (s *Scheduler) claim(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[productID]; ok {
		return false
	}
	s.inFlight[productID] = struct{}{}
	return true
}

func (s *Scheduler) release(productID int64) {
	s.mu.Lock()
	delete(s.inFlight, productID)
	s.mu.Unlock()
}
