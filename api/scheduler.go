/*
scheduler.go - Automated overdue sweep

PURPOSE:
  Periodically marks PENDING settlements as OVERDUE once their period ended
  more than DueAfter ago. PAID settlements are never touched; the status
  transition rules in settlement.ValidateTransition still apply.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Lists PENDING settlements and compares period end + DueAfter to now
  - A settlement paid between the list and the update fails the transition
    and is skipped

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - DueAfter: Grace period after the period end (default: 30 days)
  - Enabled: Whether the scheduler runs (DueAfter > 0)

USAGE:
  scheduler := NewOverdueScheduler(store, 30*24*time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: UpdateSettlementStatus endpoint (manual transition)
  - settlement/types.go: ValidateTransition
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

// SettlementStatusStore is the slice of the store the sweep needs.
type SettlementStatusStore interface {
	ListSettlements(ctx context.Context, f settlement.Filter) ([]settlement.Record, error)
	UpdateSettlementStatus(ctx context.Context, id generic.SettlementID, status settlement.Status) error
}

// OverdueScheduler handles automated PENDING -> OVERDUE transitions.
type OverdueScheduler struct {
	Store         SettlementStatusStore
	CheckInterval time.Duration
	DueAfter      time.Duration
	Enabled       bool
	Logger        *slog.Logger

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a new scheduler. A zero dueAfter disables it.
func NewOverdueScheduler(store SettlementStatusStore, dueAfter time.Duration, logger *slog.Logger) *OverdueScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		DueAfter:      dueAfter,
		Enabled:       dueAfter > 0,
		Logger:        logger,
		Now:           time.Now,
	}
}

// Start begins the scheduler. Starting a running scheduler is a no-op; a
// stopped one can be started again.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("overdue scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("overdue scheduler started", "interval", s.CheckInterval, "due_after", s.DueAfter)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("overdue scheduler stopped")
	}
}

func (s *OverdueScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns how many settlements became OVERDUE.
func (s *OverdueScheduler) RunNow(ctx context.Context) int {
	now := s.Now()

	pending, err := s.Store.ListSettlements(ctx, settlement.Filter{Status: settlement.StatusPending})
	if err != nil {
		s.Logger.Error("overdue sweep: failed to list settlements", "error", err)
		return 0
	}

	marked, skipped := 0, 0
	for _, r := range pending {
		// The period covers its whole last day.
		due := r.Period.End.AddDays(1).Time.Add(s.DueAfter)
		if now.Before(due) {
			continue
		}

		err := s.Store.UpdateSettlementStatus(ctx, r.ID, settlement.StatusOverdue)
		switch {
		case err == nil:
			marked++
			s.Logger.Info("settlement marked overdue", "settlement_id", r.ID, "employee_id", r.EmployeeID)
		case errors.Is(err, generic.ErrInvalidStatusTransition):
			skipped++
		default:
			s.Logger.Error("overdue sweep: failed to update settlement", "settlement_id", r.ID, "error", err)
		}
	}

	if marked > 0 || skipped > 0 {
		s.Logger.Info("overdue sweep completed", "marked", marked, "skipped", skipped)
	}
	return marked
}

// NextRunTime returns when the next scheduled check will occur.
func (s *OverdueScheduler) NextRunTime() time.Time {
	return s.Now().Add(s.CheckInterval)
}
