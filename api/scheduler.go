/*
scheduler.go - Automated attendance recalculation

PURPOSE:
  Periodically re-applies the attendance rules to the current month so that
  holiday and schedule edits reach records that were derived before them.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Recalculates the current month; during the first days of a month the
    previous month too, since it may not be paid yet
  - Skips months whose payroll cycle is no longer DRAFT
  - Records the time and count of the last run for admin display

CONFIGURATION:
  - CheckInterval: How often to run (RECALC_INTERVAL, default: 1 hour)
  - Enabled: Whether scheduler is active (interval > 0)

USAGE:
  scheduler := NewRecalcScheduler(svcs, logger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Recalculate endpoint (manual recalculation)
  - attendance/service.go: Recalculate
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/payroll"
)

// previousMonthGraceDays is how long into a month the previous month is
// still recalculated.
const previousMonthGraceDays = 5

// RecalcScheduler handles automated attendance recalculation.
type RecalcScheduler struct {
	Services      *factory.Services
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	statsMu     sync.Mutex
	lastRun     time.Time
	lastUpdated int
}

// NewRecalcScheduler creates a new scheduler. A non-positive interval
// disables it.
func NewRecalcScheduler(svcs *factory.Services, logger *slog.Logger, interval time.Duration) *RecalcScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalcScheduler{
		Services:      svcs,
		Logger:        logger.With("component", "recalc-scheduler"),
		CheckInterval: interval,
		Enabled:       interval > 0,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RecalcScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Logger.Info("scheduler started", "interval", rs.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running pass to finish.
func (rs *RecalcScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("scheduler stopped")
	}
}

func (rs *RecalcScheduler) run() {
	defer rs.wg.Done()

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow recalculates the due months immediately and returns the number of
// records re-derived.
func (rs *RecalcScheduler) RunNow(ctx context.Context) int {
	now := time.Now()
	if rs.Now != nil {
		now = rs.Now()
	}

	total := 0
	for _, p := range dueMonths(generic.DateOf(now)) {
		locked, err := rs.cycleClosed(ctx, p)
		if err != nil {
			rs.Logger.Warn("cycle lookup failed", "month", p.Month(), "error", err)
			continue
		}
		if locked {
			rs.Logger.Debug("skipping closed month", "month", p.Month())
			continue
		}
		n, err := rs.Services.Attendance.Recalculate(ctx, p, "")
		if err != nil {
			rs.Logger.Error("recalculation failed", "month", p.Month(), "error", err)
			continue
		}
		total += n
		rs.Logger.Info("month recalculated", "month", p.Month(), "updated", n)
	}

	rs.statsMu.Lock()
	rs.lastRun, rs.lastUpdated = now, total
	rs.statsMu.Unlock()
	return total
}

// LastRun returns when the last pass ran and how many records it updated.
func (rs *RecalcScheduler) LastRun() (time.Time, int) {
	rs.statsMu.Lock()
	defer rs.statsMu.Unlock()
	return rs.lastRun, rs.lastUpdated
}

// cycleClosed reports whether a payroll cycle covering p has left DRAFT.
func (rs *RecalcScheduler) cycleClosed(ctx context.Context, p generic.Period) (bool, error) {
	cycles, err := rs.Services.Payroll.Cycles(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range cycles {
		if c.Status != payroll.CycleDraft && c.Period().Overlaps(p) {
			return true, nil
		}
	}
	return false, nil
}

// dueMonths returns the current month, preceded by the previous one during
// the first days of a month.
func dueMonths(today generic.TimePoint) []generic.Period {
	current := generic.Period{
		Start: generic.StartOfMonth(today.Year(), today.Month()),
		End:   generic.EndOfMonth(today.Year(), today.Month()),
	}
	if today.Day() > previousMonthGraceDays {
		return []generic.Period{current}
	}
	prevEnd := current.Start.AddDays(-1)
	previous := generic.Period{
		Start: generic.StartOfMonth(prevEnd.Year(), prevEnd.Month()),
		End:   prevEnd,
	}
	return []generic.Period{previous, current}
}
