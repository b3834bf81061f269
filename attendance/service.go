package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warp/hr-engine/generic"
)

// DefaultRecalcWorkers bounds recalculation parallelism.
const DefaultRecalcWorkers = 4

// Service implements the attendance use cases.
type Service struct {
	Store     Store
	Employees generic.EmployeeDirectory
	Holidays  generic.HolidaySource
	Logger    *slog.Logger
	Now       func() time.Time
	Workers   int

	records    *generic.KeyedLocker
	scheduleMu sync.Mutex
}

func NewService(store Store, employees generic.EmployeeDirectory, holidays generic.HolidaySource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:     store,
		Employees: employees,
		Holidays:  holidays,
		Logger:    logger,
		Now:       time.Now,
		Workers:   DefaultRecalcWorkers,
		records:   generic.NewKeyedLocker(),
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) locker() *generic.KeyedLocker {
	if s.records == nil {
		s.records = generic.NewKeyedLocker()
	}
	return s.records
}

// lockDay serializes writers of one employee-day.
func (s *Service) lockDay(employeeID generic.EmployeeID, day generic.TimePoint) func() {
	return s.locker().Lock(recordKey(employeeID, day))
}

// LockDays takes the writer lock of every day of p for the employee and
// returns a func releasing them. Holders mark leave with MarkLeaveLocked.
func (s *Service) LockDays(employeeID generic.EmployeeID, p generic.Period) (unlock func()) {
	days := p.Days()
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, recordKey(employeeID, day))
	}
	return s.locker().LockAll(keys...)
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule returns the stored schedule, creating the default on first use.
func (s *Service) Schedule(ctx context.Context) (WorkSchedule, error) {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()

	sched, err := s.Store.GetSchedule(ctx)
	if err != nil {
		return WorkSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	if sched != nil {
		return *sched, nil
	}
	def := DefaultSchedule()
	def.UpdatedAt = s.now()
	if err := s.Store.SaveSchedule(ctx, def); err != nil {
		return WorkSchedule{}, fmt.Errorf("save default schedule: %w", err)
	}
	return def, nil
}

// UpdateSchedule replaces the schedule. Stored records are not recomputed.
func (s *Service) UpdateSchedule(ctx context.Context, u ScheduleUpdate) (WorkSchedule, error) {
	sched, err := u.Build()
	if err != nil {
		return WorkSchedule{}, err
	}
	sched.UpdatedAt = s.now()

	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	if err := s.Store.SaveSchedule(ctx, sched); err != nil {
		return WorkSchedule{}, fmt.Errorf("save schedule: %w", err)
	}
	s.Logger.Info("work schedule updated",
		"start", sched.StartTime.String(),
		"end", sched.EndTime.String(),
		"ot_after", sched.OTAfterMinutes,
		"ot_round_to", sched.OTRoundToMinutes)
	return sched, nil
}

// =============================================================================
// CALENDARS
// =============================================================================

// calendars caches one holiday calendar per month for the life of an operation.
type calendars struct {
	src    generic.HolidaySource
	months map[string]generic.Calendar
}

func (s *Service) newCalendars() *calendars {
	return &calendars{src: s.Holidays, months: make(map[string]generic.Calendar)}
}

func (c *calendars) forDay(ctx context.Context, day generic.TimePoint) (generic.Calendar, error) {
	key := day.Time.Format("2006-01")
	if cal, ok := c.months[key]; ok {
		return cal, nil
	}
	p := generic.Period{
		Start: generic.StartOfMonth(day.Year(), day.Month()),
		End:   generic.EndOfMonth(day.Year(), day.Month()),
	}
	cal, err := generic.LoadCalendar(ctx, c.src, p)
	if err != nil {
		return generic.Calendar{}, err
	}
	c.months[key] = cal
	return cal, nil
}

// =============================================================================
// PUNCHES
// =============================================================================

// Punch is a raw check-in/check-out pair for one employee-day.
type Punch struct {
	EmployeeID generic.EmployeeID
	Date       generic.TimePoint
	CheckIn    *generic.ClockTime
	CheckOut   *generic.ClockTime
	Source     string
	BatchID    string
}

// RecordPunch upserts the (employee, date) record with the given punches and
// re-derives it.
func (s *Service) RecordPunch(ctx context.Context, p Punch) (*Record, error) {
	sched, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := s.newCalendars().forDay(ctx, p.Date)
	if err != nil {
		return nil, err
	}
	return s.recordPunch(ctx, p, sched, cal)
}

func (s *Service) recordPunch(ctx context.Context, p Punch, sched WorkSchedule, cal generic.Calendar) (*Record, error) {
	unlock := s.lockDay(p.EmployeeID, p.Date)
	defer unlock()

	existing, err := s.Store.GetRecordByDay(ctx, p.EmployeeID, p.Date)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	now := s.now()
	rec := Record{
		ID:         generic.NewID(),
		EmployeeID: p.EmployeeID,
		Date:       p.Date,
		Status:     StatusAbsent,
		CreatedAt:  now,
	}
	if existing != nil {
		rec = *existing
	}
	rec.CheckIn = p.CheckIn
	rec.CheckOut = p.CheckOut
	rec.Source = p.Source
	if rec.Source == "" {
		rec.Source = SourceManual
	}
	rec.BatchID = p.BatchID
	rec.UpdatedAt = now

	rec = ApplyRules(rec, sched, cal)
	if err := s.Store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return &rec, nil
}

// =============================================================================
// QUICK EDIT
// =============================================================================

// Patch is a partial update of a record. A nil field is left unchanged;
// an empty CheckIn or CheckOut clears that punch.
type Patch struct {
	CheckIn  *string
	CheckOut *string
	Status   *string
	Note     *string
}

// QuickEdit applies patch to the record and re-derives it.
func (s *Service) QuickEdit(ctx context.Context, id string, patch Patch) (*Record, error) {
	rec, err := s.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec == nil {
		return nil, generic.NotFound("attendance record", id)
	}

	unlock := s.lockDay(rec.EmployeeID, rec.Date)
	defer unlock()

	// Re-read under the lock.
	rec, err = s.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec == nil {
		return nil, generic.NotFound("attendance record", id)
	}

	if patch.CheckIn != nil {
		if rec.CheckIn, err = generic.ParseClockPtr(strings.TrimSpace(*patch.CheckIn)); err != nil {
			return nil, err
		}
	}
	if patch.CheckOut != nil {
		if rec.CheckOut, err = generic.ParseClockPtr(strings.TrimSpace(*patch.CheckOut)); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && strings.TrimSpace(*patch.Status) != "" {
		st, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		rec.Status = st
	}
	if patch.Note != nil {
		rec.Note = *patch.Note
	}

	sched, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := s.newCalendars().forDay(ctx, rec.Date)
	if err != nil {
		return nil, err
	}
	updated := ApplyRules(*rec, sched, cal)
	updated.UpdatedAt = s.now()
	if err := s.Store.SaveRecord(ctx, updated); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return &updated, nil
}

// =============================================================================
// RECALCULATION
// =============================================================================

// Recalculate re-applies the rules to every record in p, optionally for one
// employee, and returns how many records were processed.
func (s *Service) Recalculate(ctx context.Context, p generic.Period, employeeID generic.EmployeeID) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	records, err := s.Store.ListRecords(ctx, RecordFilter{EmployeeID: employeeID, Period: p})
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	sched, err := s.Schedule(ctx)
	if err != nil {
		return 0, err
	}
	cal, err := generic.LoadCalendar(ctx, s.Holidays, p)
	if err != nil {
		return 0, err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan Record)
	errs := make(chan error, len(records))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := s.recalculateOne(ctx, rec, sched, cal); err != nil {
					errs <- err
				}
			}
		}()
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		jobs <- rec
	}
	close(jobs)
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	if err := ctx.Err(); err != nil {
		all = append(all, err)
	}
	if len(all) > 0 {
		return 0, fmt.Errorf("recalculate %s: %w", p, errors.Join(all...))
	}
	s.Logger.Info("attendance recalculated", "period", p.String(), "employee_id", string(employeeID), "records", len(records))
	return len(records), nil
}

func (s *Service) recalculateOne(ctx context.Context, rec Record, sched WorkSchedule, cal generic.Calendar) error {
	unlock := s.lockDay(rec.EmployeeID, rec.Date)
	defer unlock()

	current, err := s.Store.GetRecord(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("get record %s: %w", rec.ID, err)
	}
	if current == nil {
		return nil
	}
	updated := ApplyRules(*current, sched, cal)
	updated.UpdatedAt = s.now()
	if err := s.Store.SaveRecord(ctx, updated); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

// =============================================================================
// LEAVE MARKING
// =============================================================================

// MarkLeave sets LEAVE on every working day of p for the employee, clearing
// punches and metrics. Weekends and holidays are left untouched. It returns
// the number of days marked.
func (s *Service) MarkLeave(ctx context.Context, employeeID generic.EmployeeID, p generic.Period, note string) (int, error) {
	unlock := s.LockDays(employeeID, p)
	defer unlock()
	return s.MarkLeaveLocked(ctx, employeeID, p, note)
}

// MarkLeaveLocked is MarkLeave for a caller that already holds LockDays for
// the same employee and period.
func (s *Service) MarkLeaveLocked(ctx context.Context, employeeID generic.EmployeeID, p generic.Period, note string) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	cal, err := generic.LoadCalendar(ctx, s.Holidays, p)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, day := range p.Days() {
		if cal.IsNonWorking(day) {
			continue
		}
		if err := s.markLeaveDay(ctx, employeeID, day, note); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

func (s *Service) markLeaveDay(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint, note string) error {
	existing, err := s.Store.GetRecordByDay(ctx, employeeID, day)
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}
	now := s.now()
	rec := Record{ID: generic.NewID(), EmployeeID: employeeID, Date: day, CreatedAt: now}
	if existing != nil {
		rec = *existing
	}
	rec.Status = StatusLeave
	rec.CheckIn, rec.CheckOut = nil, nil
	rec.Source = SourceLeave
	rec.Note = note
	rec.zeroMetrics()
	rec.UpdatedAt = now
	if err := s.Store.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("save leave day %s: %w", day, err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Records lists one employee's records in p.
func (s *Service) Records(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) ([]Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.Store.ListRecords(ctx, RecordFilter{EmployeeID: employeeID, Period: p})
}

// CompanyRecords lists everyone's records in p, optionally restricted to a department.
func (s *Service) CompanyRecords(ctx context.Context, p generic.Period, department string) ([]Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	records, err := s.Store.ListRecords(ctx, RecordFilter{Period: p})
	if err != nil {
		return nil, err
	}
	if department == "" {
		return records, nil
	}
	members, err := generic.DepartmentFilter(ctx, s.Employees, department)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if _, ok := members[r.EmployeeID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) Record(ctx context.Context, id string) (*Record, error) {
	rec, err := s.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, generic.NotFound("attendance record", id)
	}
	return rec, nil
}

func (s *Service) Batch(ctx context.Context, id string) (*Batch, error) {
	b, err := s.Store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, generic.NotFound("import batch", id)
	}
	return b, nil
}
