package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
	"github.com/warp/hr-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(s string) generic.TimePoint {
	d, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func clock(h, m int) *generic.ClockTime {
	c := generic.NewClockTime(h, m)
	return &c
}

// =============================================================================
// EMPLOYEES AND HOLIDAYS
// =============================================================================

func TestEmployees_CodeUniqueIgnoringCase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, generic.Employee{ID: "E1", Code: "emp01", FullName: "An"}))
	err := store.SaveEmployee(ctx, generic.Employee{ID: "E2", Code: "EMP01", FullName: "Binh"})
	assert.ErrorIs(t, err, generic.ErrConflict)

	e, err := store.GetEmployeeByCode(ctx, "Emp01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, generic.EmployeeID("E1"), e.ID)

	missing, err := store.GetEmployee(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHolidays_ListByYearAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: day("2025-01-01"), Name: "New Year"}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h2", Date: day("2025-09-02"), Name: "National Day"}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h3", Date: day("2026-01-01"), Name: "New Year"}))

	hs, err := store.ListHolidays(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, hs, 2)

	between, err := store.HolidaysBetween(ctx, day("2025-09-01"), day("2025-09-30"))
	require.NoError(t, err)
	require.Len(t, between, 1)
	assert.Equal(t, "National Day", between[0].Name)

	err = store.SaveHoliday(ctx, generic.Holiday{ID: "h4", Date: day("2025-01-01"), Name: "Duplicate"})
	assert.ErrorIs(t, err, generic.ErrConflict)

	assert.True(t, generic.IsNotFound(store.DeleteHoliday(ctx, "missing")))
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestRecords_RoundTripAndDayUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := attendance.Record{
		ID:          "r1",
		EmployeeID:  "E1",
		Date:        day("2025-11-03"),
		CheckIn:     clock(9, 10),
		CheckOut:    clock(19, 5),
		Status:      attendance.StatusPresent,
		LateMinutes: 5,
		OTMinutes:   45,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, store.SaveRecord(ctx, rec))

	got, err := store.GetRecordByDay(ctx, "E1", day("2025-11-03"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, generic.NewClockTime(9, 10), *got.CheckIn)
	assert.Equal(t, 45, got.OTMinutes)

	// A different id on the same employee-day violates uniqueness.
	dup := rec
	dup.ID = "r2"
	assert.ErrorIs(t, store.SaveRecord(ctx, dup), generic.ErrConflict)

	// Clearing punches persists as NULL.
	rec.CheckIn, rec.CheckOut = nil, nil
	rec.Status = attendance.StatusAbsent
	require.NoError(t, store.SaveRecord(ctx, rec))
	got, err = store.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.CheckIn)
	assert.Equal(t, attendance.StatusAbsent, got.Status)
}

func TestSchedule_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	none, err := store.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	ws := attendance.DefaultSchedule()
	require.NoError(t, store.SaveSchedule(ctx, ws))

	got, err := store.GetSchedule(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ws.StartTime, got.StartTime)
	assert.Equal(t, ws.WorkingDays, got.WorkingDays)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.SaveEmployee(ctx, generic.Employee{ID: "E1", Code: "E1", FullName: "An"}))
		// Nested calls join the outer transaction.
		return store.WithTx(ctx, func(ctx context.Context) error {
			got, err := store.GetEmployee(ctx, "E1")
			require.NoError(t, err)
			require.NotNil(t, got)
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetEmployee(ctx, "E1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestQuotaEntries_IdempotencyKeyUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := leave.QuotaEntry{
		ID: "q1", EmployeeID: "E1", Year: 2025, Kind: leave.EntryApproval,
		Delta: decimal.NewFromFloat(2.5), RequestID: "req-1", IdempotencyKey: "approve:req-1",
	}
	require.NoError(t, store.AppendQuotaEntry(ctx, entry))

	entry.ID = "q2"
	assert.ErrorIs(t, store.AppendQuotaEntry(ctx, entry), generic.ErrDuplicateEntry)

	entries, err := store.ListQuotaEntries(ctx, "E1", 2025)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Delta.Equal(decimal.NewFromFloat(2.5)))
}

func TestLeaveTypes_PaidFlagIsNullable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLeaveType(ctx, leave.LeaveType{ID: "t1", Code: "UNPAID_X", Name: "Legacy"}))
	lt, err := store.GetLeaveTypeByCode(ctx, "unpaid_x")
	require.NoError(t, err)
	require.NotNil(t, lt)
	assert.False(t, lt.PaidSet)
	assert.True(t, lt.IsUnpaid())

	err = store.SaveLeaveType(ctx, leave.LeaveType{ID: "t2", Code: "unpaid_x", Name: "Clash"})
	assert.ErrorIs(t, err, generic.ErrConflict)
}

func TestListRequests_Overlapping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, r := range []leave.Request{
		{ID: "a", EmployeeID: "E1", TypeCode: "UL", StartDate: day("2025-10-30"), EndDate: day("2025-11-02"), Status: leave.StatusApproved},
		{ID: "b", EmployeeID: "E1", TypeCode: "UL", StartDate: day("2025-11-10"), EndDate: day("2025-11-11"), Status: leave.StatusPending},
		{ID: "c", EmployeeID: "E1", TypeCode: "UL", StartDate: day("2025-12-01"), EndDate: day("2025-12-01"), Status: leave.StatusApproved},
	} {
		r.StartSession, r.EndSession = leave.SessionFull, leave.SessionFull
		r.Days = decimal.NewFromInt(1)
		r.CreatedAt, r.UpdatedAt = now, now
		require.NoError(t, store.SaveRequest(ctx, r))
	}

	nov, err := generic.MonthPeriod("2025-11")
	require.NoError(t, err)

	got, err := store.ListRequests(ctx, leave.RequestFilter{Status: leave.StatusApproved, Overlapping: &nov})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	started, err := store.ListRequests(ctx, leave.RequestFilter{StartWithin: &nov})
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, "b", started[0].ID)
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPayslips_UniquePerCycleAndEmployee(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	slip := payroll.Payslip{
		ID: "p1", CycleID: "2025-11", EmployeeID: "E1", Currency: "VND",
		Items: []payroll.Item{{ComponentID: payroll.ComponentBaseSalary, Label: "Base salary", Kind: payroll.KindEarning, Amount: decimal.NewFromInt(909091)}},
		Gross: decimal.NewFromInt(909091), Net: decimal.NewFromInt(909091),
		Status: payroll.PayslipCalculated, GeneratedAt: time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SavePayslip(ctx, slip))

	got, err := store.GetPayslipFor(ctx, "2025-11", "E1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Net.Equal(decimal.NewFromInt(909091)))

	dup := slip
	dup.ID = "p2"
	assert.ErrorIs(t, store.SavePayslip(ctx, dup), generic.ErrConflict)
}

func TestContracts_OpenEndedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := payroll.Contract{
		ID: "c1", EmployeeID: "E1", Type: "FULL_TIME", StartDate: day("2025-01-01"),
		BaseSalary: decimal.NewFromInt(1000000), Status: payroll.ContractActive, Version: 1,
	}
	require.NoError(t, store.SaveContract(ctx, c))

	cs, err := store.ListContracts(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.True(t, cs[0].EndDate.IsZero())
	assert.True(t, cs[0].CoversDay(day("2030-06-15")))
}
