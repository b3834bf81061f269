package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store      *memory.Memory
	attendance *attendance.Service
	svc        *leave.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveEmployee(ctx, generic.Employee{ID: "E001", Code: "E001", FullName: "An Nguyen", Department: "ENG"}))
	require.NoError(t, store.SaveEmployee(ctx, generic.Employee{ID: "E002", Code: "E002", FullName: "Binh Tran", Department: "OPS"}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: date("2025-11-20"), Name: "Company Day"}))

	att := attendance.NewService(store, store, store, nil)
	svc := leave.NewService(store, store, store, att, nil)
	svc.Now = func() time.Time { return time.Date(2025, time.October, 30, 10, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.SeedTypes(ctx))
	return &fixture{store: store, attendance: att, svc: svc}
}

func date(s string) generic.TimePoint {
	t, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) submit(t *testing.T, in leave.CreateInput) *leave.Request {
	t.Helper()
	req, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	return req
}

func annual(employeeID, start, end string) leave.CreateInput {
	return leave.CreateInput{
		EmployeeID: generic.EmployeeID(employeeID),
		TypeCode:   "AL",
		StartDate:  date(start),
		EndDate:    date(end),
		CreatedBy:  employeeID,
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_ComputesDays(t *testing.T) {
	f := newFixture(t)

	in := annual("E001", "2025-11-03", "2025-11-05")
	in.StartSession = "am"
	req := f.submit(t, in)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, "2.5", req.Days.String())
	assert.Equal(t, leave.SessionAM, req.StartSession)
	assert.Equal(t, leave.SessionFull, req.EndSession)
}

func TestCreate_WeekendOnlyIsZeroDays(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, annual("E001", "2025-11-08", "2025-11-09"))
	assert.True(t, req.Days.IsZero())
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, annual("E404", "2025-11-03", "2025-11-03"))
	assert.ErrorIs(t, err, generic.ErrUnknownEmployee)

	in := annual("E001", "2025-11-03", "2025-11-03")
	in.TypeCode = "ZZ"
	_, err = f.svc.Create(ctx, in)
	assert.ErrorIs(t, err, generic.ErrUnknownLeaveType)

	_, err = f.svc.Create(ctx, annual("E001", "2025-11-05", "2025-11-03"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	in = annual("E001", "2025-11-03", "2025-11-03")
	in.EndSession = "EVENING"
	_, err = f.svc.Create(ctx, in)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

func TestApprove_DeductsQuotaAndMarksAttendance(t *testing.T) {
	// GIVEN: a pending request over the holiday week
	f := newFixture(t)
	ctx := context.Background()
	req := f.submit(t, annual("E001", "2025-11-19", "2025-11-21"))
	require.Equal(t, "2", req.Days.String())

	// WHEN: approved
	approved, err := f.svc.Approve(ctx, req.ID, "mgr-1")

	// THEN: the request is decided
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "mgr-1", approved.ApproverID)
	require.NotNil(t, approved.DecidedAt)

	// AND: the quota is charged
	q, err := f.svc.QuotaOf(ctx, "E001", 2025)
	require.NoError(t, err)
	assert.Equal(t, "12", q.Entitlement.String())
	assert.Equal(t, "2", q.Taken.String())
	assert.Equal(t, "10", q.Remaining.String())

	history, err := f.svc.QuotaHistory(ctx, "E001", 2025)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, leave.EntryApproval, history[0].Kind)
	assert.Equal(t, "approve:"+req.ID, history[0].IdempotencyKey)

	taken, err := f.svc.Ledger.Taken(ctx, "E001", 2025)
	require.NoError(t, err)
	assert.True(t, taken.Equal(q.Taken))

	// AND: only the working days are LEAVE
	p, _ := generic.MonthPeriod("2025-11")
	records, err := f.attendance.Records(ctx, "E001", p)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-11-19", records[0].Date.String())
	assert.Equal(t, "2025-11-21", records[1].Date.String())
	for _, r := range records {
		assert.Equal(t, attendance.StatusLeave, r.Status)
	}
}

func TestApprove_UnpaidLeaveKeepsQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := annual("E002", "2025-11-10", "2025-11-11")
	in.TypeCode = "ul"
	req := f.submit(t, in)

	_, err := f.svc.Approve(ctx, req.ID, "mgr-1")
	require.NoError(t, err)

	q, err := f.svc.QuotaOf(ctx, "E002", 2025)
	require.NoError(t, err)
	assert.True(t, q.Taken.IsZero())

	p, _ := generic.MonthPeriod("2025-11")
	unpaid, err := f.svc.ApprovedUnpaid(ctx, "E002", p)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, req.ID, unpaid[0].ID)
}

func TestDecisions_AreTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approvedReq := f.submit(t, annual("E001", "2025-11-03", "2025-11-03"))
	rejectedReq := f.submit(t, annual("E001", "2025-11-04", "2025-11-04"))

	_, err := f.svc.Approve(ctx, approvedReq.ID, "mgr-1")
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, rejectedReq.ID, "mgr-1", "busy week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "busy week", rejected.Note)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"approve twice", func() error { _, err := f.svc.Approve(ctx, approvedReq.ID, "mgr-2"); return err }},
		{"reject approved", func() error { _, err := f.svc.Reject(ctx, approvedReq.ID, "mgr-2", ""); return err }},
		{"approve rejected", func() error { _, err := f.svc.Approve(ctx, rejectedReq.ID, "mgr-2"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			var stateErr *generic.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.True(t, generic.IsConflict(err))
		})
	}

	// The double approval did not charge twice.
	q, err := f.svc.QuotaOf(ctx, "E001", 2025)
	require.NoError(t, err)
	assert.Equal(t, "1", q.Taken.String())
}

func TestApprove_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Approve(context.Background(), "nope", "mgr-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// LEDGER AND QUOTA
// =============================================================================

func TestLedger_RejectsDuplicateKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := leave.QuotaEntry{
		EmployeeID:     "E001",
		Year:           2025,
		Kind:           leave.EntryApproval,
		Delta:          decimal.NewFromInt(1),
		IdempotencyKey: "approve:r1",
	}

	require.NoError(t, f.svc.Ledger.Append(ctx, entry))
	err := f.svc.Ledger.Append(ctx, entry)
	assert.ErrorIs(t, err, generic.ErrDuplicateEntry)

	entries, err := f.svc.QuotaHistory(ctx, "E001", 2025)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestQuotaOf_LazyCreation(t *testing.T) {
	f := newFixture(t)
	f.svc.DefaultEntitlement = decimal.NewFromInt(15)

	q, err := f.svc.QuotaOf(context.Background(), "E002", 2026)
	require.NoError(t, err)
	assert.Equal(t, "15", q.Remaining.String())

	_, err = f.svc.QuotaOf(context.Background(), "E002", 0)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// TYPES AND QUERIES
// =============================================================================

func TestLeaveTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	types, err := f.svc.Types(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = f.svc.CreateType(ctx, leave.LeaveType{Code: "sl"})
	assert.ErrorIs(t, err, generic.ErrConflict)

	created, err := f.svc.CreateType(ctx, leave.LeaveType{Code: "WED", DeductQuota: true})
	require.NoError(t, err)
	assert.Equal(t, "WED", created.Name)
	assert.False(t, created.Paid)

	name := "Wedding"
	paid := true
	updated, err := f.svc.UpdateType(ctx, created.ID, leave.TypeUpdate{Name: &name, Paid: &paid})
	require.NoError(t, err)
	assert.Equal(t, "Wedding", updated.Name)
	assert.False(t, updated.IsUnpaid())

	require.NoError(t, f.svc.DeleteType(ctx, created.ID))
	assert.ErrorIs(t, f.svc.DeleteType(ctx, created.ID), generic.ErrNotFound)

	// Seeding again does not duplicate.
	require.NoError(t, f.svc.SeedTypes(ctx))
	types, err = f.svc.Types(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)
}

func TestLeaveTypes_InUseCodeIsLocked(t *testing.T) {
	// GIVEN: an approved unpaid request for E002
	f := newFixture(t)
	ctx := context.Background()
	in := annual("E002", "2025-11-10", "2025-11-11")
	in.TypeCode = "UL"
	req := f.submit(t, in)
	_, err := f.svc.Approve(ctx, req.ID, "mgr-1")
	require.NoError(t, err)

	types, err := f.svc.Types(ctx)
	require.NoError(t, err)
	var ulID string
	for _, lt := range types {
		if lt.Code == "UL" {
			ulID = lt.ID
		}
	}
	require.NotEmpty(t, ulID)

	// WHEN: renaming or deleting the code
	code := "UNPAID"
	_, err = f.svc.UpdateType(ctx, ulID, leave.TypeUpdate{Code: &code})

	// THEN: both are refused
	assert.ErrorIs(t, err, generic.ErrConflict)
	assert.ErrorIs(t, f.svc.DeleteType(ctx, ulID), generic.ErrConflict)

	// AND: the request still counts as unpaid
	p, _ := generic.MonthPeriod("2025-11")
	unpaid, err := f.svc.ApprovedUnpaid(ctx, "E002", p)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, req.ID, unpaid[0].ID)

	// AND: changes that keep the code are allowed
	name := "Unpaid leave (HR)"
	same := "UL"
	updated, err := f.svc.UpdateType(ctx, ulID, leave.TypeUpdate{Code: &same, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Unpaid leave (HR)", updated.Name)
}

func TestList_AndMonthlyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.submit(t, annual("E001", "2025-11-03", "2025-11-04"))
	f.submit(t, annual("E002", "2025-11-12", "2025-11-12"))
	f.submit(t, annual("E001", "2025-12-01", "2025-12-01"))
	_, err := f.svc.Approve(ctx, first.ID, "mgr-1")
	require.NoError(t, err)

	pending, err := f.svc.List(ctx, leave.RequestFilter{Status: leave.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	p, _ := generic.MonthPeriod("2025-11")
	november, err := f.svc.List(ctx, leave.RequestFilter{EmployeeID: "E001", StartWithin: &p})
	require.NoError(t, err)
	require.Len(t, november, 1)
	assert.Equal(t, first.ID, november[0].ID)

	report, err := f.svc.MonthlyReport(ctx, "2025-11", "")
	require.NoError(t, err)
	assert.Len(t, report.Rows, 2)
	assert.Equal(t, "2", report.TotalDaysApproved.String())
	assert.Equal(t, "1", report.TotalDaysPending.String())

	ops, err := f.svc.MonthlyReport(ctx, "2025-11", "OPS")
	require.NoError(t, err)
	require.Len(t, ops.Rows, 1)
	assert.Equal(t, "Binh Tran", ops.Rows[0].EmployeeName)
}
