package payroll_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
	"github.com/warp/hr-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newServices(t *testing.T) *factory.Services {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := factory.NewServices(memory.New(), factory.Options{}, logger)
	ctx := context.Background()
	require.NoError(t, svcs.SeedDefaults(ctx))
	for _, code := range []string{"E001", "E002"} {
		_, err := svcs.Directory.CreateEmployee(ctx, generic.Employee{Code: code, FullName: "Employee " + code})
		require.NoError(t, err)
	}
	return svcs
}

func date(s string) generic.TimePoint {
	t, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func clock(s string) *generic.ClockTime {
	c, err := generic.ParseClockPtr(s)
	if err != nil {
		panic(err)
	}
	return c
}

func contract(t *testing.T, svcs *factory.Services, employeeID, start, salary string) *payroll.Contract {
	t.Helper()
	c, err := svcs.Contracts.Create(context.Background(), generic.EmployeeID(employeeID), payroll.ContractInput{
		StartDate:  date(start),
		BaseSalary: decimal.RequireFromString(salary),
	})
	require.NoError(t, err)
	return c
}

func novemberCycle(t *testing.T, svcs *factory.Services) *payroll.Cycle {
	t.Helper()
	c, err := svcs.Payroll.CreateCycle(context.Background(), payroll.CycleInput{
		StartDate: date("2025-11-01"),
		EndDate:   date("2025-11-30"),
	})
	require.NoError(t, err)
	return c
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculateForEmployee(t *testing.T) {
	// GIVEN: a 1,000,000 contract, one late day with overtime and two
	// approved unpaid days
	svcs := newServices(t)
	ctx := context.Background()
	contract(t, svcs, "E001", "2025-01-01", "1000000")
	novemberCycle(t, svcs)

	_, err := svcs.Attendance.RecordPunch(ctx, attendance.Punch{
		EmployeeID: "E001", Date: date("2025-11-03"), CheckIn: clock("09:10"), CheckOut: clock("19:05"),
	})
	require.NoError(t, err)
	req, err := svcs.Leave.Create(ctx, leave.CreateInput{
		EmployeeID: "E001", TypeCode: "UL", StartDate: date("2025-11-10"), EndDate: date("2025-11-11"),
	})
	require.NoError(t, err)
	_, err = svcs.Leave.Approve(ctx, req.ID, "mgr-1")
	require.NoError(t, err)

	// WHEN: the payslip is calculated
	slip, err := svcs.Payroll.CalculateForEmployee(ctx, "2025-11", "E001")

	// THEN: the summary reflects the month
	require.NoError(t, err)
	sum := slip.Summary
	assert.Equal(t, 20, sum.WorkingDaysInCycle)
	assert.Equal(t, 2, sum.UnpaidLeaveDays)
	assert.Equal(t, 18, sum.WorkingDaysPaid)
	assert.Equal(t, 5, sum.LateMinutes)
	assert.Equal(t, 45, sum.OTMinutesWeekday)
	assert.Zero(t, sum.OTMinutesWeekend)
	assert.Zero(t, sum.OTMinutesHoliday)
	assert.Equal(t, "6250", sum.BaseHourly.String())

	// AND: the money adds up
	require.Len(t, slip.Items, 6)
	assert.Equal(t, "900000", slip.Items[0].Amount.String())
	assert.Equal(t, "7031.25", slip.Items[1].Amount.String())
	assert.Equal(t, "907031.25", slip.Gross.String())
	assert.Equal(t, "907031.25", slip.Net.String())
	assert.Equal(t, "VND", slip.Currency)
	assert.Equal(t, payroll.PayslipCalculated, slip.Status)
}

func TestCalculate_IsIdempotent(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()
	contract(t, svcs, "E001", "2025-01-01", "1000000")
	novemberCycle(t, svcs)

	first, err := svcs.Payroll.CalculateForEmployee(ctx, "2025-11", "E001")
	require.NoError(t, err)
	_, err = svcs.Attendance.RecordPunch(ctx, attendance.Punch{
		EmployeeID: "E001", Date: date("2025-11-04"), CheckIn: clock("09:00"), CheckOut: clock("20:00"),
	})
	require.NoError(t, err)
	second, err := svcs.Payroll.CalculateForEmployee(ctx, "2025-11", "E001")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 90, second.Summary.OTMinutesWeekday)

	payslips, err := svcs.Payroll.Payslips(ctx, "2025-11")
	require.NoError(t, err)
	require.Len(t, payslips, 1)
	assert.True(t, payslips[0].Gross.Equal(second.Gross))

	got, err := svcs.Payroll.Payslip(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Summary.OTMinutesWeekday, got.Summary.OTMinutesWeekday)
}

func TestCalculateForAll_SkipsEmployeesWithoutContract(t *testing.T) {
	svcs := newServices(t)
	contract(t, svcs, "E001", "2025-01-01", "1000000")
	novemberCycle(t, svcs)

	payslips, err := svcs.Payroll.CalculateForAll(context.Background(), "2025-11")

	require.NoError(t, err)
	require.Len(t, payslips, 1)
	assert.Equal(t, generic.EmployeeID("E001"), payslips[0].EmployeeID)
}

func TestCalculateForAll_SkipsContractStartingAfterMidpoint(t *testing.T) {
	// GIVEN: E002 joins on the 20th, active at month end but not at the midpoint
	svcs := newServices(t)
	ctx := context.Background()
	contract(t, svcs, "E001", "2025-01-01", "1000000")
	contract(t, svcs, "E002", "2025-11-20", "1000000")
	novemberCycle(t, svcs)

	payslips, err := svcs.Payroll.CalculateForAll(ctx, "2025-11")
	require.NoError(t, err)
	assert.Len(t, payslips, 1)

	_, err = svcs.Payroll.CalculateForEmployee(ctx, "2025-11", "E002")
	assert.ErrorIs(t, err, generic.ErrNoActiveContract)
}

func TestSummary_ContractAtMidpoint(t *testing.T) {
	// GIVEN: a raise effective on the 10th
	svcs := newServices(t)
	ctx := context.Background()
	v1 := contract(t, svcs, "E001", "2025-01-01", "1000000")
	v2 := contract(t, svcs, "E001", "2025-11-10", "2000000")
	assert.Equal(t, 2, v2.Version)

	// THEN: the earlier version expired
	old, err := svcs.Contracts.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractExpired, old.Status)

	// AND: November is paid on the new salary
	p, _ := generic.MonthPeriod("2025-11")
	sum, err := svcs.Payroll.Summary(ctx, "E001", p)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, sum.ContractID)
	assert.Equal(t, "2000000", sum.BaseSalary.String())
}

func TestSummary_EmptyPeriod(t *testing.T) {
	svcs := newServices(t)
	contract(t, svcs, "E001", "2025-01-01", "1000000")

	weekend := generic.Period{Start: date("2025-11-08"), End: date("2025-11-09")}
	_, err := svcs.Payroll.Summary(context.Background(), "E001", weekend)

	assert.ErrorIs(t, err, generic.ErrEmptyCycle)
	assert.True(t, generic.IsClientError(err))
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestContracts_Validation(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()

	_, err := svcs.Contracts.Create(ctx, "E404", payroll.ContractInput{StartDate: date("2025-01-01")})
	assert.ErrorIs(t, err, generic.ErrUnknownEmployee)

	_, err = svcs.Contracts.Create(ctx, "E001", payroll.ContractInput{
		StartDate: date("2025-06-01"), EndDate: date("2025-01-01"),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = svcs.Contracts.Create(ctx, "E001", payroll.ContractInput{
		StartDate: date("2025-01-01"), BaseSalary: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestContracts_Update(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()
	c := contract(t, svcs, "E001", "2025-01-01", "1000000")

	end := date("2025-12-31")
	raise := decimal.NewFromInt(1100000)
	updated, err := svcs.Contracts.Update(ctx, c.ID, payroll.ContractUpdate{EndDate: &end, BaseSalary: &raise})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", updated.EndDate.String())
	assert.Equal(t, "1100000", updated.BaseSalary.String())

	active, err := svcs.Contracts.Active(ctx, "E001", date("2026-01-05"))
	require.NoError(t, err)
	assert.Nil(t, active)

	updated, err = svcs.Contracts.Update(ctx, c.ID, payroll.ContractUpdate{ClearEndDate: true})
	require.NoError(t, err)
	assert.True(t, updated.EndDate.IsZero())

	_, err = svcs.Contracts.Update(ctx, "missing", payroll.ContractUpdate{})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// CYCLES
// =============================================================================

func TestCycle_Lifecycle(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()
	contract(t, svcs, "E001", "2025-01-01", "1000000")
	cycle := novemberCycle(t, svcs)
	assert.Equal(t, "2025-11", cycle.ID)
	assert.Equal(t, "2025-11", cycle.Name)
	assert.Equal(t, payroll.CycleDraft, cycle.Status)

	_, err := svcs.Payroll.CreateCycle(ctx, payroll.CycleInput{StartDate: date("2025-11-01"), EndDate: date("2025-11-30")})
	assert.ErrorIs(t, err, generic.ErrConflict)

	locked, err := svcs.Payroll.UpdateCycleStatus(ctx, cycle.ID, payroll.CycleLocked)
	require.NoError(t, err)
	assert.Equal(t, payroll.CycleLocked, locked.Status)

	_, err = svcs.Payroll.UpdateCycleStatus(ctx, cycle.ID, payroll.CycleDraft)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "back to draft")
	_, err = svcs.Payroll.UpdateCycleStatus(ctx, cycle.ID, payroll.CycleLocked)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "same status")
	_, err = svcs.Payroll.CalculateForEmployee(ctx, cycle.ID, "E001")
	assert.ErrorIs(t, err, generic.ErrInvalidState, "calculate one")
	_, err = svcs.Payroll.CalculateForAll(ctx, cycle.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "calculate all")

	paid, err := svcs.Payroll.UpdateCycleStatus(ctx, cycle.ID, payroll.CyclePaid)
	require.NoError(t, err)
	assert.Equal(t, payroll.CyclePaid, paid.Status)

	_, err = svcs.Payroll.UpdateCycleStatus(ctx, "2030-01", payroll.CycleLocked)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = svcs.Payroll.UpdateCycleStatus(ctx, cycle.ID, payroll.CycleStatus("OPEN"))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestCycle_RejectsInvertedDates(t *testing.T) {
	svcs := newServices(t)
	_, err := svcs.Payroll.CreateCycle(context.Background(), payroll.CycleInput{
		StartDate: date("2025-11-30"), EndDate: date("2025-11-01"),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestComponents_Seeded(t *testing.T) {
	svcs := newServices(t)
	components, err := svcs.Payroll.Components(context.Background())
	require.NoError(t, err)
	require.Len(t, components, 6)
	assert.Equal(t, payroll.ComponentBaseSalary, components[0].ID)
}
