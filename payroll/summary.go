package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
)

// HoursPerDay converts working days to hours for the hourly rate.
const HoursPerDay = 8

// AttendanceReader lists an employee's attendance records.
type AttendanceReader interface {
	Records(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) ([]attendance.Record, error)
}

// LeaveReader lists approved leave of unpaid types.
type LeaveReader interface {
	ApprovedUnpaid(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) ([]leave.Request, error)
}

// ContractLookup finds the contract active on a day.
type ContractLookup interface {
	Active(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*Contract, error)
}

// Summarizer builds attendance summaries.
type Summarizer struct {
	Contracts  ContractLookup
	Attendance AttendanceReader
	Leave      LeaveReader
	Holidays   generic.HolidaySource
}

// Summarize aggregates the employee's attendance over p.
//
// The contract is resolved at the period midpoint; without one the summary
// fails with ErrNoActiveContract. A period without working days fails with
// ErrEmptyCycle.
func (s *Summarizer) Summarize(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	contract, err := s.Contracts.Active(ctx, employeeID, p.Midpoint())
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: employee %s on %s", generic.ErrNoActiveContract, employeeID, p.Midpoint())
	}

	cal, err := generic.LoadCalendar(ctx, s.Holidays, p)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		EmployeeID:         employeeID,
		Period:             p,
		ContractID:         contract.ID,
		WorkingDaysInCycle: cal.WorkingDays(p),
		BaseSalary:         contract.BaseSalary,
	}
	if sum.WorkingDaysInCycle == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrEmptyCycle, p)
	}

	records, err := s.Attendance.Records(ctx, employeeID, p)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	for _, r := range records {
		sum.LateMinutes += r.LateMinutes
		sum.EarlyLeaveMinutes += r.EarlyMinutes
		switch cal.Classify(r.Date) {
		case generic.DayHoliday:
			sum.OTMinutesHoliday += r.OTMinutes
		case generic.DayWeekend:
			sum.OTMinutesWeekend += r.OTMinutes
		default:
			sum.OTMinutesWeekday += r.OTMinutes
		}
	}

	unpaid, err := s.Leave.ApprovedUnpaid(ctx, employeeID, p)
	if err != nil {
		return nil, fmt.Errorf("load unpaid leave: %w", err)
	}
	for _, req := range unpaid {
		if overlap, ok := req.Period().Intersect(p); ok {
			sum.UnpaidLeaveDays += cal.WorkingDays(overlap)
		}
	}

	sum.WorkingDaysPaid = sum.WorkingDaysInCycle - sum.UnpaidLeaveDays
	if sum.WorkingDaysPaid < 0 {
		sum.WorkingDaysPaid = 0
	}
	sum.BaseHourly = contract.BaseSalary.DivRound(decimal.NewFromInt(int64(sum.WorkingDaysInCycle*HoursPerDay)), 2)
	return sum, nil
}
