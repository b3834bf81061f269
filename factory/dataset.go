package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
)

/*
dataset.go - JSON datasets

PURPOSE:
  Describes a whole working set (employees, holidays, schedule, contracts,
  punches, leave and cycles) as JSON and loads it through the services, so
  every rule still applies. Used by the demo scenarios and `hrctl seed`.

JSON SCHEMA:
  {
    "employees": [{"id": "E001", "code": "E001", "full_name": "An Nguyen", "department": "ENG"}],
    "holidays":  [{"date": "2025-11-20", "name": "Company Day"}],
    "schedule":  {"start": "09:00", "end": "18:00", "ot_after_minutes": 30},
    "contracts": [{"employee_id": "E001", "start_date": "2025-01-01", "base_salary": "1000000"}],
    "punches":   [{"employee_id": "E001", "date": "2025-11-03", "check_in": "09:10", "check_out": "19:05"}],
    "leave":     [{"employee_id": "E001", "type": "UL", "start_date": "2025-11-10", "end_date": "2025-11-11", "decision": "approve"}],
    "cycles":    [{"start_date": "2025-11-01", "end_date": "2025-11-30"}]
  }
*/

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type DatasetJSON struct {
	Employees []EmployeeJSON `json:"employees,omitempty"`
	Holidays  []HolidayJSON  `json:"holidays,omitempty"`
	Schedule  *ScheduleJSON  `json:"schedule,omitempty"`
	Contracts []ContractJSON `json:"contracts,omitempty"`
	Punches   []PunchJSON    `json:"punches,omitempty"`
	Leave     []LeaveJSON    `json:"leave,omitempty"`
	Cycles    []CycleJSON    `json:"cycles,omitempty"`
}

type EmployeeJSON struct {
	ID         string `json:"id,omitempty"`
	Code       string `json:"code"`
	FullName   string `json:"full_name"`
	Department string `json:"department,omitempty"`
	Email      string `json:"email,omitempty"`
}

type HolidayJSON struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

type ScheduleJSON struct {
	Start             string   `json:"start,omitempty"`
	End               string   `json:"end,omitempty"`
	BreakMinutes      *int     `json:"break_minutes,omitempty"`
	GraceLateMinutes  *int     `json:"grace_late_minutes,omitempty"`
	GraceEarlyMinutes *int     `json:"grace_early_minutes,omitempty"`
	OTAfterMinutes    *int     `json:"ot_after_minutes,omitempty"`
	OTRoundToMinutes  *int     `json:"ot_round_to_minutes,omitempty"`
	WorkingDays       []string `json:"working_days,omitempty"`
}

type ContractJSON struct {
	EmployeeID string `json:"employee_id"`
	Type       string `json:"type,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date,omitempty"`
	BaseSalary string `json:"base_salary"`
	Status     string `json:"status,omitempty"`
}

type PunchJSON struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	CheckIn    string `json:"check_in,omitempty"`
	CheckOut   string `json:"check_out,omitempty"`
	Source     string `json:"source,omitempty"`
}

type LeaveJSON struct {
	EmployeeID   string `json:"employee_id"`
	Type         string `json:"type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	StartSession string `json:"start_session,omitempty"`
	EndSession   string `json:"end_session,omitempty"`
	Reason       string `json:"reason,omitempty"`
	// Decision is "approve", "reject" or empty to leave the request pending.
	Decision string `json:"decision,omitempty"`
	Approver string `json:"approver,omitempty"`
}

type CycleJSON struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Currency  string `json:"currency,omitempty"`
}

// ParseDataset parses a JSON dataset.
func ParseDataset(jsonStr string) (*DatasetJSON, error) {
	var ds DatasetJSON
	if err := json.Unmarshal([]byte(jsonStr), &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	return &ds, nil
}

// =============================================================================
// LOADING
// =============================================================================

// LoadDataset stores ds through the services, in dependency order.
func (s *Services) LoadDataset(ctx context.Context, ds DatasetJSON) error {
	for _, ej := range ds.Employees {
		if _, err := s.Directory.CreateEmployee(ctx, generic.Employee{
			ID:         generic.EmployeeID(ej.ID),
			Code:       ej.Code,
			FullName:   ej.FullName,
			Department: ej.Department,
			Email:      ej.Email,
		}); err != nil {
			return fmt.Errorf("employee %s: %w", ej.Code, err)
		}
	}
	for _, hj := range ds.Holidays {
		day, err := generic.ParseDate(hj.Date)
		if err != nil {
			return fmt.Errorf("holiday: %w", err)
		}
		if _, err := s.Directory.CreateHoliday(ctx, generic.Holiday{Date: day, Name: hj.Name, Region: hj.Region}); err != nil {
			return fmt.Errorf("holiday %s: %w", hj.Date, err)
		}
	}
	if ds.Schedule != nil {
		u, err := ds.Schedule.toUpdate()
		if err != nil {
			return err
		}
		if _, err := s.Attendance.UpdateSchedule(ctx, u); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	for _, cj := range ds.Contracts {
		in, err := cj.toInput()
		if err != nil {
			return err
		}
		if _, err := s.Contracts.Create(ctx, generic.EmployeeID(cj.EmployeeID), in); err != nil {
			return fmt.Errorf("contract for %s: %w", cj.EmployeeID, err)
		}
	}
	for _, pj := range ds.Punches {
		p, err := pj.toPunch()
		if err != nil {
			return err
		}
		if _, err := s.Attendance.RecordPunch(ctx, p); err != nil {
			return fmt.Errorf("punch %s %s: %w", pj.EmployeeID, pj.Date, err)
		}
	}
	for _, lj := range ds.Leave {
		if err := s.loadLeave(ctx, lj); err != nil {
			return fmt.Errorf("leave for %s: %w", lj.EmployeeID, err)
		}
	}
	for _, cj := range ds.Cycles {
		start, err := generic.ParseDate(cj.StartDate)
		if err != nil {
			return err
		}
		end, err := generic.ParseDate(cj.EndDate)
		if err != nil {
			return err
		}
		if _, err := s.Payroll.CreateCycle(ctx, payroll.CycleInput{
			ID: cj.ID, Name: cj.Name, StartDate: start, EndDate: end, Currency: cj.Currency,
		}); err != nil {
			return fmt.Errorf("cycle %s: %w", cj.StartDate, err)
		}
	}
	return nil
}

func (s *Services) loadLeave(ctx context.Context, lj LeaveJSON) error {
	start, err := generic.ParseDate(lj.StartDate)
	if err != nil {
		return err
	}
	end, err := generic.ParseDate(lj.EndDate)
	if err != nil {
		return err
	}
	approver := lj.Approver
	if approver == "" {
		approver = "admin"
	}
	req, err := s.Leave.Create(ctx, leave.CreateInput{
		EmployeeID:   generic.EmployeeID(lj.EmployeeID),
		TypeCode:     lj.Type,
		StartDate:    start,
		EndDate:      end,
		StartSession: lj.StartSession,
		EndSession:   lj.EndSession,
		Reason:       lj.Reason,
		CreatedBy:    lj.EmployeeID,
	})
	if err != nil {
		return err
	}
	switch lj.Decision {
	case "approve":
		_, err = s.Leave.Approve(ctx, req.ID, approver)
	case "reject":
		_, err = s.Leave.Reject(ctx, req.ID, approver, "")
	case "":
	default:
		err = fmt.Errorf("unknown leave decision %q: %w", lj.Decision, generic.ErrInvalidInput)
	}
	return err
}

func (sj ScheduleJSON) toUpdate() (attendance.ScheduleUpdate, error) {
	u := attendance.ScheduleUpdate{
		BreakMinutes:      sj.BreakMinutes,
		GraceLateMinutes:  sj.GraceLateMinutes,
		GraceEarlyMinutes: sj.GraceEarlyMinutes,
		OTAfterMinutes:    sj.OTAfterMinutes,
		OTRoundToMinutes:  sj.OTRoundToMinutes,
	}
	var err error
	if u.StartTime, err = generic.ParseClockPtr(sj.Start); err != nil {
		return u, err
	}
	if u.EndTime, err = generic.ParseClockPtr(sj.End); err != nil {
		return u, err
	}
	if len(sj.WorkingDays) > 0 {
		if u.WorkingDays, err = attendance.ParseWeekdays(sj.WorkingDays); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (cj ContractJSON) toInput() (payroll.ContractInput, error) {
	var in payroll.ContractInput
	start, err := generic.ParseDate(cj.StartDate)
	if err != nil {
		return in, err
	}
	in.StartDate = start
	if cj.EndDate != "" {
		if in.EndDate, err = generic.ParseDate(cj.EndDate); err != nil {
			return in, err
		}
	}
	if in.BaseSalary, err = decimal.NewFromString(cj.BaseSalary); err != nil {
		return in, fmt.Errorf("invalid base salary %q: %w", cj.BaseSalary, generic.ErrInvalidInput)
	}
	if in.Status, err = payroll.ParseContractStatus(cj.Status); err != nil {
		return in, err
	}
	in.Type = cj.Type
	if in.Type == "" {
		in.Type = "FULL_TIME"
	}
	return in, nil
}

func (pj PunchJSON) toPunch() (attendance.Punch, error) {
	var p attendance.Punch
	day, err := generic.ParseDate(pj.Date)
	if err != nil {
		return p, err
	}
	p.EmployeeID = generic.EmployeeID(pj.EmployeeID)
	p.Date = day
	p.Source = pj.Source
	if p.CheckIn, err = generic.ParseClockPtr(pj.CheckIn); err != nil {
		return p, err
	}
	if p.CheckOut, err = generic.ParseClockPtr(pj.CheckOut); err != nil {
		return p, err
	}
	return p, nil
}
