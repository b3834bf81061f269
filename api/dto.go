/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON bodies the API accepts. Responses reuse the domain types,
  which already carry JSON tags; only requests need their own shape.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types that are not domain types
  - *Response: Complex response wrappers

VALIDATION:
  Shape checks (required fields, date and time layouts, enumerations) are
  struct tags checked by go-playground/validator before a handler touches a
  service. Rules that need data (unknown employee, overlapping contract,
  quota) stay in the services.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/dataset.go: JSON datasets loaded by scenarios
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Code       string `json:"code" validate:"required,max=32"`
	FullName   string `json:"fullName" validate:"required"`
	Department string `json:"department"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type HolidayRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Name   string `json:"name" validate:"required"`
	Region string `json:"region"`
}

func (r HolidayRequest) toHoliday() (generic.Holiday, error) {
	d, err := generic.ParseDate(r.Date)
	if err != nil {
		return generic.Holiday{}, err
	}
	return generic.Holiday{Date: d, Name: r.Name, Region: r.Region}, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ScheduleRequest replaces the work schedule. Omitted fields take the
// default values.
type ScheduleRequest struct {
	Name              *string  `json:"name"`
	StartTime         *string  `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime           *string  `json:"endTime" validate:"omitempty,datetime=15:04"`
	BreakMinutes      *int     `json:"breakMinutes" validate:"omitempty,min=0"`
	GraceLateMinutes  *int     `json:"graceLateMinutes" validate:"omitempty,min=0"`
	GraceEarlyMinutes *int     `json:"graceEarlyMinutes" validate:"omitempty,min=0"`
	OTAfterMinutes    *int     `json:"otAfterMinutes" validate:"omitempty,min=0"`
	OTRoundToMinutes  *int     `json:"otRoundToMinutes" validate:"omitempty,min=0"`
	WorkingDays       []string `json:"workingDays"`
}

func (r ScheduleRequest) toUpdate() (attendance.ScheduleUpdate, error) {
	u := attendance.ScheduleUpdate{
		Name:              r.Name,
		BreakMinutes:      r.BreakMinutes,
		GraceLateMinutes:  r.GraceLateMinutes,
		GraceEarlyMinutes: r.GraceEarlyMinutes,
		OTAfterMinutes:    r.OTAfterMinutes,
		OTRoundToMinutes:  r.OTRoundToMinutes,
	}
	var err error
	if r.StartTime != nil {
		if u.StartTime, err = generic.ParseClockPtr(*r.StartTime); err != nil {
			return u, err
		}
	}
	if r.EndTime != nil {
		if u.EndTime, err = generic.ParseClockPtr(*r.EndTime); err != nil {
			return u, err
		}
	}
	if len(r.WorkingDays) > 0 {
		if u.WorkingDays, err = attendance.ParseWeekdays(r.WorkingDays); err != nil {
			return u, err
		}
	}
	return u, nil
}

// QuickEditRequest patches one record. An empty checkIn or checkOut clears
// that punch; an absent field is left unchanged.
type QuickEditRequest struct {
	CheckIn  *string `json:"checkIn"`
	CheckOut *string `json:"checkOut"`
	Status   *string `json:"status"`
	Note     *string `json:"note"`
}

func (r QuickEditRequest) toPatch() attendance.Patch {
	return attendance.Patch{CheckIn: r.CheckIn, CheckOut: r.CheckOut, Status: r.Status, Note: r.Note}
}

type RecalcResponse struct {
	Month      string `json:"month"`
	EmployeeID string `json:"employeeId,omitempty"`
	Updated    int    `json:"updated"`
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveTypeRequest struct {
	Code        string `json:"code" validate:"required,max=20"`
	Name        string `json:"name" validate:"required"`
	DeductQuota bool   `json:"deductQuota"`
	// Paid defaults to true when omitted.
	Paid *bool `json:"paid"`
}

func (r LeaveTypeRequest) toLeaveType() leave.LeaveType {
	paid := true
	if r.Paid != nil {
		paid = *r.Paid
	}
	return leave.LeaveType{Code: r.Code, Name: r.Name, DeductQuota: r.DeductQuota, Paid: paid, PaidSet: true}
}

type LeaveTypeUpdateRequest struct {
	Code        *string `json:"code" validate:"omitempty,min=1,max=20"`
	Name        *string `json:"name" validate:"omitempty,min=1"`
	DeductQuota *bool   `json:"deductQuota"`
	Paid        *bool   `json:"paid"`
}

func (r LeaveTypeUpdateRequest) toUpdate() leave.TypeUpdate {
	return leave.TypeUpdate{Code: r.Code, Name: r.Name, DeductQuota: r.DeductQuota, Paid: r.Paid}
}

type CreateLeaveRequest struct {
	EmployeeID   string `json:"employeeId" validate:"required"`
	TypeCode     string `json:"typeCode" validate:"required"`
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
	StartSession string `json:"startSession" validate:"omitempty,oneof=AM PM FULL am pm full"`
	EndSession   string `json:"endSession" validate:"omitempty,oneof=AM PM FULL am pm full"`
	Reason       string `json:"reason"`
}

func (r CreateLeaveRequest) toInput(actor string) (leave.CreateInput, error) {
	start, err := generic.ParseDate(r.StartDate)
	if err != nil {
		return leave.CreateInput{}, err
	}
	end, err := generic.ParseDate(r.EndDate)
	if err != nil {
		return leave.CreateInput{}, err
	}
	return leave.CreateInput{
		EmployeeID:   generic.EmployeeID(r.EmployeeID),
		TypeCode:     r.TypeCode,
		StartDate:    start,
		EndDate:      end,
		StartSession: r.StartSession,
		EndSession:   r.EndSession,
		Reason:       r.Reason,
		CreatedBy:    actor,
	}, nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

type ContractRequest struct {
	Type       string          `json:"type"`
	StartDate  string          `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	BaseSalary decimal.Decimal `json:"baseSalary"`
	Status     string          `json:"status" validate:"omitempty,oneof=ACTIVE EXPIRED"`
}

func (r ContractRequest) toInput() (payroll.ContractInput, error) {
	in := payroll.ContractInput{Type: r.Type, BaseSalary: r.BaseSalary}
	var err error
	if in.StartDate, err = generic.ParseDate(r.StartDate); err != nil {
		return in, err
	}
	if r.EndDate != "" {
		if in.EndDate, err = generic.ParseDate(r.EndDate); err != nil {
			return in, err
		}
	}
	if in.Status, err = payroll.ParseContractStatus(r.Status); err != nil {
		return in, err
	}
	return in, nil
}

// ContractUpdateRequest changes selected fields. An empty endDate makes the
// contract open-ended.
type ContractUpdateRequest struct {
	Type       *string          `json:"type"`
	StartDate  *string          `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate    *string          `json:"endDate"`
	BaseSalary *decimal.Decimal `json:"baseSalary"`
	Status     *string          `json:"status" validate:"omitempty,oneof=ACTIVE EXPIRED"`
}

func (r ContractUpdateRequest) toUpdate() (payroll.ContractUpdate, error) {
	u := payroll.ContractUpdate{Type: r.Type, BaseSalary: r.BaseSalary}
	if r.StartDate != nil {
		d, err := generic.ParseDate(*r.StartDate)
		if err != nil {
			return u, err
		}
		u.StartDate = &d
	}
	if r.EndDate != nil {
		if *r.EndDate == "" {
			u.ClearEndDate = true
		} else {
			d, err := generic.ParseDate(*r.EndDate)
			if err != nil {
				return u, err
			}
			u.EndDate = &d
		}
	}
	if r.Status != nil {
		st, err := payroll.ParseContractStatus(*r.Status)
		if err != nil {
			return u, err
		}
		u.Status = &st
	}
	return u, nil
}

// =============================================================================
// PAYROLL
// =============================================================================

type CreateCycleRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Currency  string `json:"currency" validate:"omitempty,len=3"`
	Notes     string `json:"notes"`
}

func (r CreateCycleRequest) toInput() (payroll.CycleInput, error) {
	start, err := generic.ParseDate(r.StartDate)
	if err != nil {
		return payroll.CycleInput{}, err
	}
	end, err := generic.ParseDate(r.EndDate)
	if err != nil {
		return payroll.CycleInput{}, err
	}
	return payroll.CycleInput{
		ID: r.ID, Name: r.Name, StartDate: start, EndDate: end, Currency: r.Currency, Notes: r.Notes,
	}, nil
}

type CycleStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT LOCKED PAID"`
}

// CalculateResponse lists the payslips produced by one calculation run.
type CalculateResponse struct {
	CycleID  string            `json:"cycleId"`
	Count    int               `json:"count"`
	Payslips []payroll.Payslip `json:"payslips"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// monthParam validates a "YYYY-MM" query value.
func monthParam(v string) (generic.Period, error) {
	if v == "" {
		return generic.Period{}, fmt.Errorf("month is required: %w", generic.ErrInvalidInput)
	}
	return generic.MonthPeriod(v)
}
