/*
Package payroll computes payslips from attendance, approved leave and the
employee's active contract.

PIPELINE:
  1. Contract:  the contract active at the cycle midpoint gives the base salary
  2. Summary:   working days, unpaid leave, late/early minutes and OT
                minutes bucketed by weekday / weekend / holiday
  3. Payslip:   six canonical line items, gross, deductions and net

  Calculation is idempotent per (cycle, employee): a rerun overwrites the
  existing payslip and keeps its id.

ROUNDING:
  All money uses decimal.Decimal with half-up rounding.
    baseHourly  = baseSalary / (workingDaysInCycle * 8)         2 places
    BASE_SALARY = baseSalary * workingDaysPaid / workingDaysInCycle  0 places
    OT_*        = round(minutes/60, 2) * baseHourly * rate      2 places

SEE ALSO:
  - contract.go: Versioned contracts and active lookup
  - summary.go: Attendance summary aggregator
  - calculator.go: Payslip line items
  - cycle.go: Payroll cycles and their lifecycle
*/
package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// CONTRACT
// =============================================================================

type ContractStatus string

const (
	ContractActive  ContractStatus = "ACTIVE"
	ContractExpired ContractStatus = "EXPIRED"
)

func ParseContractStatus(s string) (ContractStatus, error) {
	switch v := ContractStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return ContractActive, nil
	case ContractActive, ContractExpired:
		return v, nil
	default:
		return "", fmt.Errorf("unknown contract status %q: %w", s, generic.ErrInvalidInput)
	}
}

// Contract is one version of an employee's employment terms.
// A zero EndDate means open-ended.
type Contract struct {
	ID         string             `json:"id"`
	EmployeeID generic.EmployeeID `json:"employeeId"`
	Type       string             `json:"type"`
	StartDate  generic.TimePoint  `json:"startDate"`
	EndDate    generic.TimePoint  `json:"endDate"`
	BaseSalary decimal.Decimal    `json:"baseSalary"`
	Status     ContractStatus     `json:"status"`
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// CoversDay reports whether the contract is ACTIVE on day.
func (c Contract) CoversDay(day generic.TimePoint) bool {
	if c.Status != ContractActive || c.StartDate.After(day) {
		return false
	}
	return c.EndDate.IsZero() || c.EndDate.AfterOrEqual(day)
}

// =============================================================================
// COMPONENT CATALOG
// =============================================================================

type ComponentKind string

const (
	KindEarning   ComponentKind = "EARNING"
	KindDeduction ComponentKind = "DEDUCTION"
)

type CalcType string

const (
	CalcFixed   CalcType = "FIXED"
	CalcFormula CalcType = "FORMULA"
)

// Component is a catalog entry. Expr is descriptive only; the calculator
// does not evaluate it.
type Component struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Kind     ComponentKind `json:"kind"`
	CalcType CalcType      `json:"calcType"`
	Expr     string        `json:"expr,omitempty"`
	Priority int           `json:"priority"`
	Active   bool          `json:"active"`
}

// =============================================================================
// CYCLE
// =============================================================================

type CycleStatus string

const (
	CycleDraft  CycleStatus = "DRAFT"
	CycleLocked CycleStatus = "LOCKED"
	CyclePaid   CycleStatus = "PAID"
)

var cycleRank = map[CycleStatus]int{CycleDraft: 0, CycleLocked: 1, CyclePaid: 2}

func ParseCycleStatus(s string) (CycleStatus, error) {
	v := CycleStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := cycleRank[v]; !ok {
		return "", fmt.Errorf("unknown cycle status %q: %w", s, generic.ErrInvalidInput)
	}
	return v, nil
}

// Cycle is a payroll period.
type Cycle struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	StartDate generic.TimePoint `json:"startDate"`
	EndDate   generic.TimePoint `json:"endDate"`
	Currency  string            `json:"currency"`
	Status    CycleStatus       `json:"status"`
	Notes     string            `json:"notes,omitempty"`
}

func (c Cycle) Period() generic.Period {
	return generic.Period{Start: c.StartDate, End: c.EndDate}
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates one employee's attendance over a period. It is derived
// and never stored on its own.
type Summary struct {
	EmployeeID         generic.EmployeeID `json:"employeeId"`
	Period             generic.Period     `json:"period"`
	ContractID         string             `json:"contractId"`
	WorkingDaysPaid    int                `json:"workingDaysPaid"`
	WorkingDaysInCycle int                `json:"workingDaysInCycle"`
	UnpaidLeaveDays    int                `json:"unpaidLeaveDays"`
	LateMinutes        int                `json:"lateMinutes"`
	EarlyLeaveMinutes  int                `json:"earlyLeaveMinutes"`
	OTMinutesWeekday   int                `json:"otMinutesWeekday"`
	OTMinutesWeekend   int                `json:"otMinutesWeekend"`
	OTMinutesHoliday   int                `json:"otMinutesHoliday"`
	BaseSalary         decimal.Decimal    `json:"baseSalary"`
	BaseHourly         decimal.Decimal    `json:"baseHourly"`
}

// =============================================================================
// PAYSLIP
// =============================================================================

const PayslipCalculated = "CALCULATED"

type Item struct {
	ComponentID string          `json:"componentId"`
	Label       string          `json:"label"`
	Kind        ComponentKind   `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
}

// Payslip is unique per (CycleID, EmployeeID).
type Payslip struct {
	ID          string             `json:"id"`
	CycleID     string             `json:"cycleId"`
	EmployeeID  generic.EmployeeID `json:"employeeId"`
	Currency    string             `json:"currency"`
	Summary     Summary            `json:"summary"`
	Items       []Item             `json:"items"`
	Gross       decimal.Decimal    `json:"gross"`
	Deductions  decimal.Decimal    `json:"deductions"`
	Net         decimal.Decimal    `json:"net"`
	Status      string             `json:"status"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists payroll data. Get methods return (nil, nil) when missing.
type Store interface {
	generic.Transactor

	GetContract(ctx context.Context, id string) (*Contract, error)
	SaveContract(ctx context.Context, c Contract) error
	// ListContracts returns one employee's contracts, highest version first.
	ListContracts(ctx context.Context, employeeID generic.EmployeeID) ([]Contract, error)

	// ListComponents returns the catalog ordered by priority.
	ListComponents(ctx context.Context) ([]Component, error)
	SaveComponent(ctx context.Context, c Component) error

	GetCycle(ctx context.Context, id string) (*Cycle, error)
	SaveCycle(ctx context.Context, c Cycle) error
	// ListCycles returns cycles, most recent start first.
	ListCycles(ctx context.Context) ([]Cycle, error)

	GetPayslip(ctx context.Context, id string) (*Payslip, error)
	GetPayslipFor(ctx context.Context, cycleID string, employeeID generic.EmployeeID) (*Payslip, error)
	SavePayslip(ctx context.Context, p Payslip) error
	// ListPayslips returns a cycle's payslips ordered by employee.
	ListPayslips(ctx context.Context, cycleID string) ([]Payslip, error)
}
