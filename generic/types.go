/*
Package generic provides the kernel shared by the attendance, leave and
payroll packages.

PURPOSE:
  This package contains the domain-agnostic building blocks: calendar days
  and periods, the holiday calendar classifier, the employee directory
  contract, transactional store support and identifiers.
  It has no knowledge of attendance statuses, leave sessions or payslips.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee / EmployeeDirectory: who the engine computes for
  - Transactor: run a unit of work atomically against any backend
  - NewID: opaque identifiers for stored records

DESIGN PRINCIPLES:
  1. Precision: money and fractional days use decimal.Decimal, never float64
  2. Determinism: every rule is a pure function of its inputs and a Calendar
  3. Explicit transactions: the unit of work travels in the context

SEE ALSO:
  - time.go: TimePoint, ClockTime, Calendar
  - period.go: Period
  - locks.go: Keyed single-writer locks
*/
package generic

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeID string

// Employee is the minimal employee record the engine needs.
type Employee struct {
	ID         EmployeeID `json:"id"`
	Code       string     `json:"code"`
	FullName   string     `json:"fullName"`
	Department string     `json:"department,omitempty"`
	Email      string     `json:"email,omitempty"`
}

// EmployeeDirectory looks employees up. Get methods return (nil, nil) when missing.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	// GetEmployeeByCode matches the code case-insensitively.
	GetEmployeeByCode(ctx context.Context, code string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// DepartmentFilter returns the employees in department, matched ignoring case.
// An empty department matches every employee.
func DepartmentFilter(ctx context.Context, dir EmployeeDirectory, department string) (map[EmployeeID]Employee, error) {
	all, err := dir.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[EmployeeID]Employee, len(all))
	for _, e := range all {
		if department == "" || strings.EqualFold(e.Department, department) {
			out[e.ID] = e
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Transactor runs fn as one atomic unit of work.
//
// The context passed to fn carries the transaction; store methods called
// with that context participate in it. If fn returns an error, every write
// made through the context is rolled back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// =============================================================================
// NUMBERS AND IDENTIFIERS
// =============================================================================

// NewID returns a random identifier.
func NewID() string {
	return uuid.NewString()
}
