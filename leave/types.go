/*
Package leave implements leave requests, their approval workflow and the
per-year leave quota.

PURPOSE:
  An employee requests leave for a date range with half-day session
  markers. The request's day count is computed once, at creation, by the
  Calculator. A manager then approves or rejects it; approval deducts the
  quota (for deducting types) and marks the covered working days as LEAVE
  in attendance.

STATE MACHINE:
  PENDING ──approve──▶ APPROVED (terminal)
     │
     └────reject────▶ REJECTED (terminal)

  Any transition from a terminal state fails with an InvalidStateError.

QUOTA:
  remaining = entitlement + carriedOver - taken

  The quota row is created lazily with the default entitlement. Every
  change to taken is also appended to the quota ledger with an
  idempotency key, so one request can never deduct twice.

SEE ALSO:
  - days.go: Fractional day calculator
  - service.go: Create / Approve / Reject
  - ledger.go: Append-only quota ledger
*/
package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// SESSION
// =============================================================================

// Session marks which part of a day a request starts or ends on.
type Session string

const (
	SessionAM   Session = "AM"
	SessionPM   Session = "PM"
	SessionFull Session = "FULL"
)

var (
	half = decimal.NewFromFloat(0.5)
	one  = decimal.NewFromInt(1)
)

// Weight is the day fraction of s. Unknown sessions count as a full day.
func (s Session) Weight() decimal.Decimal {
	switch s {
	case SessionAM, SessionPM:
		return half
	default:
		return one
	}
}

// ParseSession normalizes s. An empty session means FULL.
func ParseSession(s string) (Session, error) {
	switch v := Session(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return SessionFull, nil
	case SessionAM, SessionPM, SessionFull:
		return v, nil
	default:
		return "", fmt.Errorf("unknown session %q: %w", s, generic.ErrInvalidInput)
	}
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToUpper(strings.TrimSpace(s))); v {
	case StatusPending, StatusApproved, StatusRejected:
		return v, nil
	default:
		return "", fmt.Errorf("unknown leave status %q: %w", s, generic.ErrInvalidInput)
	}
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

// LeaveType is a kind of leave (annual, sick, unpaid...).
type LeaveType struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	DeductQuota bool   `json:"deductQuota"`
	Paid        bool   `json:"paid"`
	// PaidSet is false for rows stored without an explicit paid flag.
	PaidSet bool `json:"-"`
}

// IsUnpaid reports whether days of this type reduce paid working days.
// Without an explicit flag, a code or name containing "unpaid" is unpaid.
func (t LeaveType) IsUnpaid() bool {
	if t.PaidSet {
		return !t.Paid
	}
	return strings.Contains(strings.ToLower(t.Code), "unpaid") ||
		strings.Contains(strings.ToLower(t.Name), "unpaid")
}

// DefaultTypes are seeded on boot.
func DefaultTypes() []LeaveType {
	return []LeaveType{
		{Code: "AL", Name: "Annual Leave", DeductQuota: true, Paid: true, PaidSet: true},
		{Code: "SL", Name: "Sick Leave", DeductQuota: true, Paid: true, PaidSet: true},
		{Code: "UL", Name: "Unpaid Leave", DeductQuota: false, Paid: false, PaidSet: true},
	}
}

// =============================================================================
// REQUEST
// =============================================================================

type Request struct {
	ID           string             `json:"id"`
	EmployeeID   generic.EmployeeID `json:"employeeId"`
	TypeCode     string             `json:"typeCode"`
	StartDate    generic.TimePoint  `json:"startDate"`
	StartSession Session            `json:"startSession"`
	EndDate      generic.TimePoint  `json:"endDate"`
	EndSession   Session            `json:"endSession"`
	// Days is computed at creation and never changes.
	Days       decimal.Decimal `json:"days"`
	Status     Status          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	ApproverID string          `json:"approverId,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DecidedAt  *time.Time      `json:"decidedAt,omitempty"`
}

func (r Request) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// QuotaYear is the year whose quota the request is charged to.
func (r Request) QuotaYear() int { return r.StartDate.Year() }

// RequestFilter narrows ListRequests. Zero fields do not filter.
type RequestFilter struct {
	EmployeeID generic.EmployeeID
	Status     Status
	// TypeCode matches ignoring case.
	TypeCode string
	// StartWithin keeps requests whose start date falls in the period.
	StartWithin *generic.Period
	// Overlapping keeps requests sharing at least one day with the period.
	Overlapping *generic.Period
}

// Matches applies the filter in memory.
func (f RequestFilter) Matches(r Request) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.TypeCode != "" && !strings.EqualFold(r.TypeCode, f.TypeCode) {
		return false
	}
	if f.StartWithin != nil && !f.StartWithin.Contains(r.StartDate) {
		return false
	}
	if f.Overlapping != nil && !f.Overlapping.Overlaps(r.Period()) {
		return false
	}
	return true
}

// =============================================================================
// QUOTA
// =============================================================================

type Quota struct {
	EmployeeID  generic.EmployeeID `json:"employeeId"`
	Year        int                `json:"year"`
	Entitlement decimal.Decimal    `json:"entitlement"`
	CarriedOver decimal.Decimal    `json:"carriedOver"`
	Taken       decimal.Decimal    `json:"taken"`
	Remaining   decimal.Decimal    `json:"remaining"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Recompute derives Remaining. Call after every change to the other amounts.
func (q *Quota) Recompute() {
	q.Remaining = q.Entitlement.Add(q.CarriedOver).Sub(q.Taken)
}

func quotaKey(employeeID generic.EmployeeID, year int) string {
	return fmt.Sprintf("%s|%d", employeeID, year)
}

// =============================================================================
// STORE
// =============================================================================

// Store persists leave data. Get methods return (nil, nil) when missing.
type Store interface {
	generic.Transactor

	GetLeaveType(ctx context.Context, id string) (*LeaveType, error)
	// GetLeaveTypeByCode matches case-insensitively.
	GetLeaveTypeByCode(ctx context.Context, code string) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	// SaveLeaveType upserts by ID. A code used by another type is ErrConflict.
	SaveLeaveType(ctx context.Context, t LeaveType) error
	DeleteLeaveType(ctx context.Context, id string) error

	GetRequest(ctx context.Context, id string) (*Request, error)
	SaveRequest(ctx context.Context, r Request) error
	// ListRequests returns matches ordered by start date, then id.
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	GetQuota(ctx context.Context, employeeID generic.EmployeeID, year int) (*Quota, error)
	SaveQuota(ctx context.Context, q Quota) error

	// AppendQuotaEntry fails with ErrDuplicateEntry when the key exists.
	AppendQuotaEntry(ctx context.Context, e QuotaEntry) error
	ListQuotaEntries(ctx context.Context, employeeID generic.EmployeeID, year int) ([]QuotaEntry, error)
}
