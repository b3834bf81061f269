package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// DefaultEntitlement is the annual allowance of a lazily created quota.
var DefaultEntitlement = decimal.NewFromInt(12)

// LeaveMarker writes LEAVE onto attendance for an approved range. Approve
// takes the day locks before its transaction opens, so a transaction never
// waits on a day held by a writer that is itself waiting for the store.
type LeaveMarker interface {
	LockDays(employeeID generic.EmployeeID, p generic.Period) (unlock func())
	MarkLeaveLocked(ctx context.Context, employeeID generic.EmployeeID, p generic.Period, note string) (int, error)
}

// Service implements the leave use cases.
type Service struct {
	Store      Store
	Employees  generic.EmployeeDirectory
	Holidays   generic.HolidaySource
	Attendance LeaveMarker
	Ledger     *Ledger
	Logger     *slog.Logger
	Now        func() time.Time

	DefaultEntitlement decimal.Decimal

	requests *generic.KeyedLocker
	quotas   *generic.KeyedLocker
}

func NewService(store Store, employees generic.EmployeeDirectory, holidays generic.HolidaySource, marker LeaveMarker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:              store,
		Employees:          employees,
		Holidays:           holidays,
		Attendance:         marker,
		Ledger:             NewLedger(store),
		Logger:             logger,
		Now:                time.Now,
		DefaultEntitlement: DefaultEntitlement,
		requests:           generic.NewKeyedLocker(),
		quotas:             generic.NewKeyedLocker(),
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	EmployeeID   generic.EmployeeID
	TypeCode     string
	StartDate    generic.TimePoint
	EndDate      generic.TimePoint
	StartSession string
	EndSession   string
	Reason       string
	CreatedBy    string
}

// Create validates in and stores a PENDING request. Days are always
// computed here; callers cannot supply them.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	emp, err := s.Employees.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrUnknownEmployee, in.EmployeeID)
	}
	lt, err := s.Store.GetLeaveTypeByCode(ctx, in.TypeCode)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrUnknownLeaveType, in.TypeCode)
	}
	p, err := generic.NewPeriod(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	startSession, err := ParseSession(in.StartSession)
	if err != nil {
		return nil, err
	}
	endSession, err := ParseSession(in.EndSession)
	if err != nil {
		return nil, err
	}

	cal, err := generic.LoadCalendar(ctx, s.Holidays, p)
	if err != nil {
		return nil, err
	}
	now := s.now()
	req := Request{
		ID:           generic.NewID(),
		EmployeeID:   emp.ID,
		TypeCode:     lt.Code,
		StartDate:    p.Start,
		StartSession: startSession,
		EndDate:      p.End,
		EndSession:   endSession,
		Days:         NewCalculator(cal).Days(p.Start, p.End, startSession, endSession),
		Status:       StatusPending,
		Reason:       in.Reason,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save leave request: %w", err)
	}
	s.Logger.Info("leave request created",
		"request_id", req.ID,
		"employee_id", string(req.EmployeeID),
		"type", req.TypeCode,
		"days", req.Days.String())
	return &req, nil
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve moves a PENDING request to APPROVED. For deducting types the
// year quota's taken grows by the request's days. Every working day of the
// range is marked LEAVE in attendance. All writes share one transaction.
func (s *Service) Approve(ctx context.Context, id, approver string) (*Request, error) {
	peek, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	unlockReq := s.requests.Lock(id)
	defer unlockReq()
	unlockQuota := s.quotas.Lock(quotaKey(peek.EmployeeID, peek.QuotaYear()))
	defer unlockQuota()
	if s.Attendance != nil {
		unlockDays := s.Attendance.LockDays(peek.EmployeeID, peek.Period())
		defer unlockDays()
	}

	var approved Request
	err = s.Store.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.pending(ctx, id, "approve")
		if err != nil {
			return err
		}
		lt, err := s.Store.GetLeaveTypeByCode(ctx, req.TypeCode)
		if err != nil {
			return err
		}
		if lt == nil {
			return fmt.Errorf("%w: %s", generic.ErrUnknownLeaveType, req.TypeCode)
		}

		now := s.now()
		req.Status = StatusApproved
		req.ApproverID = approver
		req.DecidedAt = &now
		req.UpdatedAt = now

		if lt.DeductQuota {
			if err := s.deduct(ctx, *req, approver); err != nil {
				return err
			}
		}
		if s.Attendance != nil {
			if _, err := s.Attendance.MarkLeaveLocked(ctx, req.EmployeeID, req.Period(), "Leave "+req.TypeCode); err != nil {
				return fmt.Errorf("mark attendance: %w", err)
			}
		}
		if err := s.Store.SaveRequest(ctx, *req); err != nil {
			return fmt.Errorf("save leave request: %w", err)
		}
		approved = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("leave request approved",
		"request_id", approved.ID,
		"employee_id", string(approved.EmployeeID),
		"approver", approver,
		"days", approved.Days.String())
	return &approved, nil
}

// Reject moves a PENDING request to REJECTED. Quota and attendance are
// not touched.
func (s *Service) Reject(ctx context.Context, id, approver, note string) (*Request, error) {
	unlock := s.requests.Lock(id)
	defer unlock()

	var rejected Request
	err := s.Store.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.pending(ctx, id, "reject")
		if err != nil {
			return err
		}
		now := s.now()
		req.Status = StatusRejected
		req.ApproverID = approver
		req.Note = note
		req.DecidedAt = &now
		req.UpdatedAt = now
		if err := s.Store.SaveRequest(ctx, *req); err != nil {
			return fmt.Errorf("save leave request: %w", err)
		}
		rejected = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("leave request rejected",
		"request_id", rejected.ID,
		"employee_id", string(rejected.EmployeeID),
		"approver", approver)
	return &rejected, nil
}

// pending loads id and requires it to be PENDING.
func (s *Service) pending(ctx context.Context, id, action string) (*Request, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, generic.NotFound("leave request", id)
	}
	if req.Status != StatusPending {
		return nil, &generic.InvalidStateError{
			Entity:  "leave request",
			ID:      id,
			Current: string(req.Status),
			Action:  action,
		}
	}
	return req, nil
}

// deduct charges req to its year quota. The caller holds the quota lock.
func (s *Service) deduct(ctx context.Context, req Request, actor string) error {
	year := req.QuotaYear()
	q, err := s.quota(ctx, req.EmployeeID, year)
	if err != nil {
		return err
	}
	err = s.Ledger.Append(ctx, QuotaEntry{
		EmployeeID:     req.EmployeeID,
		Year:           year,
		Kind:           EntryApproval,
		Delta:          req.Days,
		RequestID:      req.ID,
		IdempotencyKey: approvalKey(req.ID),
		Actor:          actor,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return fmt.Errorf("append quota entry: %w", err)
	}
	q.Taken = q.Taken.Add(req.Days)
	q.Recompute()
	q.UpdatedAt = s.now()
	if err := s.Store.SaveQuota(ctx, *q); err != nil {
		return fmt.Errorf("save quota: %w", err)
	}
	return nil
}

// =============================================================================
// QUOTA
// =============================================================================

// QuotaOf returns the employee's year quota, creating it on first access.
func (s *Service) QuotaOf(ctx context.Context, employeeID generic.EmployeeID, year int) (*Quota, error) {
	if year <= 0 {
		return nil, fmt.Errorf("invalid year %d: %w", year, generic.ErrInvalidInput)
	}
	unlock := s.quotas.Lock(quotaKey(employeeID, year))
	defer unlock()
	return s.quota(ctx, employeeID, year)
}

func (s *Service) quota(ctx context.Context, employeeID generic.EmployeeID, year int) (*Quota, error) {
	q, err := s.Store.GetQuota(ctx, employeeID, year)
	if err != nil {
		return nil, err
	}
	if q != nil {
		return q, nil
	}
	q = &Quota{
		EmployeeID:  employeeID,
		Year:        year,
		Entitlement: s.DefaultEntitlement,
		CarriedOver: decimal.Zero,
		Taken:       decimal.Zero,
		UpdatedAt:   s.now(),
	}
	q.Recompute()
	if err := s.Store.SaveQuota(ctx, *q); err != nil {
		return nil, fmt.Errorf("create quota: %w", err)
	}
	return q, nil
}

// QuotaHistory lists the ledger entries of one quota.
func (s *Service) QuotaHistory(ctx context.Context, employeeID generic.EmployeeID, year int) ([]QuotaEntry, error) {
	return s.Ledger.Entries(ctx, employeeID, year)
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, generic.NotFound("leave request", id)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, filter RequestFilter) ([]Request, error) {
	return s.Store.ListRequests(ctx, filter)
}

// ApprovedUnpaid returns the employee's APPROVED requests of unpaid types
// that overlap p.
func (s *Service) ApprovedUnpaid(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) ([]Request, error) {
	types, err := s.Store.ListLeaveTypes(ctx)
	if err != nil {
		return nil, err
	}
	unpaid := make(map[string]bool)
	for _, t := range types {
		if t.IsUnpaid() {
			unpaid[strings.ToUpper(t.Code)] = true
		}
	}
	reqs, err := s.Store.ListRequests(ctx, RequestFilter{
		EmployeeID:  employeeID,
		Status:      StatusApproved,
		Overlapping: &p,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if unpaid[strings.ToUpper(r.TypeCode)] {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Service) Types(ctx context.Context) ([]LeaveType, error) {
	return s.Store.ListLeaveTypes(ctx)
}

// CreateType stores a new type. Codes are unique ignoring case.
func (s *Service) CreateType(ctx context.Context, t LeaveType) (*LeaveType, error) {
	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return nil, fmt.Errorf("leave type code is required: %w", generic.ErrInvalidInput)
	}
	existing, err := s.Store.GetLeaveTypeByCode(ctx, t.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("leave type %s already exists: %w", t.Code, generic.ErrConflict)
	}
	t.ID = generic.NewID()
	if t.Name == "" {
		t.Name = t.Code
	}
	t.PaidSet = true
	if err := s.Store.SaveLeaveType(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TypeUpdate changes selected fields of a leave type.
type TypeUpdate struct {
	Code        *string
	Name        *string
	DeductQuota *bool
	Paid        *bool
}

func (s *Service) UpdateType(ctx context.Context, id string, u TypeUpdate) (*LeaveType, error) {
	t, err := s.Store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, generic.NotFound("leave type", id)
	}
	if u.Code != nil {
		code := strings.TrimSpace(*u.Code)
		if code == "" {
			return nil, fmt.Errorf("leave type code is required: %w", generic.ErrInvalidInput)
		}
		if !strings.EqualFold(code, t.Code) {
			if err := s.ensureTypeUnused(ctx, t.Code); err != nil {
				return nil, err
			}
		}
		t.Code = code
	}
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.DeductQuota != nil {
		t.DeductQuota = *u.DeductQuota
	}
	if u.Paid != nil {
		t.Paid = *u.Paid
		t.PaidSet = true
	}
	if err := s.Store.SaveLeaveType(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteType removes a type that no request refers to.
func (s *Service) DeleteType(ctx context.Context, id string) error {
	t, err := s.Store.GetLeaveType(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return generic.NotFound("leave type", id)
	}
	if err := s.ensureTypeUnused(ctx, t.Code); err != nil {
		return err
	}
	err = s.Store.DeleteLeaveType(ctx, id)
	if errors.Is(err, generic.ErrNotFound) {
		return generic.NotFound("leave type", id)
	}
	return err
}

// ensureTypeUnused fails with ErrConflict while requests carry code. Requests
// keep the code they were created with, so renaming or removing it would
// detach them from their type.
func (s *Service) ensureTypeUnused(ctx context.Context, code string) error {
	reqs, err := s.Store.ListRequests(ctx, RequestFilter{TypeCode: code})
	if err != nil {
		return err
	}
	if len(reqs) > 0 {
		return fmt.Errorf("leave type %s is used by %d requests: %w", code, len(reqs), generic.ErrConflict)
	}
	return nil
}

// SeedTypes inserts DefaultTypes that are not present yet, matched by code.
func (s *Service) SeedTypes(ctx context.Context) error {
	for _, t := range DefaultTypes() {
		existing, err := s.Store.GetLeaveTypeByCode(ctx, t.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		t.ID = generic.NewID()
		if err := s.Store.SaveLeaveType(ctx, t); err != nil {
			return fmt.Errorf("seed leave type %s: %w", t.Code, err)
		}
	}
	return nil
}
