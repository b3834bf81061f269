package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, t leave.LeaveType) error {
	var paid *bool
	if t.PaidSet {
		paid = &t.Paid
	}
	query := `
		INSERT INTO leave_types (id, code, name, deduct_quota, paid)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			deduct_quota = EXCLUDED.deduct_quota,
			paid = EXCLUDED.paid
	`
	_, err := s.querier(ctx).Exec(ctx, query, t.ID, t.Code, t.Name, t.DeductQuota, paid)
	if isUniqueViolation(err) {
		return fmt.Errorf("leave type code %s: %w", t.Code, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save leave type: %w", err)
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (*leave.LeaveType, error) {
	ts, err := s.queryLeaveTypes(ctx, `SELECT id, code, name, deduct_quota, paid FROM leave_types WHERE id = $1`, id)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return &ts[0], nil
}

func (s *Store) GetLeaveTypeByCode(ctx context.Context, code string) (*leave.LeaveType, error) {
	ts, err := s.queryLeaveTypes(ctx,
		`SELECT id, code, name, deduct_quota, paid FROM leave_types WHERE lower(code) = lower($1)`, code)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return &ts[0], nil
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	return s.queryLeaveTypes(ctx, `SELECT id, code, name, deduct_quota, paid FROM leave_types ORDER BY code`)
}

func (s *Store) DeleteLeaveType(ctx context.Context, id string) error {
	tag, err := s.querier(ctx).Exec(ctx, `DELETE FROM leave_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete leave type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *Store) queryLeaveTypes(ctx context.Context, query string, args ...any) ([]leave.LeaveType, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.LeaveType{}
	for rows.Next() {
		var t leave.LeaveType
		var paid *bool
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.DeductQuota, &paid); err != nil {
			return nil, err
		}
		if paid != nil {
			t.Paid, t.PaidSet = *paid, true
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, type_code, start_date, start_session, end_date, end_session,
	days::text, status, reason, created_by, approver_id, note, created_at, updated_at, decided_at`

func (s *Store) SaveRequest(ctx context.Context, r leave.Request) error {
	query := `
		INSERT INTO leave_requests (id, employee_id, type_code, start_date, start_session, end_date, end_session,
			days, status, reason, created_by, approver_id, note, created_at, updated_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approver_id = EXCLUDED.approver_id,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at,
			decided_at = EXCLUDED.decided_at
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		r.ID,
		string(r.EmployeeID),
		r.TypeCode,
		r.StartDate.Time,
		string(r.StartSession),
		r.EndDate.Time,
		string(r.EndSession),
		r.Days.String(),
		string(r.Status),
		r.Reason,
		r.CreatedBy,
		r.ApproverID,
		r.Note,
		r.CreatedAt,
		r.UpdatedAt,
		r.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("save leave request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	rs, err := s.queryRequests(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, id)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(string(f.EmployeeID)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.TypeCode != "" {
		where = append(where, "lower(type_code) = lower("+arg(f.TypeCode)+")")
	}
	if f.StartWithin != nil {
		where = append(where, "start_date BETWEEN "+arg(f.StartWithin.Start.Time)+" AND "+arg(f.StartWithin.End.Time))
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= "+arg(f.Overlapping.End.Time), "end_date >= "+arg(f.Overlapping.Start.Time))
	}
	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_date, id`
	return s.queryRequests(ctx, query, args...)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.Request{}
	for rows.Next() {
		var (
			r                  leave.Request
			employeeID         string
			startSess, endSess string
			status             string
			start, end         time.Time
		)
		if err := rows.Scan(&r.ID, &employeeID, &r.TypeCode, &start, &startSess, &end, &endSess,
			&r.Days, &status, &r.Reason, &r.CreatedBy, &r.ApproverID, &r.Note,
			&r.CreatedAt, &r.UpdatedAt, &r.DecidedAt); err != nil {
			return nil, err
		}
		r.EmployeeID = generic.EmployeeID(employeeID)
		r.StartDate, r.EndDate = generic.DateOf(start), generic.DateOf(end)
		r.StartSession, r.EndSession = leave.Session(startSess), leave.Session(endSess)
		r.Status = leave.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// QUOTAS
// =============================================================================

func (s *Store) GetQuota(ctx context.Context, employeeID generic.EmployeeID, year int) (*leave.Quota, error) {
	query := `
		SELECT entitlement::text, carried_over::text, taken::text, remaining::text, updated_at
		FROM leave_quotas WHERE employee_id = $1 AND year = $2
	`
	qt := leave.Quota{EmployeeID: employeeID, Year: year}
	err := s.querier(ctx).QueryRow(ctx, query, string(employeeID), year).Scan(
		&qt.Entitlement, &qt.CarriedOver, &qt.Taken, &qt.Remaining, &qt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &qt, nil
}

func (s *Store) SaveQuota(ctx context.Context, qt leave.Quota) error {
	query := `
		INSERT INTO leave_quotas (employee_id, year, entitlement, carried_over, taken, remaining, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id, year) DO UPDATE SET
			entitlement = EXCLUDED.entitlement,
			carried_over = EXCLUDED.carried_over,
			taken = EXCLUDED.taken,
			remaining = EXCLUDED.remaining,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		string(qt.EmployeeID), qt.Year, qt.Entitlement.String(), qt.CarriedOver.String(),
		qt.Taken.String(), qt.Remaining.String(), qt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save quota: %w", err)
	}
	return nil
}

// =============================================================================
// QUOTA LEDGER (append-only)
// =============================================================================

func (s *Store) AppendQuotaEntry(ctx context.Context, e leave.QuotaEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var key *string
	if e.IdempotencyKey != "" {
		key = &e.IdempotencyKey
	}
	query := `
		INSERT INTO quota_entries
		(id, employee_id, year, kind, delta, request_id, idempotency_key, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		e.ID, string(e.EmployeeID), e.Year, string(e.Kind), e.Delta.String(), e.RequestID, key, e.Actor, createdAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("quota entry %s: %w", e.IdempotencyKey, generic.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("append quota entry: %w", err)
	}
	return nil
}

func (s *Store) ListQuotaEntries(ctx context.Context, employeeID generic.EmployeeID, year int) ([]leave.QuotaEntry, error) {
	query := `
		SELECT id, kind, delta::text, request_id, COALESCE(idempotency_key, ''), actor, created_at
		FROM quota_entries WHERE employee_id = $1 AND year = $2 ORDER BY seq
	`
	rows, err := s.querier(ctx).Query(ctx, query, string(employeeID), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.QuotaEntry{}
	for rows.Next() {
		e := leave.QuotaEntry{EmployeeID: employeeID, Year: year}
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Delta, &e.RequestID, &e.IdempotencyKey, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = leave.EntryKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
