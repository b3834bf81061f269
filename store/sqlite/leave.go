package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, t leave.LeaveType) error {
	var paid sql.NullBool
	if t.PaidSet {
		paid = sql.NullBool{Bool: t.Paid, Valid: true}
	}
	query := `
		INSERT INTO leave_types (id, code, name, deduct_quota, paid)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			deduct_quota = excluded.deduct_quota,
			paid = excluded.paid
	`
	_, err := s.q(ctx).ExecContext(ctx, query, t.ID, t.Code, t.Name, t.DeductQuota, paid)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("leave type code %s: %w", t.Code, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (*leave.LeaveType, error) {
	ts, err := s.queryLeaveTypes(ctx, `SELECT id, code, name, deduct_quota, paid FROM leave_types WHERE id = ?`, id)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return &ts[0], nil
}

func (s *Store) GetLeaveTypeByCode(ctx context.Context, code string) (*leave.LeaveType, error) {
	ts, err := s.queryLeaveTypes(ctx,
		`SELECT id, code, name, deduct_quota, paid FROM leave_types WHERE code = ? COLLATE NOCASE`, code)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return &ts[0], nil
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	return s.queryLeaveTypes(ctx, `SELECT id, code, name, deduct_quota, paid FROM leave_types ORDER BY code`)
}

func (s *Store) DeleteLeaveType(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM leave_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete leave type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *Store) queryLeaveTypes(ctx context.Context, query string, args ...any) ([]leave.LeaveType, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.LeaveType{}
	for rows.Next() {
		var t leave.LeaveType
		var paid sql.NullBool
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.DeductQuota, &paid); err != nil {
			return nil, err
		}
		t.Paid, t.PaidSet = paid.Bool, paid.Valid
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, type_code, start_date, start_session, end_date, end_session,
	days, status, reason, created_by, approver_id, note, created_at, updated_at, decided_at`

func (s *Store) SaveRequest(ctx context.Context, r leave.Request) error {
	var decidedAt sql.NullString
	if r.DecidedAt != nil {
		decidedAt = nullString(formatTime(*r.DecidedAt))
	}
	query := `
		INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			approver_id = excluded.approver_id,
			note = excluded.note,
			updated_at = excluded.updated_at,
			decided_at = excluded.decided_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID,
		r.EmployeeID,
		r.TypeCode,
		r.StartDate.String(),
		r.StartSession,
		r.EndDate.String(),
		r.EndSession,
		r.Days.String(),
		r.Status,
		r.Reason,
		r.CreatedBy,
		r.ApproverID,
		r.Note,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
		decidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	rs, err := s.queryRequests(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.TypeCode != "" {
		where = append(where, "lower(type_code) = lower(?)")
		args = append(args, f.TypeCode)
	}
	if f.StartWithin != nil {
		where = append(where, "start_date >= ?", "start_date <= ?")
		args = append(args, f.StartWithin.Start.String(), f.StartWithin.End.String())
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= ?", "end_date >= ?")
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}
	query := `SELECT ` + requestColumns + ` FROM leave_requests WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY start_date, id`
	return s.queryRequests(ctx, query, args...)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.Request{}
	for rows.Next() {
		var (
			r                    leave.Request
			start, end           string
			createdAt, updatedAt string
			decidedAt            sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.TypeCode, &start, &r.StartSession, &end, &r.EndSession,
			&r.Days, &r.Status, &r.Reason, &r.CreatedBy, &r.ApproverID, &r.Note,
			&createdAt, &updatedAt, &decidedAt); err != nil {
			return nil, err
		}
		if r.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if r.EndDate, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		if decidedAt.Valid {
			t := parseTime(decidedAt.String)
			r.DecidedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// QUOTAS
// =============================================================================

func (s *Store) GetQuota(ctx context.Context, employeeID generic.EmployeeID, year int) (*leave.Quota, error) {
	query := `
		SELECT employee_id, year, entitlement, carried_over, taken, remaining, updated_at
		FROM leave_quotas WHERE employee_id = ? AND year = ?
	`
	var (
		qt        leave.Quota
		updatedAt string
	)
	err := s.q(ctx).QueryRowContext(ctx, query, employeeID, year).Scan(
		&qt.EmployeeID, &qt.Year, &qt.Entitlement, &qt.CarriedOver, &qt.Taken, &qt.Remaining, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	qt.UpdatedAt = parseTime(updatedAt)
	return &qt, nil
}

func (s *Store) SaveQuota(ctx context.Context, qt leave.Quota) error {
	query := `
		INSERT INTO leave_quotas (employee_id, year, entitlement, carried_over, taken, remaining, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			entitlement = excluded.entitlement,
			carried_over = excluded.carried_over,
			taken = excluded.taken,
			remaining = excluded.remaining,
			updated_at = excluded.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		qt.EmployeeID, qt.Year, qt.Entitlement.String(), qt.CarriedOver.String(),
		qt.Taken.String(), qt.Remaining.String(), formatTime(qt.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}

// =============================================================================
// QUOTA LEDGER (append-only)
// =============================================================================

// AppendQuotaEntry inserts e. There is no update path.
func (s *Store) AppendQuotaEntry(ctx context.Context, e leave.QuotaEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
		INSERT INTO quota_entries
		(id, employee_id, year, kind, delta, request_id, idempotency_key, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		e.ID, e.EmployeeID, e.Year, e.Kind, e.Delta.String(), e.RequestID,
		nullString(e.IdempotencyKey), e.Actor, formatTime(createdAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("quota entry %s: %w", e.IdempotencyKey, generic.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to append quota entry: %w", err)
	}
	return nil
}

func (s *Store) ListQuotaEntries(ctx context.Context, employeeID generic.EmployeeID, year int) ([]leave.QuotaEntry, error) {
	query := `
		SELECT id, employee_id, year, kind, delta, request_id, COALESCE(idempotency_key, ''), actor, created_at
		FROM quota_entries WHERE employee_id = ? AND year = ? ORDER BY seq
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []leave.QuotaEntry{}
	for rows.Next() {
		var e leave.QuotaEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Year, &e.Kind, &e.Delta, &e.RequestID,
			&e.IdempotencyKey, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
