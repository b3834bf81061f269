package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// ATTENDANCE RECORDS (attendance.Store)
// =============================================================================

const recordColumns = `id, employee_id, date, check_in, check_out, source, status,
	late_minutes, early_minutes, ot_minutes, note, batch_id, created_at, updated_at`

// SaveRecord upserts by id. A second record for the same employee-day is
// rejected with ErrConflict.
func (s *Store) SaveRecord(ctx context.Context, rec attendance.Record) error {
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			source = excluded.source,
			status = excluded.status,
			late_minutes = excluded.late_minutes,
			early_minutes = excluded.early_minutes,
			ot_minutes = excluded.ot_minutes,
			note = excluded.note,
			batch_id = excluded.batch_id,
			updated_at = excluded.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.EmployeeID,
		rec.Date.String(),
		nullClock(rec.CheckIn),
		nullClock(rec.CheckOut),
		rec.Source,
		rec.Status,
		rec.LateMinutes,
		rec.EarlyMinutes,
		rec.OTMinutes,
		rec.Note,
		rec.BatchID,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("attendance record for %s on %s: %w", rec.EmployeeID, rec.Date, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save attendance record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`, id)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) GetRecordByDay(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*attendance.Record, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE employee_id = ? AND date = ?`,
		employeeID, day.String())
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	where := []string{"date >= ?", "date <= ?"}
	args := []any{f.Period.Start.String(), f.Period.End.String()}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY employee_id, date`
	return s.queryRecords(ctx, query, args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []attendance.Record{}
	for rows.Next() {
		var (
			r                    attendance.Record
			date                 string
			checkIn, checkOut    sql.NullInt64
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &date, &checkIn, &checkOut, &r.Source, &r.Status,
			&r.LateMinutes, &r.EarlyMinutes, &r.OTMinutes, &r.Note, &r.BatchID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if r.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		r.CheckIn = clockOf(checkIn)
		r.CheckOut = clockOf(checkOut)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// IMPORT BATCHES
// =============================================================================

func (s *Store) SaveBatch(ctx context.Context, b attendance.Batch) error {
	errs := b.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO import_batches
		(id, month, filename, imported_by, imported_at, total_rows, success, failed, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_rows = excluded.total_rows,
			success = excluded.success,
			failed = excluded.failed,
			errors_json = excluded.errors_json
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		b.ID, b.Month, b.Filename, b.ImportedBy, formatTime(b.ImportedAt),
		b.TotalRows, b.Success, b.Failed, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("failed to save import batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*attendance.Batch, error) {
	query := `
		SELECT id, month, filename, imported_by, imported_at, total_rows, success, failed, errors_json
		FROM import_batches WHERE id = ?
	`
	var (
		b                      attendance.Batch
		importedAt, errorsJSON string
	)
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Month, &b.Filename, &b.ImportedBy, &importedAt,
		&b.TotalRows, &b.Success, &b.Failed, &errorsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.ImportedAt = parseTime(importedAt)
	if err := json.Unmarshal([]byte(errorsJSON), &b.Errors); err != nil {
		return nil, fmt.Errorf("batch %s has corrupt errors: %w", id, err)
	}
	return &b, nil
}

// =============================================================================
// WORK SCHEDULE
// =============================================================================

func (s *Store) GetSchedule(ctx context.Context) (*attendance.WorkSchedule, error) {
	query := `
		SELECT id, name, start_time, end_time, break_minutes, grace_late_minutes,
			grace_early_minutes, ot_after_minutes, ot_round_to_minutes, working_days_json, updated_at
		FROM work_schedules WHERE id = ?
	`
	var (
		ws                  attendance.WorkSchedule
		start, end          int64
		daysJSON, updatedAt string
	)
	err := s.q(ctx).QueryRowContext(ctx, query, attendance.ScheduleID).Scan(
		&ws.ID, &ws.Name, &start, &end, &ws.BreakMinutes, &ws.GraceLateMinutes,
		&ws.GraceEarlyMinutes, &ws.OTAfterMinutes, &ws.OTRoundToMinutes, &daysJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ws.StartTime = generic.ClockTime(start)
	ws.EndTime = generic.ClockTime(end)
	ws.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(daysJSON), &ws.WorkingDays); err != nil {
		return nil, fmt.Errorf("schedule has corrupt working days: %w", err)
	}
	return &ws, nil
}

func (s *Store) SaveSchedule(ctx context.Context, ws attendance.WorkSchedule) error {
	daysJSON, err := json.Marshal(ws.WorkingDays)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO work_schedules
		(id, name, start_time, end_time, break_minutes, grace_late_minutes,
		 grace_early_minutes, ot_after_minutes, ot_round_to_minutes, working_days_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			break_minutes = excluded.break_minutes,
			grace_late_minutes = excluded.grace_late_minutes,
			grace_early_minutes = excluded.grace_early_minutes,
			ot_after_minutes = excluded.ot_after_minutes,
			ot_round_to_minutes = excluded.ot_round_to_minutes,
			working_days_json = excluded.working_days_json,
			updated_at = excluded.updated_at
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		ws.ID, ws.Name, int64(ws.StartTime), int64(ws.EndTime), ws.BreakMinutes, ws.GraceLateMinutes,
		ws.GraceEarlyMinutes, ws.OTAfterMinutes, ws.OTRoundToMinutes, string(daysJSON), formatTime(ws.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
