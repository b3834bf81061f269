package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
)

const recordColumns = `id, employee_id, date, check_in, check_out, source, status,
	late_minutes, early_minutes, ot_minutes, note, batch_id, created_at, updated_at`

func (s *Store) SaveRecord(ctx context.Context, rec attendance.Record) error {
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			date = EXCLUDED.date,
			check_in = EXCLUDED.check_in,
			check_out = EXCLUDED.check_out,
			source = EXCLUDED.source,
			status = EXCLUDED.status,
			late_minutes = EXCLUDED.late_minutes,
			early_minutes = EXCLUDED.early_minutes,
			ot_minutes = EXCLUDED.ot_minutes,
			note = EXCLUDED.note,
			batch_id = EXCLUDED.batch_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		rec.ID,
		string(rec.EmployeeID),
		rec.Date.Time,
		nullClock(rec.CheckIn),
		nullClock(rec.CheckOut),
		rec.Source,
		string(rec.Status),
		rec.LateMinutes,
		rec.EarlyMinutes,
		rec.OTMinutes,
		rec.Note,
		rec.BatchID,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("attendance record for %s on %s: %w", rec.EmployeeID, rec.Date, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save attendance record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) GetRecordByDay(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*attendance.Record, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE employee_id = $1 AND date = $2`,
		string(employeeID), day.Time)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	if f.EmployeeID != "" {
		return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records
			WHERE date BETWEEN $1 AND $2 AND employee_id = $3 ORDER BY employee_id, date`,
			f.Period.Start.Time, f.Period.End.Time, string(f.EmployeeID))
	}
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records
		WHERE date BETWEEN $1 AND $2 ORDER BY employee_id, date`,
		f.Period.Start.Time, f.Period.End.Time)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []attendance.Record{}
	for rows.Next() {
		var (
			r                  attendance.Record
			employeeID, status string
			date               time.Time
			checkIn, checkOut  *int32
		)
		if err := rows.Scan(&r.ID, &employeeID, &date, &checkIn, &checkOut, &r.Source, &status,
			&r.LateMinutes, &r.EarlyMinutes, &r.OTMinutes, &r.Note, &r.BatchID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.EmployeeID = generic.EmployeeID(employeeID)
		r.Status = attendance.Status(status)
		r.Date = generic.DateOf(date)
		r.CheckIn = clockOf(checkIn)
		r.CheckOut = clockOf(checkOut)
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
		(id, month, filename, imported_by, imported_at, total_rows, success, failed, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			total_rows = EXCLUDED.total_rows,
			success = EXCLUDED.success,
			failed = EXCLUDED.failed,
			errors = EXCLUDED.errors
	`
	_, err = s.querier(ctx).Exec(ctx, query,
		b.ID, b.Month, b.Filename, b.ImportedBy, b.ImportedAt,
		b.TotalRows, b.Success, b.Failed, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("save import batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*attendance.Batch, error) {
	query := `
		SELECT id, month, filename, imported_by, imported_at, total_rows, success, failed, errors
		FROM import_batches WHERE id = $1
	`
	var b attendance.Batch
	var errorsJSON []byte
	err := s.querier(ctx).QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Month, &b.Filename, &b.ImportedBy, &b.ImportedAt,
		&b.TotalRows, &b.Success, &b.Failed, &errorsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errorsJSON, &b.Errors); err != nil {
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
			grace_early_minutes, ot_after_minutes, ot_round_to_minutes, working_days, updated_at
		FROM work_schedules WHERE id = $1
	`
	var (
		ws         attendance.WorkSchedule
		start, end int32
		daysJSON   []byte
	)
	err := s.querier(ctx).QueryRow(ctx, query, attendance.ScheduleID).Scan(
		&ws.ID, &ws.Name, &start, &end, &ws.BreakMinutes, &ws.GraceLateMinutes,
		&ws.GraceEarlyMinutes, &ws.OTAfterMinutes, &ws.OTRoundToMinutes, &daysJSON, &ws.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ws.StartTime = generic.ClockTime(start)
	ws.EndTime = generic.ClockTime(end)
	if err := json.Unmarshal(daysJSON, &ws.WorkingDays); err != nil {
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
		 grace_early_minutes, ot_after_minutes, ot_round_to_minutes, working_days, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			break_minutes = EXCLUDED.break_minutes,
			grace_late_minutes = EXCLUDED.grace_late_minutes,
			grace_early_minutes = EXCLUDED.grace_early_minutes,
			ot_after_minutes = EXCLUDED.ot_after_minutes,
			ot_round_to_minutes = EXCLUDED.ot_round_to_minutes,
			working_days = EXCLUDED.working_days,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.querier(ctx).Exec(ctx, query,
		ws.ID, ws.Name, int32(ws.StartTime), int32(ws.EndTime), ws.BreakMinutes, ws.GraceLateMinutes,
		ws.GraceEarlyMinutes, ws.OTAfterMinutes, ws.OTRoundToMinutes, string(daysJSON), ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}
