/*
Package sqlite provides a SQLite-backed implementation of every store
contract of the engine.

PURPOSE:
  Implements attendance.Store, leave.Store, payroll.Store, the employee
  directory and the holiday calendar on one SQLite database. The same
  schema is mirrored for PostgreSQL in store/postgres.

KEY TABLES:
  employees:           Directory (code unique, case-insensitive)
  holidays:            Declared non-working dates (date unique)
  attendance_records:  One row per (employee_id, date)
  import_batches:      Import outcomes with their row errors
  work_schedules:      The single default schedule
  leave_types / leave_requests / leave_quotas
  quota_entries:       Append-only quota ledger (idempotency_key unique)
  contracts / salary_components / payroll_cycles
  payslips:            One row per (cycle_id, employee_id)

ENCODING:
  Dates are stored as YYYY-MM-DD text, timestamps as RFC 3339 text, clock
  times as seconds since midnight and money as decimal text, so values
  round-trip exactly.

TRANSACTIONS:
  WithTx begins a transaction and puts it in the context. Every method
  resolves its querier from the context, so repository calls made inside
  the callback join the transaction. Nested WithTx calls join too.

WAL MODE:
  File databases are opened with WAL, a busy timeout and immediate
  transactions: readers never block, writers queue instead of failing
  with SQLITE_BUSY. ":memory:" databases are pinned to one connection
  because each connection would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/hr.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/hr-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = "hr.db"
	}
	memory := dbPath == ":memory:"

	dsn := dbPath + "?_foreign_keys=on"
	if !memory {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		full_name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_code
		ON employees(code COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT ''
	);

	-- Attendance
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in INTEGER,
		check_out INTEGER,
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		early_minutes INTEGER NOT NULL DEFAULT 0,
		ot_minutes INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_employee_day
		ON attendance_records(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_date
		ON attendance_records(date);

	CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		filename TEXT NOT NULL,
		imported_by TEXT NOT NULL,
		imported_at TEXT NOT NULL,
		total_rows INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		errors_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS work_schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		break_minutes INTEGER NOT NULL,
		grace_late_minutes INTEGER NOT NULL,
		grace_early_minutes INTEGER NOT NULL,
		ot_after_minutes INTEGER NOT NULL,
		ot_round_to_minutes INTEGER NOT NULL,
		working_days_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Leave
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		deduct_quota BOOLEAN NOT NULL DEFAULT TRUE,
		paid BOOLEAN
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_types_code
		ON leave_types(code COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type_code TEXT NOT NULL,
		start_date TEXT NOT NULL,
		start_session TEXT NOT NULL,
		end_date TEXT NOT NULL,
		end_session TEXT NOT NULL,
		days TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		approver_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		decided_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS leave_quotas (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		entitlement TEXT NOT NULL,
		carried_over TEXT NOT NULL,
		taken TEXT NOT NULL,
		remaining TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	-- Append-only: no UPDATE or DELETE is ever issued against this table.
	CREATE TABLE IF NOT EXISTS quota_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		kind TEXT NOT NULL,
		delta TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		actor TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quota_entries_employee_year
		ON quota_entries(employee_id, year);

	-- Payroll
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		base_salary TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, version)
	);

	CREATE TABLE IF NOT EXISTS salary_components (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		calc_type TEXT NOT NULL,
		expr TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS payroll_cycles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS payslips (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		items_json TEXT NOT NULL,
		gross TEXT NOT NULL,
		deductions TEXT NOT NULL,
		net TEXT NOT NULL,
		status TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		UNIQUE(cycle_id, employee_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// q returns the transaction carried by ctx, or the database.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, code, full_name, department, email`

// SaveEmployee upserts by id. Codes are unique ignoring case.
func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			full_name = excluded.full_name,
			department = excluded.department,
			email = excluded.email
	`
	_, err := s.q(ctx).ExecContext(ctx, query, e.ID, e.Code, e.FullName, e.Department, e.Email)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("employee code %s: %w", e.Code, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

func (s *Store) GetEmployeeByCode(ctx context.Context, code string) (*generic.Employee, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE code = ? COLLATE NOCASE`, code)
	return scanEmployee(row)
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []generic.Employee{}
	for rows.Next() {
		var e generic.Employee
		if err := rows.Scan(&e.ID, &e.Code, &e.FullName, &e.Department, &e.Email); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row *sql.Row) (*generic.Employee, error) {
	var e generic.Employee
	err := row.Scan(&e.ID, &e.Code, &e.FullName, &e.Department, &e.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday upserts by id. Dates are unique.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	query := `
		INSERT INTO holidays (id, date, name, region)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			region = excluded.region
	`
	_, err := s.q(ctx).ExecContext(ctx, query, h.ID, h.Date.String(), h.Name, h.Region)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("holiday on %s: %w", h.Date, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) GetHoliday(ctx context.Context, id string) (*generic.Holiday, error) {
	hs, err := s.queryHolidays(ctx, `SELECT id, date, name, region FROM holidays WHERE id = ?`, id)
	if err != nil || len(hs) == 0 {
		return nil, err
	}
	return &hs[0], nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("holiday", id)
	}
	return nil
}

// HolidaysBetween implements generic.HolidaySource.
func (s *Store) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	return s.queryHolidays(ctx,
		`SELECT id, date, name, region FROM holidays WHERE date >= ? AND date <= ? ORDER BY date`,
		from.String(), to.String())
}

// ListHolidays lists one year's holidays; year 0 lists all.
func (s *Store) ListHolidays(ctx context.Context, year int) ([]generic.Holiday, error) {
	if year == 0 {
		return s.queryHolidays(ctx, `SELECT id, date, name, region FROM holidays ORDER BY date`)
	}
	return s.queryHolidays(ctx,
		`SELECT id, date, name, region FROM holidays WHERE substr(date, 1, 4) = ? ORDER BY date`,
		fmt.Sprintf("%04d", year))
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []generic.Holiday{}
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Region); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		tables := []string{
			"payslips", "payroll_cycles", "salary_components", "contracts",
			"quota_entries", "leave_quotas", "leave_requests", "leave_types",
			"work_schedules", "import_batches", "attendance_records",
			"holidays", "employees",
		}
		for _, table := range tables {
			if _, err := s.q(ctx).ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (generic.TimePoint, error) {
	if !ns.Valid || ns.String == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(ns.String)
}

func nullClock(c *generic.ClockTime) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

func clockOf(n sql.NullInt64) *generic.ClockTime {
	if !n.Valid {
		return nil
	}
	c := generic.ClockTime(n.Int64)
	return &c
}
