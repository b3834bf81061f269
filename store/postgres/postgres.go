/*
Package postgres provides a PostgreSQL-backed implementation of every store
contract of the engine, on a pgx connection pool.

PURPOSE:
  Production backend. Mirrors the schema of store/sqlite with native types:
  DATE for calendar days, TIMESTAMPTZ for instants, NUMERIC for money and
  day counts, JSONB for payslip summaries and items.

TRANSACTIONS:
  WithTx begins a pgx.Tx and stores it in the context; querier(ctx) hands
  repositories either that transaction or the pool. Nested WithTx calls
  join the outer transaction.

USAGE:
  store, err := postgres.New(ctx, "postgres://hr:hr@localhost:5432/hr?sslmode=disable")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/hr-engine/generic"
)

// Store implements all storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres requires a database URL: %w", generic.ErrInvalidInput)
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		full_name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_code ON employees (lower(code));

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date DATE NOT NULL UNIQUE,
		name TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date DATE NOT NULL,
		check_in INTEGER,
		check_out INTEGER,
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		early_minutes INTEGER NOT NULL DEFAULT 0,
		ot_minutes INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (employee_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records (date);

	CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		filename TEXT NOT NULL,
		imported_by TEXT NOT NULL,
		imported_at TIMESTAMPTZ NOT NULL,
		total_rows INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		errors JSONB NOT NULL DEFAULT '[]'
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
		working_days JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		deduct_quota BOOLEAN NOT NULL DEFAULT TRUE,
		paid BOOLEAN
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_types_code ON leave_types (lower(code));

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type_code TEXT NOT NULL,
		start_date DATE NOT NULL,
		start_session TEXT NOT NULL,
		end_date DATE NOT NULL,
		end_session TEXT NOT NULL,
		days NUMERIC(6, 1) NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		approver_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		decided_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee ON leave_requests (employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status ON leave_requests (status);

	CREATE TABLE IF NOT EXISTS leave_quotas (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		entitlement NUMERIC(8, 1) NOT NULL,
		carried_over NUMERIC(8, 1) NOT NULL,
		taken NUMERIC(8, 1) NOT NULL,
		remaining NUMERIC(8, 1) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS quota_entries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		kind TEXT NOT NULL,
		delta NUMERIC(8, 1) NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		actor TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quota_entries_employee_year ON quota_entries (employee_id, year);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		base_salary NUMERIC(18, 2) NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (employee_id, version)
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
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS payslips (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		summary JSONB NOT NULL,
		items JSONB NOT NULL,
		gross NUMERIC(18, 2) NOT NULL,
		deductions NUMERIC(18, 2) NOT NULL,
		net NUMERIC(18, 2) NOT NULL,
		status TEXT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (cycle_id, employee_id)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// querier returns either the transaction in ctx or the pool.
func (s *Store) querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithTx executes fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, code, full_name, department, email`

func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			full_name = EXCLUDED.full_name,
			department = EXCLUDED.department,
			email = EXCLUDED.email
	`
	_, err := s.querier(ctx).Exec(ctx, query, string(e.ID), e.Code, e.FullName, e.Department, e.Email)
	if isUniqueViolation(err) {
		return fmt.Errorf("employee code %s: %w", e.Code, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	return s.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, string(id))
}

func (s *Store) GetEmployeeByCode(ctx context.Context, code string) (*generic.Employee, error) {
	return s.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE lower(code) = lower($1)`, code)
}

func (s *Store) getEmployee(ctx context.Context, query string, arg string) (*generic.Employee, error) {
	var e generic.Employee
	var id string
	err := s.querier(ctx).QueryRow(ctx, query, arg).Scan(&id, &e.Code, &e.FullName, &e.Department, &e.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = generic.EmployeeID(id)
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	rows, err := s.querier(ctx).Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []generic.Employee{}
	for rows.Next() {
		var e generic.Employee
		var id string
		if err := rows.Scan(&id, &e.Code, &e.FullName, &e.Department, &e.Email); err != nil {
			return nil, err
		}
		e.ID = generic.EmployeeID(id)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	query := `
		INSERT INTO holidays (id, date, name, region)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			name = EXCLUDED.name,
			region = EXCLUDED.region
	`
	_, err := s.querier(ctx).Exec(ctx, query, h.ID, h.Date.Time, h.Name, h.Region)
	if isUniqueViolation(err) {
		return fmt.Errorf("holiday on %s: %w", h.Date, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save holiday: %w", err)
	}
	return nil
}

func (s *Store) GetHoliday(ctx context.Context, id string) (*generic.Holiday, error) {
	hs, err := s.queryHolidays(ctx, `SELECT id, date, name, region FROM holidays WHERE id = $1`, id)
	if err != nil || len(hs) == 0 {
		return nil, err
	}
	return &hs[0], nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	tag, err := s.querier(ctx).Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("holiday", id)
	}
	return nil
}

func (s *Store) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	return s.queryHolidays(ctx,
		`SELECT id, date, name, region FROM holidays WHERE date BETWEEN $1 AND $2 ORDER BY date`,
		from.Time, to.Time)
}

func (s *Store) ListHolidays(ctx context.Context, year int) ([]generic.Holiday, error) {
	if year == 0 {
		return s.queryHolidays(ctx, `SELECT id, date, name, region FROM holidays ORDER BY date`)
	}
	return s.queryHolidays(ctx,
		`SELECT id, date, name, region FROM holidays WHERE EXTRACT(YEAR FROM date) = $1 ORDER BY date`, year)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []generic.Holiday{}
	for rows.Next() {
		var h generic.Holiday
		var date time.Time
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Region); err != nil {
			return nil, err
		}
		h.Date = generic.DateOf(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset truncates every table (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.querier(ctx).Exec(ctx, `
		TRUNCATE payslips, payroll_cycles, salary_components, contracts,
			quota_entries, leave_quotas, leave_requests, leave_types,
			work_schedules, import_batches, attendance_records,
			holidays, employees
		RESTART IDENTITY
	`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullDate(tp generic.TimePoint) any {
	if tp.IsZero() {
		return nil
	}
	return tp.Time
}

func dateOf(t *time.Time) generic.TimePoint {
	if t == nil {
		return generic.TimePoint{}
	}
	return generic.DateOf(*t)
}

func nullClock(c *generic.ClockTime) any {
	if c == nil {
		return nil
	}
	return int32(*c)
}

func clockOf(v *int32) *generic.ClockTime {
	if v == nil {
		return nil
	}
	c := generic.ClockTime(*v)
	return &c
}
