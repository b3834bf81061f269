package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/payroll"
)

// =============================================================================
// CONTRACTS
// =============================================================================

const contractColumns = `id, employee_id, type, start_date, end_date, base_salary, status, version, created_at, updated_at`

func (s *Store) SaveContract(ctx context.Context, c payroll.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			base_salary = excluded.base_salary,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		c.ID, c.EmployeeID, c.Type, c.StartDate.String(), nullDate(c.EndDate),
		c.BaseSalary.String(), c.Status, c.Version, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("contract version %d for %s: %w", c.Version, c.EmployeeID, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id string) (*payroll.Contract, error) {
	cs, err := s.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	if err != nil || len(cs) == 0 {
		return nil, err
	}
	return &cs[0], nil
}

func (s *Store) ListContracts(ctx context.Context, employeeID generic.EmployeeID) ([]payroll.Contract, error) {
	return s.queryContracts(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE employee_id = ? ORDER BY version DESC`, employeeID)
}

func (s *Store) queryContracts(ctx context.Context, query string, args ...any) ([]payroll.Contract, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Contract{}
	for rows.Next() {
		var (
			c                    payroll.Contract
			start                string
			end                  sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.Type, &start, &end, &c.BaseSalary, &c.Status, &c.Version,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if c.EndDate, err = parseNullDate(end); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// COMPONENT CATALOG
// =============================================================================

func (s *Store) SaveComponent(ctx context.Context, c payroll.Component) error {
	query := `
		INSERT INTO salary_components (id, label, kind, calc_type, expr, priority, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			kind = excluded.kind,
			calc_type = excluded.calc_type,
			expr = excluded.expr,
			priority = excluded.priority,
			active = excluded.active
	`
	_, err := s.q(ctx).ExecContext(ctx, query, c.ID, c.Label, c.Kind, c.CalcType, c.Expr, c.Priority, c.Active)
	if err != nil {
		return fmt.Errorf("failed to save component: %w", err)
	}
	return nil
}

func (s *Store) ListComponents(ctx context.Context) ([]payroll.Component, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, label, kind, calc_type, expr, priority, active FROM salary_components ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Component{}
	for rows.Next() {
		var c payroll.Component
		if err := rows.Scan(&c.ID, &c.Label, &c.Kind, &c.CalcType, &c.Expr, &c.Priority, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// CYCLES
// =============================================================================

const cycleColumns = `id, name, start_date, end_date, currency, status, notes`

func (s *Store) SaveCycle(ctx context.Context, c payroll.Cycle) error {
	query := `
		INSERT INTO payroll_cycles (` + cycleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			currency = excluded.currency,
			status = excluded.status,
			notes = excluded.notes
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.StartDate.String(), c.EndDate.String(), c.Currency, c.Status, c.Notes)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}

func (s *Store) GetCycle(ctx context.Context, id string) (*payroll.Cycle, error) {
	cs, err := s.queryCycles(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles WHERE id = ?`, id)
	if err != nil || len(cs) == 0 {
		return nil, err
	}
	return &cs[0], nil
}

func (s *Store) ListCycles(ctx context.Context) ([]payroll.Cycle, error) {
	return s.queryCycles(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles ORDER BY start_date DESC, id`)
}

func (s *Store) queryCycles(ctx context.Context, query string, args ...any) ([]payroll.Cycle, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Cycle{}
	for rows.Next() {
		var c payroll.Cycle
		var start, end string
		if err := rows.Scan(&c.ID, &c.Name, &start, &end, &c.Currency, &c.Status, &c.Notes); err != nil {
			return nil, err
		}
		if c.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if c.EndDate, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYSLIPS
// =============================================================================

const payslipColumns = `id, cycle_id, employee_id, currency, summary_json, items_json,
	gross, deductions, net, status, generated_at`

// SavePayslip upserts by id. A second payslip for the same cycle and
// employee is rejected with ErrConflict.
func (s *Store) SavePayslip(ctx context.Context, p payroll.Payslip) error {
	summaryJSON, err := json.Marshal(p.Summary)
	if err != nil {
		return err
	}
	items := p.Items
	if items == nil {
		items = []payroll.Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO payslips (` + payslipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			currency = excluded.currency,
			summary_json = excluded.summary_json,
			items_json = excluded.items_json,
			gross = excluded.gross,
			deductions = excluded.deductions,
			net = excluded.net,
			status = excluded.status,
			generated_at = excluded.generated_at
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		p.ID, p.CycleID, p.EmployeeID, p.Currency, string(summaryJSON), string(itemsJSON),
		p.Gross.String(), p.Deductions.String(), p.Net.String(), p.Status, formatTime(p.GeneratedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("payslip for %s in %s: %w", p.EmployeeID, p.CycleID, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save payslip: %w", err)
	}
	return nil
}

func (s *Store) GetPayslip(ctx context.Context, id string) (*payroll.Payslip, error) {
	ps, err := s.queryPayslips(ctx, `SELECT `+payslipColumns+` FROM payslips WHERE id = ?`, id)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) GetPayslipFor(ctx context.Context, cycleID string, employeeID generic.EmployeeID) (*payroll.Payslip, error) {
	ps, err := s.queryPayslips(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE cycle_id = ? AND employee_id = ?`, cycleID, employeeID)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) ListPayslips(ctx context.Context, cycleID string) ([]payroll.Payslip, error) {
	return s.queryPayslips(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE cycle_id = ? ORDER BY employee_id`, cycleID)
}

func (s *Store) queryPayslips(ctx context.Context, query string, args ...any) ([]payroll.Payslip, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Payslip{}
	for rows.Next() {
		var (
			p                      payroll.Payslip
			summaryJSON, itemsJSON string
			generatedAt            string
		)
		if err := rows.Scan(&p.ID, &p.CycleID, &p.EmployeeID, &p.Currency, &summaryJSON, &itemsJSON,
			&p.Gross, &p.Deductions, &p.Net, &p.Status, &generatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(summaryJSON), &p.Summary); err != nil {
			return nil, fmt.Errorf("payslip %s has a corrupt summary: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &p.Items); err != nil {
			return nil, fmt.Errorf("payslip %s has corrupt items: %w", p.ID, err)
		}
		p.GeneratedAt = parseTime(generatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
