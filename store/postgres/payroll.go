package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/payroll"
)

// =============================================================================
// CONTRACTS
// =============================================================================

const contractColumns = `id, employee_id, type, start_date, end_date, base_salary::text, status, version, created_at, updated_at`

func (s *Store) SaveContract(ctx context.Context, c payroll.Contract) error {
	query := `
		INSERT INTO contracts (id, employee_id, type, start_date, end_date, base_salary, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			base_salary = EXCLUDED.base_salary,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		c.ID, string(c.EmployeeID), c.Type, c.StartDate.Time, nullDate(c.EndDate),
		c.BaseSalary.String(), string(c.Status), c.Version, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("contract version %d for %s: %w", c.Version, c.EmployeeID, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save contract: %w", err)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id string) (*payroll.Contract, error) {
	cs, err := s.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	if err != nil || len(cs) == 0 {
		return nil, err
	}
	return &cs[0], nil
}

func (s *Store) ListContracts(ctx context.Context, employeeID generic.EmployeeID) ([]payroll.Contract, error) {
	return s.queryContracts(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE employee_id = $1 ORDER BY version DESC`, string(employeeID))
}

func (s *Store) queryContracts(ctx context.Context, query string, args ...any) ([]payroll.Contract, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Contract{}
	for rows.Next() {
		var (
			c                  payroll.Contract
			employeeID, status string
			start              time.Time
			end                *time.Time
		)
		if err := rows.Scan(&c.ID, &employeeID, &c.Type, &start, &end, &c.BaseSalary, &status, &c.Version,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.EmployeeID = generic.EmployeeID(employeeID)
		c.Status = payroll.ContractStatus(status)
		c.StartDate = generic.DateOf(start)
		c.EndDate = dateOf(end)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			kind = EXCLUDED.kind,
			calc_type = EXCLUDED.calc_type,
			expr = EXCLUDED.expr,
			priority = EXCLUDED.priority,
			active = EXCLUDED.active
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		c.ID, c.Label, string(c.Kind), string(c.CalcType), c.Expr, c.Priority, c.Active)
	if err != nil {
		return fmt.Errorf("save component: %w", err)
	}
	return nil
}

func (s *Store) ListComponents(ctx context.Context) ([]payroll.Component, error) {
	rows, err := s.querier(ctx).Query(ctx,
		`SELECT id, label, kind, calc_type, expr, priority, active FROM salary_components ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Component{}
	for rows.Next() {
		var c payroll.Component
		var kind, calcType string
		if err := rows.Scan(&c.ID, &c.Label, &kind, &calcType, &c.Expr, &c.Priority, &c.Active); err != nil {
			return nil, err
		}
		c.Kind = payroll.ComponentKind(kind)
		c.CalcType = payroll.CalcType(calcType)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes
	`
	_, err := s.querier(ctx).Exec(ctx, query,
		c.ID, c.Name, c.StartDate.Time, c.EndDate.Time, c.Currency, string(c.Status), c.Notes)
	if err != nil {
		return fmt.Errorf("save cycle: %w", err)
	}
	return nil
}

func (s *Store) GetCycle(ctx context.Context, id string) (*payroll.Cycle, error) {
	cs, err := s.queryCycles(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles WHERE id = $1`, id)
	if err != nil || len(cs) == 0 {
		return nil, err
	}
	return &cs[0], nil
}

func (s *Store) ListCycles(ctx context.Context) ([]payroll.Cycle, error) {
	return s.queryCycles(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles ORDER BY start_date DESC, id`)
}

func (s *Store) queryCycles(ctx context.Context, query string, args ...any) ([]payroll.Cycle, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Cycle{}
	for rows.Next() {
		var c payroll.Cycle
		var start, end time.Time
		var status string
		if err := rows.Scan(&c.ID, &c.Name, &start, &end, &c.Currency, &status, &c.Notes); err != nil {
			return nil, err
		}
		c.StartDate, c.EndDate = generic.DateOf(start), generic.DateOf(end)
		c.Status = payroll.CycleStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYSLIPS
// =============================================================================

const payslipColumns = `id, cycle_id, employee_id, currency, summary, items,
	gross::text, deductions::text, net::text, status, generated_at`

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
		INSERT INTO payslips (id, cycle_id, employee_id, currency, summary, items,
			gross, deductions, net, status, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			currency = EXCLUDED.currency,
			summary = EXCLUDED.summary,
			items = EXCLUDED.items,
			gross = EXCLUDED.gross,
			deductions = EXCLUDED.deductions,
			net = EXCLUDED.net,
			status = EXCLUDED.status,
			generated_at = EXCLUDED.generated_at
	`
	_, err = s.querier(ctx).Exec(ctx, query,
		p.ID, p.CycleID, string(p.EmployeeID), p.Currency, string(summaryJSON), string(itemsJSON),
		p.Gross.String(), p.Deductions.String(), p.Net.String(), p.Status, p.GeneratedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("payslip for %s in %s: %w", p.EmployeeID, p.CycleID, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save payslip: %w", err)
	}
	return nil
}

func (s *Store) GetPayslip(ctx context.Context, id string) (*payroll.Payslip, error) {
	ps, err := s.queryPayslips(ctx, `SELECT `+payslipColumns+` FROM payslips WHERE id = $1`, id)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) GetPayslipFor(ctx context.Context, cycleID string, employeeID generic.EmployeeID) (*payroll.Payslip, error) {
	ps, err := s.queryPayslips(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE cycle_id = $1 AND employee_id = $2`, cycleID, string(employeeID))
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) ListPayslips(ctx context.Context, cycleID string) ([]payroll.Payslip, error) {
	return s.queryPayslips(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE cycle_id = $1 ORDER BY employee_id`, cycleID)
}

func (s *Store) queryPayslips(ctx context.Context, query string, args ...any) ([]payroll.Payslip, error) {
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.Payslip{}
	for rows.Next() {
		var (
			p                      payroll.Payslip
			employeeID             string
			summaryJSON, itemsJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.CycleID, &employeeID, &p.Currency, &summaryJSON, &itemsJSON,
			&p.Gross, &p.Deductions, &p.Net, &p.Status, &p.GeneratedAt); err != nil {
			return nil, err
		}
		p.EmployeeID = generic.EmployeeID(employeeID)
		if err := json.Unmarshal(summaryJSON, &p.Summary); err != nil {
			return nil, fmt.Errorf("payslip %s has a corrupt summary: %w", p.ID, err)
		}
		if err := json.Unmarshal(itemsJSON, &p.Items); err != nil {
			return nil, fmt.Errorf("payslip %s has corrupt items: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
