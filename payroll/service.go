package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/warp/hr-engine/generic"
)

// Service runs payroll cycles.
type Service struct {
	Store           Store
	Employees       generic.EmployeeDirectory
	Contracts       *ContractService
	Summarizer      *Summarizer
	Logger          *slog.Logger
	DefaultCurrency string

	cycles   *generic.KeyedLocker
	payslips *generic.KeyedLocker
}

func NewService(store Store, employees generic.EmployeeDirectory, contracts *ContractService, summarizer *Summarizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:           store,
		Employees:       employees,
		Contracts:       contracts,
		Summarizer:      summarizer,
		Logger:          logger,
		DefaultCurrency: DefaultCurrency,
		cycles:          generic.NewKeyedLocker(),
		payslips:        generic.NewKeyedLocker(),
	}
}

// Summary exposes the aggregator for an arbitrary period.
func (s *Service) Summary(ctx context.Context, employeeID generic.EmployeeID, p generic.Period) (*Summary, error) {
	return s.Summarizer.Summarize(ctx, employeeID, p)
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateForEmployee computes and stores the employee's payslip for the
// cycle, reusing the id of an existing payslip.
func (s *Service) CalculateForEmployee(ctx context.Context, cycleID string, employeeID generic.EmployeeID) (*Payslip, error) {
	cycle, err := s.draftCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return s.calculate(ctx, *cycle, employeeID)
}

func (s *Service) calculate(ctx context.Context, cycle Cycle, employeeID generic.EmployeeID) (*Payslip, error) {
	emp, err := s.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrUnknownEmployee, employeeID)
	}
	sum, err := s.Summarizer.Summarize(ctx, emp.ID, cycle.Period())
	if err != nil {
		return nil, err
	}
	catalog, err := s.Store.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	items := BuildItems(*sum, catalog)
	gross, deductions, net := Totals(items)
	slip := Payslip{
		ID:          generic.NewID(),
		CycleID:     cycle.ID,
		EmployeeID:  emp.ID,
		Currency:    cycle.Currency,
		Summary:     *sum,
		Items:       items,
		Gross:       gross,
		Deductions:  deductions,
		Net:         net,
		Status:      PayslipCalculated,
		GeneratedAt: cycle.EndDate.StartOfDay(time.UTC),
	}

	unlock := s.payslips.Lock(cycle.ID + "|" + string(emp.ID))
	defer unlock()
	existing, err := s.Store.GetPayslipFor(ctx, cycle.ID, emp.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slip.ID = existing.ID
	}
	if err := s.Store.SavePayslip(ctx, slip); err != nil {
		return nil, fmt.Errorf("save payslip: %w", err)
	}
	s.Logger.Debug("payslip calculated", "cycle_id", cycle.ID, "employee_id", string(emp.ID), "net", net.String())
	return &slip, nil
}

// CalculateForAll calculates every employee with a contract active on the
// cycle end date, in employee id order. Employees whose summary cannot be
// produced from their data are skipped and logged.
func (s *Service) CalculateForAll(ctx context.Context, cycleID string) ([]Payslip, error) {
	cycle, err := s.draftCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	employees, err := s.Employees.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	out := make([]Payslip, 0, len(employees))
	skipped := 0
	for _, e := range employees {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		contract, err := s.Contracts.Active(ctx, e.ID, cycle.EndDate)
		if err != nil {
			return out, err
		}
		if contract == nil {
			skipped++
			s.Logger.Debug("payroll skipped: no active contract", "cycle_id", cycleID, "employee_id", string(e.ID))
			continue
		}
		slip, err := s.calculate(ctx, *cycle, e.ID)
		if err != nil {
			if generic.IsClientError(err) {
				skipped++
				s.Logger.Warn("payroll skipped", "cycle_id", cycleID, "employee_id", string(e.ID), "error", err)
				continue
			}
			return out, fmt.Errorf("calculate %s: %w", e.ID, err)
		}
		out = append(out, *slip)
	}
	s.Logger.Info("payroll calculated", "cycle_id", cycleID, "payslips", len(out), "skipped", skipped)
	return out, nil
}

// draftCycle loads the cycle and requires it to be DRAFT.
func (s *Service) draftCycle(ctx context.Context, id string) (*Cycle, error) {
	c, err := s.Cycle(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != CycleDraft {
		return nil, &generic.InvalidStateError{
			Entity:  "payroll cycle",
			ID:      id,
			Current: string(c.Status),
			Action:  "calculate",
		}
	}
	return c, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Payslips(ctx context.Context, cycleID string) ([]Payslip, error) {
	if _, err := s.Cycle(ctx, cycleID); err != nil {
		return nil, err
	}
	return s.Store.ListPayslips(ctx, cycleID)
}

func (s *Service) Payslip(ctx context.Context, id string) (*Payslip, error) {
	p, err := s.Store.GetPayslip(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, generic.NotFound("payslip", id)
	}
	return p, nil
}

func (s *Service) Components(ctx context.Context) ([]Component, error) {
	return s.Store.ListComponents(ctx)
}

// SeedComponents stores the default catalog entries that are missing.
func (s *Service) SeedComponents(ctx context.Context) error {
	existing, err := s.Store.ListComponents(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.ID] = true
	}
	var errs []error
	for _, c := range DefaultCatalog() {
		if have[c.ID] {
			continue
		}
		if err := s.Store.SaveComponent(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("seed component %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}
