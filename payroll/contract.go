package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// ContractService manages versioned employee contracts.
type ContractService struct {
	Store     Store
	Employees generic.EmployeeDirectory
	Logger    *slog.Logger
	Now       func() time.Time

	employees *generic.KeyedLocker
}

func NewContractService(store Store, employees generic.EmployeeDirectory, logger *slog.Logger) *ContractService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractService{
		Store:     store,
		Employees: employees,
		Logger:    logger,
		Now:       time.Now,
		employees: generic.NewKeyedLocker(),
	}
}

func (s *ContractService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type ContractInput struct {
	Type       string
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
	BaseSalary decimal.Decimal
	Status     ContractStatus
}

func (in ContractInput) validate() error {
	if in.StartDate.IsZero() {
		return fmt.Errorf("contract start date is required: %w", generic.ErrInvalidInput)
	}
	if !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("contract ends before it starts: %w", generic.ErrInvalidPeriod)
	}
	if in.BaseSalary.IsNegative() {
		return fmt.Errorf("base salary must not be negative: %w", generic.ErrInvalidInput)
	}
	return nil
}

// Create stores the next version of the employee's contract. An ACTIVE
// contract expires every earlier ACTIVE contract it overlaps.
func (s *ContractService) Create(ctx context.Context, employeeID generic.EmployeeID, in ContractInput) (*Contract, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	emp, err := s.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrUnknownEmployee, employeeID)
	}
	if in.Status == "" {
		in.Status = ContractActive
	}

	unlock := s.employees.Lock(string(employeeID))
	defer unlock()

	var created Contract
	err = s.Store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.Store.ListContracts(ctx, employeeID)
		if err != nil {
			return err
		}
		now := s.now()
		version := 0
		for _, c := range existing {
			if c.Version > version {
				version = c.Version
			}
		}
		created = Contract{
			ID:         generic.NewID(),
			EmployeeID: employeeID,
			Type:       in.Type,
			StartDate:  in.StartDate,
			EndDate:    in.EndDate,
			BaseSalary: in.BaseSalary,
			Status:     in.Status,
			Version:    version + 1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if created.Status == ContractActive {
			for _, c := range existing {
				if !supersedes(created, c) {
					continue
				}
				c.Status = ContractExpired
				c.UpdatedAt = now
				if err := s.Store.SaveContract(ctx, c); err != nil {
					return fmt.Errorf("expire contract %s: %w", c.ID, err)
				}
				s.Logger.Info("contract expired", "contract_id", c.ID, "employee_id", string(employeeID), "superseded_by_version", created.Version)
			}
		}
		return s.Store.SaveContract(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// supersedes reports whether next expires prev: prev is ACTIVE, started
// strictly earlier and is still running on next's start date.
func supersedes(next, prev Contract) bool {
	if prev.Status != ContractActive || !prev.StartDate.Before(next.StartDate) {
		return false
	}
	return prev.EndDate.IsZero() || prev.EndDate.AfterOrEqual(next.StartDate)
}

// ContractUpdate changes selected fields. ClearEndDate makes it open-ended.
type ContractUpdate struct {
	Type         *string
	StartDate    *generic.TimePoint
	EndDate      *generic.TimePoint
	ClearEndDate bool
	BaseSalary   *decimal.Decimal
	Status       *ContractStatus
}

func (s *ContractService) Update(ctx context.Context, id string, u ContractUpdate) (*Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Type != nil {
		c.Type = *u.Type
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = *u.EndDate
	}
	if u.ClearEndDate {
		c.EndDate = generic.TimePoint{}
	}
	if u.BaseSalary != nil {
		c.BaseSalary = *u.BaseSalary
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	in := ContractInput{StartDate: c.StartDate, EndDate: c.EndDate, BaseSalary: c.BaseSalary}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.Store.SaveContract(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContractService) Get(ctx context.Context, id string) (*Contract, error) {
	c, err := s.Store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, generic.NotFound("contract", id)
	}
	return c, nil
}

// ListByEmployee returns contracts, highest version first.
func (s *ContractService) ListByEmployee(ctx context.Context, employeeID generic.EmployeeID) ([]Contract, error) {
	return s.Store.ListContracts(ctx, employeeID)
}

// Active returns the highest-version ACTIVE contract covering day, or nil.
func (s *ContractService) Active(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*Contract, error) {
	contracts, err := s.Store.ListContracts(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	var best *Contract
	for i := range contracts {
		c := contracts[i]
		if !c.CoversDay(day) {
			continue
		}
		if best == nil || c.Version > best.Version {
			best = &c
		}
	}
	return best, nil
}
