package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/hr-engine/generic"
)

// Directory maintains employees and holidays.
type Directory struct {
	Backend Backend
}

func NewDirectory(b Backend) *Directory {
	return &Directory{Backend: b}
}

// CreateEmployee stores e. The id defaults to the code.
func (d *Directory) CreateEmployee(ctx context.Context, e generic.Employee) (*generic.Employee, error) {
	e.Code = strings.TrimSpace(e.Code)
	if e.Code == "" || strings.TrimSpace(e.FullName) == "" {
		return nil, fmt.Errorf("employee code and full name are required: %w", generic.ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = generic.EmployeeID(e.Code)
	}
	existing, err := d.Backend.GetEmployee(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("employee %s already exists: %w", e.ID, generic.ErrConflict)
	}
	if err := d.Backend.SaveEmployee(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *Directory) Employee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	e, err := d.Backend.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, generic.NotFound("employee", string(id))
	}
	return e, nil
}

func (d *Directory) Employees(ctx context.Context) ([]generic.Employee, error) {
	return d.Backend.ListEmployees(ctx)
}

// Holidays lists a year's holidays; year 0 lists all.
func (d *Directory) Holidays(ctx context.Context, year int) ([]generic.Holiday, error) {
	return d.Backend.ListHolidays(ctx, year)
}

func (d *Directory) CreateHoliday(ctx context.Context, h generic.Holiday) (*generic.Holiday, error) {
	if h.Date.IsZero() {
		return nil, fmt.Errorf("holiday date is required: %w", generic.ErrInvalidInput)
	}
	h.ID = generic.NewID()
	if err := d.Backend.SaveHoliday(ctx, h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHoliday replaces the date, name and region of an existing holiday.
func (d *Directory) UpdateHoliday(ctx context.Context, id string, h generic.Holiday) (*generic.Holiday, error) {
	existing, err := d.Backend.GetHoliday(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, generic.NotFound("holiday", id)
	}
	if !h.Date.IsZero() {
		existing.Date = h.Date
	}
	if h.Name != "" {
		existing.Name = h.Name
	}
	existing.Region = h.Region
	if err := d.Backend.SaveHoliday(ctx, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (d *Directory) DeleteHoliday(ctx context.Context, id string) error {
	return d.Backend.DeleteHoliday(ctx, id)
}
