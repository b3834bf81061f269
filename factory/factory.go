/*
Package factory wires the engine together.

PURPOSE:
  Builds every domain service on top of one Backend, selects the backend
  implementation from configuration, seeds the boot-time reference data
  and turns JSON datasets into stored entities.

COMPOSITION:
  Backend ──▶ attendance.Service ──▶ leave.Service (marks LEAVE days)
          │                     └──▶ payroll.Summarizer (reads records)
          ├──▶ payroll.ContractService
          └──▶ payroll.Service

USAGE:
  backend, err := factory.OpenBackend(ctx, "sqlite", "hr.db")
  svcs := factory.NewServices(backend, factory.Options{}, logger)
  if err := svcs.SeedDefaults(ctx); err != nil { ... }

SEE ALSO:
  - dataset.go: JSON datasets for demos and the CLI
  - directory.go: Employee and holiday maintenance
*/
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
	"github.com/warp/hr-engine/store/memory"
	"github.com/warp/hr-engine/store/postgres"
	"github.com/warp/hr-engine/store/sqlite"
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the full persistence contract every store implementation meets.
type Backend interface {
	attendance.Store
	leave.Store
	payroll.Store
	generic.EmployeeDirectory
	generic.HolidaySource

	SaveEmployee(ctx context.Context, e generic.Employee) error
	ListHolidays(ctx context.Context, year int) ([]generic.Holiday, error)
	GetHoliday(ctx context.Context, id string) (*generic.Holiday, error)
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error

	// Reset deletes all data. Development only.
	Reset(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*memory.Memory)(nil)
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
)

// Backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// OpenBackend opens the backend for driver. dsn is a file path for sqlite
// and a connection URL for postgres; it is ignored for memory.
func OpenBackend(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return sqlite.New(dsn)
	case DriverPostgres:
		return postgres.New(ctx, dsn)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q: %w", driver, generic.ErrInvalidInput)
	}
}

// =============================================================================
// SERVICES
// =============================================================================

type Options struct {
	// DefaultEntitlement of a lazily created leave quota. Zero means 12.
	DefaultEntitlement decimal.Decimal
	// DefaultCurrency of a new payroll cycle. Empty means VND.
	DefaultCurrency string
	// RecalcWorkers bounds attendance recalculation. Zero means the default.
	RecalcWorkers int
}

// Services holds every use-case service built on one backend.
type Services struct {
	Backend    Backend
	Directory  *Directory
	Attendance *attendance.Service
	Leave      *leave.Service
	Contracts  *payroll.ContractService
	Payroll    *payroll.Service
	Logger     *slog.Logger
}

func NewServices(backend Backend, opts Options, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	att := attendance.NewService(backend, backend, backend, logger.With("component", "attendance"))
	if opts.RecalcWorkers > 0 {
		att.Workers = opts.RecalcWorkers
	}

	lv := leave.NewService(backend, backend, backend, att, logger.With("component", "leave"))
	if opts.DefaultEntitlement.IsPositive() {
		lv.DefaultEntitlement = opts.DefaultEntitlement
	}

	contracts := payroll.NewContractService(backend, backend, logger.With("component", "contracts"))
	summarizer := &payroll.Summarizer{
		Contracts:  contracts,
		Attendance: att,
		Leave:      lv,
		Holidays:   backend,
	}
	pay := payroll.NewService(backend, backend, contracts, summarizer, logger.With("component", "payroll"))
	if opts.DefaultCurrency != "" {
		pay.DefaultCurrency = opts.DefaultCurrency
	}

	return &Services{
		Backend:    backend,
		Directory:  NewDirectory(backend),
		Attendance: att,
		Leave:      lv,
		Contracts:  contracts,
		Payroll:    pay,
		Logger:     logger,
	}
}

// SeedDefaults stores the reference data the engine needs: the default
// leave types, the component catalog and the default work schedule.
// Existing entries are left alone.
func (s *Services) SeedDefaults(ctx context.Context) error {
	if err := s.Leave.SeedTypes(ctx); err != nil {
		return fmt.Errorf("seed leave types: %w", err)
	}
	if err := s.Payroll.SeedComponents(ctx); err != nil {
		return fmt.Errorf("seed components: %w", err)
	}
	if _, err := s.Attendance.Schedule(ctx); err != nil {
		return fmt.Errorf("seed schedule: %w", err)
	}
	s.Logger.Info("reference data seeded")
	return nil
}
