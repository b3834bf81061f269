// Package memory provides an in-memory backend implementing every store
// contract of the engine. It is used by tests and by the demo server.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
}

// state holds every table.
type state struct {
	employees map[generic.EmployeeID]generic.Employee
	holidays  map[string]generic.Holiday

	records   map[string]attendance.Record
	recordDay map[string]string
	batches   map[string]attendance.Batch
	schedule  *attendance.WorkSchedule

	leaveTypes   map[string]leave.LeaveType
	requests     map[string]leave.Request
	quotas       map[string]leave.Quota
	quotaEntries []leave.QuotaEntry
	entryKeys    map[string]bool

	contracts  map[string]payroll.Contract
	components map[string]payroll.Component
	cycles     map[string]payroll.Cycle
	payslips   map[string]payroll.Payslip
}

func newState() *state {
	return &state{
		employees:  make(map[generic.EmployeeID]generic.Employee),
		holidays:   make(map[string]generic.Holiday),
		records:    make(map[string]attendance.Record),
		recordDay:  make(map[string]string),
		batches:    make(map[string]attendance.Batch),
		leaveTypes: make(map[string]leave.LeaveType),
		requests:   make(map[string]leave.Request),
		quotas:     make(map[string]leave.Quota),
		entryKeys:  make(map[string]bool),
		contracts:  make(map[string]payroll.Contract),
		components: make(map[string]payroll.Component),
		cycles:     make(map[string]payroll.Cycle),
		payslips:   make(map[string]payroll.Payslip),
	}
}

func New() *Memory {
	return &Memory{data: newState()}
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newState()
	return nil
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txKey struct{}

// memTx is the undo log of one transaction. Rollback replays it backwards,
// so only the transaction's own writes are reverted.
type memTx struct {
	undo []func()
}

func txFrom(ctx context.Context) *memTx {
	t, _ := ctx.Value(txKey{}).(*memTx)
	return t
}

// onRollback registers fn to run if the transaction in ctx fails. Outside a
// transaction it does nothing. Callers hold mu.
func onRollback(ctx context.Context, fn func()) {
	if t := txFrom(ctx); t != nil {
		t.undo = append(t.undo, fn)
	}
}

// remember records the current value of table[k] so a rollback restores it,
// or deletes the key if it did not exist. Callers hold mu.
func remember[K comparable, V any](ctx context.Context, table map[K]V, k K) {
	old, existed := table[k]
	onRollback(ctx, func() {
		if existed {
			table[k] = old
		} else {
			delete(table, k)
		}
	})
}

// WithTx runs fn as one transaction. Transactions are serialized with each
// other; on error the writes fn made are undone. Nested calls join the
// outer transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	t := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		m.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.data.employees[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) GetEmployeeByCode(_ context.Context, code string) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.data.employees {
		if strings.EqualFold(e.Code, code) {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.Employee, 0, len(m.data.employees))
	for _, e := range m.data.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveEmployee upserts by id. Codes are unique ignoring case.
func (m *Memory) SaveEmployee(ctx context.Context, e generic.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.data.employees {
		if other.ID != e.ID && strings.EqualFold(other.Code, e.Code) {
			return fmt.Errorf("employee code %s: %w", e.Code, generic.ErrConflict)
		}
	}
	remember(ctx, m.data.employees, e.ID)
	m.data.employees[e.ID] = e
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) HolidaysBetween(_ context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := generic.Period{Start: from, End: to}
	var out []generic.Holiday
	for _, h := range m.data.holidays {
		if p.Contains(h.Date) {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out, nil
}

func (m *Memory) ListHolidays(_ context.Context, year int) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []generic.Holiday{}
	for _, h := range m.data.holidays {
		if year == 0 || h.Date.Year() == year {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out, nil
}

func sortHolidays(hs []generic.Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}

func (m *Memory) GetHoliday(_ context.Context, id string) (*generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.data.holidays[id]; ok {
		return &h, nil
	}
	return nil, nil
}

// SaveHoliday upserts by id. Dates are unique.
func (m *Memory) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.data.holidays {
		if other.ID != h.ID && other.Date.Equal(h.Date) {
			return fmt.Errorf("holiday on %s: %w", h.Date, generic.ErrConflict)
		}
	}
	remember(ctx, m.data.holidays, h.ID)
	m.data.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.holidays[id]; !ok {
		return generic.NotFound("holiday", id)
	}
	remember(ctx, m.data.holidays, id)
	delete(m.data.holidays, id)
	return nil
}
