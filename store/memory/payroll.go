package memory

import (
	"context"
	"sort"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/payroll"
)

func (m *Memory) GetContract(_ context.Context, id string) (*payroll.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.data.contracts[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) SaveContract(ctx context.Context, c payroll.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.contracts, c.ID)
	m.data.contracts[c.ID] = c
	return nil
}

func (m *Memory) ListContracts(_ context.Context, employeeID generic.EmployeeID) ([]payroll.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []payroll.Contract{}
	for _, c := range m.data.contracts {
		if c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *Memory) ListComponents(_ context.Context) ([]payroll.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.Component, 0, len(m.data.components))
	for _, c := range m.data.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveComponent(ctx context.Context, c payroll.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.components, c.ID)
	m.data.components[c.ID] = c
	return nil
}

func (m *Memory) GetCycle(_ context.Context, id string) (*payroll.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.data.cycles[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) SaveCycle(ctx context.Context, c payroll.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.cycles, c.ID)
	m.data.cycles[c.ID] = c
	return nil
}

func (m *Memory) ListCycles(_ context.Context) ([]payroll.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.Cycle, 0, len(m.data.cycles))
	for _, c := range m.data.cycles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *Memory) GetPayslip(_ context.Context, id string) (*payroll.Payslip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.data.payslips[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) GetPayslipFor(_ context.Context, cycleID string, employeeID generic.EmployeeID) (*payroll.Payslip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.data.payslips {
		if p.CycleID == cycleID && p.EmployeeID == employeeID {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) SavePayslip(ctx context.Context, p payroll.Payslip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.payslips, p.ID)
	p.Items = append([]payroll.Item(nil), p.Items...)
	m.data.payslips[p.ID] = p
	return nil
}

func (m *Memory) ListPayslips(_ context.Context, cycleID string) ([]payroll.Payslip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []payroll.Payslip{}
	for _, p := range m.data.payslips {
		if p.CycleID == cycleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}
