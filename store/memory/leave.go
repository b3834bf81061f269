package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
)

func (m *Memory) GetLeaveType(_ context.Context, id string) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.data.leaveTypes[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *Memory) GetLeaveTypeByCode(_ context.Context, code string) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.data.leaveTypes {
		if strings.EqualFold(t.Code, code) {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveType, 0, len(m.data.leaveTypes))
	for _, t := range m.data.leaveTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveLeaveType(ctx context.Context, t leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.data.leaveTypes {
		if other.ID != t.ID && strings.EqualFold(other.Code, t.Code) {
			return fmt.Errorf("leave type code %s: %w", t.Code, generic.ErrConflict)
		}
	}
	remember(ctx, m.data.leaveTypes, t.ID)
	m.data.leaveTypes[t.ID] = t
	return nil
}

func (m *Memory) DeleteLeaveType(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.leaveTypes[id]; !ok {
		return generic.ErrNotFound
	}
	remember(ctx, m.data.leaveTypes, id)
	delete(m.data.leaveTypes, id)
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.data.requests[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Memory) SaveRequest(ctx context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.requests, r.ID)
	m.data.requests[r.ID] = r
	return nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []leave.Request{}
	for _, r := range m.data.requests {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func quotaKey(employeeID generic.EmployeeID, year int) string {
	return fmt.Sprintf("%s|%d", employeeID, year)
}

func (m *Memory) GetQuota(_ context.Context, employeeID generic.EmployeeID, year int) (*leave.Quota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.data.quotas[quotaKey(employeeID, year)]; ok {
		return &q, nil
	}
	return nil, nil
}

func (m *Memory) SaveQuota(ctx context.Context, q leave.Quota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := quotaKey(q.EmployeeID, q.Year)
	remember(ctx, m.data.quotas, k)
	m.data.quotas[k] = q
	return nil
}

// AppendQuotaEntry adds an entry. Append-only.
func (m *Memory) AppendQuotaEntry(ctx context.Context, e leave.QuotaEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != "" && m.data.entryKeys[e.IdempotencyKey] {
		return fmt.Errorf("quota entry %s: %w", e.IdempotencyKey, generic.ErrDuplicateEntry)
	}
	m.data.quotaEntries = append(m.data.quotaEntries, e)
	if e.IdempotencyKey != "" {
		remember(ctx, m.data.entryKeys, e.IdempotencyKey)
		m.data.entryKeys[e.IdempotencyKey] = true
	}
	onRollback(ctx, func() { m.removeQuotaEntry(e.ID) })
	return nil
}

// removeQuotaEntry drops the entry with id. Callers hold mu.
func (m *Memory) removeQuotaEntry(id string) {
	for i, e := range m.data.quotaEntries {
		if e.ID == id {
			m.data.quotaEntries = append(m.data.quotaEntries[:i:i], m.data.quotaEntries[i+1:]...)
			return
		}
	}
}

func (m *Memory) ListQuotaEntries(_ context.Context, employeeID generic.EmployeeID, year int) ([]leave.QuotaEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []leave.QuotaEntry{}
	for _, e := range m.data.quotaEntries {
		if e.EmployeeID == employeeID && e.Year == year {
			out = append(out, e)
		}
	}
	return out, nil
}
