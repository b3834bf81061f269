package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
)

func dayKey(employeeID generic.EmployeeID, day generic.TimePoint) string {
	return string(employeeID) + "|" + day.String()
}

func (m *Memory) GetRecord(_ context.Context, id string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.data.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Memory) GetRecordByDay(_ context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.data.recordDay[dayKey(employeeID, day)]
	if !ok {
		return nil, nil
	}
	r := m.data.records[id]
	return &r, nil
}

// SaveRecord upserts by id. A second record for the same employee-day is
// rejected with ErrConflict.
func (m *Memory) SaveRecord(ctx context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey(rec.EmployeeID, rec.Date)
	if id, ok := m.data.recordDay[k]; ok && id != rec.ID {
		return fmt.Errorf("attendance record for %s: %w", k, generic.ErrConflict)
	}
	remember(ctx, m.data.records, rec.ID)
	if prev, ok := m.data.records[rec.ID]; ok {
		prevKey := dayKey(prev.EmployeeID, prev.Date)
		remember(ctx, m.data.recordDay, prevKey)
		delete(m.data.recordDay, prevKey)
	}
	remember(ctx, m.data.recordDay, k)
	m.data.records[rec.ID] = rec
	m.data.recordDay[k] = rec.ID
	return nil
}

func (m *Memory) ListRecords(_ context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []attendance.Record{}
	for _, r := range m.data.records {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.Period.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *Memory) SaveBatch(ctx context.Context, b attendance.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remember(ctx, m.data.batches, b.ID)
	b.Errors = append([]string(nil), b.Errors...)
	m.data.batches[b.ID] = b
	return nil
}

func (m *Memory) GetBatch(_ context.Context, id string) (*attendance.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.data.batches[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *Memory) GetSchedule(_ context.Context) (*attendance.WorkSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data.schedule == nil {
		return nil, nil
	}
	s := *m.data.schedule
	return &s, nil
}

func (m *Memory) SaveSchedule(ctx context.Context, s attendance.WorkSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.data.schedule
	onRollback(ctx, func() { m.data.schedule = old })
	m.data.schedule = &s
	return nil
}
