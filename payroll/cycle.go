package payroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/hr-engine/generic"
)

// DefaultCurrency is used when a cycle is created without one.
const DefaultCurrency = "VND"

type CycleInput struct {
	ID        string
	Name      string
	StartDate generic.TimePoint
	EndDate   generic.TimePoint
	Currency  string
	Notes     string
}

// CreateCycle stores a DRAFT cycle. The id defaults to the start month
// ("YYYY-MM"), the name to the id.
func (s *Service) CreateCycle(ctx context.Context, in CycleInput) (*Cycle, error) {
	p, err := generic.NewPeriod(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	c := Cycle{
		ID:        strings.TrimSpace(in.ID),
		Name:      strings.TrimSpace(in.Name),
		StartDate: p.Start,
		EndDate:   p.End,
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:    CycleDraft,
		Notes:     in.Notes,
	}
	if c.ID == "" {
		c.ID = p.Month()
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.Currency == "" {
		c.Currency = s.currency()
	}

	err = s.Store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.Store.GetCycle(ctx, c.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("payroll cycle %s already exists: %w", c.ID, generic.ErrConflict)
		}
		return s.Store.SaveCycle(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("payroll cycle created", "cycle_id", c.ID, "period", p.String(), "currency", c.Currency)
	return &c, nil
}

func (s *Service) currency() string {
	if s.DefaultCurrency != "" {
		return s.DefaultCurrency
	}
	return DefaultCurrency
}

func (s *Service) Cycles(ctx context.Context) ([]Cycle, error) {
	return s.Store.ListCycles(ctx)
}

func (s *Service) Cycle(ctx context.Context, id string) (*Cycle, error) {
	c, err := s.Store.GetCycle(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, generic.NotFound("payroll cycle", id)
	}
	return c, nil
}

// UpdateCycleStatus moves a cycle forward: DRAFT -> LOCKED -> PAID.
func (s *Service) UpdateCycleStatus(ctx context.Context, id string, next CycleStatus) (*Cycle, error) {
	if _, ok := cycleRank[next]; !ok {
		return nil, fmt.Errorf("unknown cycle status %q: %w", next, generic.ErrInvalidInput)
	}
	unlock := s.cycles.Lock(id)
	defer unlock()

	c, err := s.Cycle(ctx, id)
	if err != nil {
		return nil, err
	}
	if cycleRank[next] <= cycleRank[c.Status] {
		return nil, &generic.InvalidStateError{
			Entity:  "payroll cycle",
			ID:      id,
			Current: string(c.Status),
			Action:  "move to " + string(next),
		}
	}
	c.Status = next
	if err := s.Store.SaveCycle(ctx, *c); err != nil {
		return nil, err
	}
	s.Logger.Info("payroll cycle status changed", "cycle_id", id, "status", string(next))
	return c, nil
}
