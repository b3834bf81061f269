package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// QUOTA LEDGER - Append-only history of quota changes
// =============================================================================

// EntryKind says why a quota changed.
type EntryKind string

const (
	EntryApproval EntryKind = "APPROVAL"
	EntryGrant    EntryKind = "GRANT"
)

// QuotaEntry is one immutable change to an employee's year quota.
//
// INVARIANTS:
//   - Append-only: entries are never updated or deleted.
//   - IdempotencyKey is unique; a second append with the same key fails.
type QuotaEntry struct {
	ID         string             `json:"id"`
	EmployeeID generic.EmployeeID `json:"employeeId"`
	Year       int                `json:"year"`
	Kind       EntryKind          `json:"kind"`
	// Delta is added to taken. Approvals are positive.
	Delta          decimal.Decimal `json:"delta"`
	RequestID      string          `json:"requestId,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Actor          string          `json:"actor,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func approvalKey(requestID string) string { return "approve:" + requestID }

// Ledger records quota changes through a Store.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Append writes e. Fails with generic.ErrDuplicateEntry if the key exists.
func (l *Ledger) Append(ctx context.Context, e QuotaEntry) error {
	if e.ID == "" {
		e.ID = generic.NewID()
	}
	return l.Store.AppendQuotaEntry(ctx, e)
}

// Entries returns the history of one quota, oldest first.
func (l *Ledger) Entries(ctx context.Context, employeeID generic.EmployeeID, year int) ([]QuotaEntry, error) {
	return l.Store.ListQuotaEntries(ctx, employeeID, year)
}

// Taken replays the ledger. It equals Quota.Taken when nothing bypassed it.
func (l *Ledger) Taken(ctx context.Context, employeeID generic.EmployeeID, year int) (decimal.Decimal, error) {
	entries, err := l.Entries(ctx, employeeID, year)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Delta)
	}
	return total, nil
}
