/*
Package attendance turns raw daily punches into attendance records.

PURPOSE:
  For each (employee, date) the engine keeps exactly one Record holding
  the punches, a derived status and three time metrics (late, early-leave
  and overtime minutes). Records are created by imports, edited by quick
  edits, overwritten by leave approval and re-derived by recalculation.

KEY TYPES:
  Record:        One employee-day
  Status:        PRESENT, ABSENT, MISSING_PUNCH, HOLIDAY, LEAVE (+ manual WFH)
  WorkSchedule:  Shift definition the metrics are computed against
  Batch:         Result of one import with per-row errors

SEE ALSO:
  - rules.go: Ordered status resolution and metric computation
  - schedule.go: Schedule defaults and validation
  - importer.go: CSV/XLSX punch import
  - service.go: Use cases (import, quick edit, recalculation, leave marking)
*/
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPresent      Status = "PRESENT"
	StatusAbsent       Status = "ABSENT"
	StatusMissingPunch Status = "MISSING_PUNCH"
	StatusHoliday      Status = "HOLIDAY"
	StatusLeave        Status = "LEAVE"

	// StatusWFH is only ever set by hand. The resolver keeps it on days
	// with both punches present.
	StatusWFH Status = "WFH"
)

var knownStatuses = map[Status]bool{
	StatusPresent:      true,
	StatusAbsent:       true,
	StatusMissingPunch: true,
	StatusHoliday:      true,
	StatusLeave:        true,
	StatusWFH:          true,
}

// ParseStatus normalizes s and rejects unknown statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if st == "OK" {
		st = StatusPresent
	}
	if !knownStatuses[st] {
		return "", fmt.Errorf("unknown attendance status %q: %w", s, generic.ErrInvalidInput)
	}
	return st, nil
}

// =============================================================================
// RECORD
// =============================================================================

const (
	SourceManual     = "MANUAL"
	SourceImportCSV  = "IMPORT_CSV"
	SourceImportXLSX = "IMPORT_XLSX"
	SourceLeave      = "LEAVE_APPROVAL"
)

// Record is one employee-day. (EmployeeID, Date) is unique.
type Record struct {
	ID           string             `json:"id"`
	EmployeeID   generic.EmployeeID `json:"employeeId"`
	Date         generic.TimePoint  `json:"date"`
	CheckIn      *generic.ClockTime `json:"checkIn"`
	CheckOut     *generic.ClockTime `json:"checkOut"`
	Source       string             `json:"source,omitempty"`
	Status       Status             `json:"status"`
	LateMinutes  int                `json:"lateMinutes"`
	EarlyMinutes int                `json:"earlyMinutes"`
	OTMinutes    int                `json:"otMinutes"`
	Note         string             `json:"note,omitempty"`
	BatchID      string             `json:"batchId,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// zeroMetrics clears the three metrics.
func (r *Record) zeroMetrics() {
	r.LateMinutes, r.EarlyMinutes, r.OTMinutes = 0, 0, 0
}

func recordKey(employeeID generic.EmployeeID, day generic.TimePoint) string {
	return string(employeeID) + "|" + day.String()
}

// =============================================================================
// BATCH
// =============================================================================

// Batch records the outcome of one import. A partially failed batch is
// still a valid artifact.
type Batch struct {
	ID         string    `json:"id"`
	Month      string    `json:"month"`
	Filename   string    `json:"filename"`
	ImportedBy string    `json:"importedBy"`
	ImportedAt time.Time `json:"importedAt"`
	TotalRows  int       `json:"totalRows"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
}

// =============================================================================
// STORE
// =============================================================================

// RecordFilter selects records in Period, optionally for one employee.
type RecordFilter struct {
	EmployeeID generic.EmployeeID
	Period     generic.Period
}

// Store persists attendance data. Get methods return (nil, nil) when missing.
type Store interface {
	generic.Transactor

	GetRecord(ctx context.Context, id string) (*Record, error)
	GetRecordByDay(ctx context.Context, employeeID generic.EmployeeID, day generic.TimePoint) (*Record, error)
	// SaveRecord inserts or replaces by ID.
	SaveRecord(ctx context.Context, rec Record) error
	// ListRecords returns matches ordered by employee, then date.
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)

	SaveBatch(ctx context.Context, b Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)

	// GetSchedule returns the single stored schedule.
	GetSchedule(ctx context.Context) (*WorkSchedule, error)
	SaveSchedule(ctx context.Context, s WorkSchedule) error
}
