/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the backend with realistic
	data for testing and demos. Each scenario is a factory dataset, so every
	record goes through the same services and rules as live traffic.

AVAILABLE SCENARIOS:

	standard-month:  Three employees, one holiday, a month of punches,
	                 one approved unpaid leave and a DRAFT cycle
	overtime-heavy:  One engineer working late every other weekday, plus a
	                 Saturday and a holiday (recorded as HOLIDAY, no OT)

HOW SCENARIOS WORK:
 1. Reset the backend (clear all data)
 2. Seed reference data (leave types, components, schedule)
 3. Parse the scenario's JSON skeleton
 4. Generate the month of punches
 5. Load the dataset through the services

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard-month"}

NOTE:

	Scenarios reset the backend. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - factory/dataset.go: Dataset JSON schema and loader
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-month",
		Name:        "Standard Month",
		Description: "Three employees, a holiday, late arrivals, a missing punch and two days of unpaid leave in November 2025",
	},
	{
		ID:          "overtime-heavy",
		Name:        "Overtime Heavy",
		Description: "Weekday overtime for one engineer in September 2025, plus work on a Saturday and a holiday",
	},
}

// scenarioMonth is the month every scenario populates.
var scenarioMonth = map[string]string{
	"standard-month": "2025-11",
	"overtime-heavy": "2025-09",
}

const standardMonthJSON = `{
  "employees": [
    {"id": "E001", "code": "E001", "full_name": "An Nguyen", "department": "ENG", "email": "an@example.com"},
    {"id": "E002", "code": "E002", "full_name": "Binh Tran", "department": "ENG", "email": "binh@example.com"},
    {"id": "E003", "code": "E003", "full_name": "Chi Le", "department": "OPS", "email": "chi@example.com"}
  ],
  "holidays": [
    {"date": "2025-11-20", "name": "Company Day"}
  ],
  "contracts": [
    {"employee_id": "E001", "start_date": "2024-01-01", "base_salary": "20000000"},
    {"employee_id": "E002", "start_date": "2025-03-01", "base_salary": "15000000"},
    {"employee_id": "E003", "type": "PART_TIME", "start_date": "2025-01-01", "base_salary": "10000000"}
  ],
  "leave": [
    {"employee_id": "E003", "type": "UL", "start_date": "2025-11-10", "end_date": "2025-11-11",
     "reason": "Family matters", "decision": "approve"},
    {"employee_id": "E001", "type": "AL", "start_date": "2025-11-27", "end_date": "2025-11-27",
     "start_session": "PM", "end_session": "PM", "reason": "Appointment"}
  ],
  "cycles": [
    {"id": "2025-11", "name": "November 2025", "start_date": "2025-11-01", "end_date": "2025-11-30"}
  ]
}`

const overtimeHeavyJSON = `{
  "employees": [
    {"id": "E010", "code": "E010", "full_name": "Dung Pham", "department": "ENG"}
  ],
  "holidays": [
    {"date": "2025-09-02", "name": "National Day"}
  ],
  "contracts": [
    {"employee_id": "E010", "start_date": "2025-01-01", "base_salary": "22000000"}
  ],
  "cycles": [
    {"id": "2025-09", "start_date": "2025-09-01", "end_date": "2025-09-30"}
  ]
}`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the backend and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	ds, err := scenarioDataset(req.ScenarioID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.Services.LoadDataset(ctx, *ds); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data and re-seeds the reference data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Services.Backend.Reset(ctx); err != nil {
		return err
	}
	return h.Services.SeedDefaults(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioDataset builds the full dataset of a scenario.
func scenarioDataset(id string) (*factory.DatasetJSON, error) {
	var (
		raw   string
		punch punchPlan
	)
	switch id {
	case "standard-month":
		raw, punch = standardMonthJSON, standardMonthPunches
	case "overtime-heavy":
		raw, punch = overtimeHeavyJSON, overtimeHeavyPunches
	default:
		return nil, fmt.Errorf("unknown scenario %q: %w", id, generic.ErrInvalidInput)
	}
	ds, err := factory.ParseDataset(raw)
	if err != nil {
		return nil, err
	}
	p, err := generic.MonthPeriod(scenarioMonth[id])
	if err != nil {
		return nil, err
	}
	for _, e := range ds.Employees {
		for _, day := range p.Days() {
			if in, out, ok := punch(e.ID, day); ok {
				ds.Punches = append(ds.Punches, factory.PunchJSON{
					EmployeeID: e.ID,
					Date:       day.String(),
					CheckIn:    in,
					CheckOut:   out,
					Source:     "DEMO",
				})
			}
		}
	}
	return ds, nil
}

// punchPlan returns the punches of one employee-day, or ok=false for none.
type punchPlan func(employeeID string, day generic.TimePoint) (in, out string, ok bool)

func standardMonthPunches(employeeID string, day generic.TimePoint) (string, string, bool) {
	if day.IsWeekend() || day.String() == "2025-11-20" {
		return "", "", false
	}
	switch employeeID {
	case "E001":
		return "08:55", "18:05", true
	case "E002":
		// Late every Monday, long day every Thursday.
		switch day.Weekday() {
		case time.Monday:
			return "09:10", "18:00", true
		case time.Thursday:
			return "08:58", "19:05", true
		}
		return "09:00", "18:00", true
	case "E003":
		switch day.String() {
		case "2025-11-10", "2025-11-11":
			return "", "", false
		case "2025-11-18":
			return "09:02", "", true
		case "2025-11-25":
			return "", "", false
		}
		return "08:50", "17:55", true
	}
	return "", "", false
}

func overtimeHeavyPunches(_ string, day generic.TimePoint) (string, string, bool) {
	switch {
	case day.String() == "2025-09-02":
		return "09:00", "14:00", true
	case day.String() == "2025-09-13":
		return "09:00", "15:00", true
	case day.IsWeekend():
		return "", "", false
	case day.Day()%2 == 0:
		return "09:00", "21:00", true
	default:
		return "09:00", "18:30", true
	}
}
