/*
handlers.go - HTTP API handlers for the HR engine

PURPOSE:
  Exposes attendance, leave, contracts and payroll via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the services
  built by the factory package.

ENDPOINTS:
  See server.go for the full route table.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Services: every use-case service on one backend
  - Logger: handler-level logging (request lines come from httplog)
  - validate: struct-tag validation of request bodies

REQUEST FLOW:
  1. Parse path, query and body
  2. Validate the body shape (validator tags)
  3. Call the service
  4. Serialize response
  5. Map errors to a status

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with the status chosen by the
  generic error classifiers:
  - 400: invalid input, malformed period, unknown leave type, no contract
  - 404: record or employee not found
  - 409: invalid state transition, duplicate, uniqueness conflict
  - 500: everything else

ACTOR:
  There is no authentication. The acting user (approver, importer, creator)
  is read from the X-Actor-ID header and defaults to "admin".

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/leave"
	"github.com/warp/hr-engine/payroll"
)

// ActorHeader names the acting user.
const ActorHeader = "X-Actor-ID"

const defaultActor = "admin"

// maxImportSize bounds an uploaded punch file.
const maxImportSize = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services *factory.Services
	Logger   *slog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the given services.
func NewHandler(svcs *factory.Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Services: svcs,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Services.Directory.Employees(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

// CreateEmployee creates a new employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.Services.Directory.CreateEmployee(r.Context(), generic.Employee{
		ID:         generic.EmployeeID(req.ID),
		Code:       req.Code,
		FullName:   req.FullName,
		Department: req.Department,
		Email:      req.Email,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Services.Directory.Employee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the holidays of ?year=, or all of them.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	holidays, err := h.Services.Directory.Holidays(r.Context(), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	holiday, err := req.toHoliday()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.Services.Directory.CreateHoliday(r.Context(), holiday)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	holiday, err := req.toHoliday()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.Services.Directory.UpdateHoliday(r.Context(), chi.URLParam(r, "id"), holiday)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Services.Directory.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// CompanyAttendance lists every record of ?month=, optionally one ?department=.
// GET /api/attendance
func (h *Handler) CompanyAttendance(w http.ResponseWriter, r *http.Request) {
	p, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.Services.Attendance.CompanyRecords(r.Context(), p, r.URL.Query().Get("department"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// EmployeeAttendance lists one employee's records of ?month=.
// GET /api/attendance/employees/{id}
func (h *Handler) EmployeeAttendance(w http.ResponseWriter, r *http.Request) {
	p, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.Services.Attendance.Records(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.Services.Attendance.Schedule(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSchedule replaces the schedule. Records are not re-derived until a
// recalculation runs.
// PUT /api/attendance/schedule
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Services.Attendance.UpdateSchedule(r.Context(), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// QuickEdit patches one record and re-applies the rules.
// PATCH /api/attendance/records/{id}
func (h *Handler) QuickEdit(w http.ResponseWriter, r *http.Request) {
	var req QuickEditRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Services.Attendance.QuickEdit(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Recalculate re-applies the rules to a month, optionally one employee.
// POST /api/attendance/recalc?month=&employeeId=
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	p, err := monthParam(month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	employeeID := r.URL.Query().Get("employeeId")
	n, err := h.Services.Attendance.Recalculate(r.Context(), p, generic.EmployeeID(employeeID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecalcResponse{Month: month, EmployeeID: employeeID, Updated: n})
}

// ImportAttendance loads a CSV or XLSX punch file from the multipart field
// "file". Row failures are reported in the batch, not as an HTTP error.
// POST /api/attendance/import?month=&importedBy=
func (h *Handler) ImportAttendance(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if _, err := monthParam(month); err != nil {
		h.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	importedBy := r.URL.Query().Get("importedBy")
	if importedBy == "" {
		importedBy = actor(r)
	}
	batch, err := h.Services.Attendance.Import(r.Context(), file, attendance.ImportMeta{
		Month:      month,
		Filename:   header.Filename,
		ImportedBy: importedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Services.Attendance.Batch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Services.Leave.Types(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.Services.Leave.CreateType(r.Context(), req.toLeaveType())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.Services.Leave.UpdateType(r.Context(), chi.URLParam(r, "id"), req.toUpdate())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	if err := h.Services.Leave.DeleteType(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetQuota returns the quota of ?year= (default: this year), creating it on
// first access.
// GET /api/leave/quota/{employeeId}
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", time.Now().Year())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.Services.Leave.QuotaOf(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeId")), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetQuotaHistory returns the ledger entries behind a quota.
// GET /api/leave/quota/{employeeId}/history
func (h *Handler) GetQuotaHistory(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", time.Now().Year())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.Services.Leave.QuotaHistory(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeId")), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SubmitLeaveRequest creates a PENDING request. Days are computed by the
// service.
// POST /api/leave/requests
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.Services.Leave.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListLeaveRequests filters by ?status=, ?month= (start date) and ?employeeId=.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := leave.RequestFilter{EmployeeID: generic.EmployeeID(q.Get("employeeId"))}
	if s := q.Get("status"); s != "" {
		st, err := leave.ParseStatus(s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.Status = st
	}
	if m := q.Get("month"); m != "" {
		p, err := generic.MonthPeriod(m)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.StartWithin = &p
	}
	requests, err := h.Services.Leave.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// ApproveLeaveRequest approves a pending request.
// PUT /api/leave/requests/{id}/approve
func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Services.Leave.Approve(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RejectLeaveRequest rejects a pending request with an optional ?note=.
// PUT /api/leave/requests/{id}/reject
func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Services.Leave.Reject(r.Context(), chi.URLParam(r, "id"), actor(r), r.URL.Query().Get("note"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Services.Contracts.ListByEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeId")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

// CreateContract stores the employee's next contract version.
// POST /api/contracts/by-employee/{employeeId}
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Services.Contracts.Create(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeId")), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Contracts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Services.Contracts.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.Services.Payroll.Components(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, components)
}

func (h *Handler) CreateCycle(w http.ResponseWriter, r *http.Request) {
	var req CreateCycleRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Services.Payroll.CreateCycle(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.Services.Payroll.Cycles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Payroll.Cycle(r.Context(), chi.URLParam(r, "cycleId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCycleStatus moves a cycle forward (DRAFT, LOCKED, PAID).
// PUT /api/payroll/cycles/{cycleId}/status
func (h *Handler) UpdateCycleStatus(w http.ResponseWriter, r *http.Request) {
	var req CycleStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Services.Payroll.UpdateCycleStatus(r.Context(), chi.URLParam(r, "cycleId"), payroll.CycleStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CalculatePayroll computes payslips for the cycle, or only ?employeeId=.
// POST /api/payroll/cycles/{cycleId}/calculate
func (h *Handler) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycleID := chi.URLParam(r, "cycleId")

	var payslips []payroll.Payslip
	if employeeID := r.URL.Query().Get("employeeId"); employeeID != "" {
		p, err := h.Services.Payroll.CalculateForEmployee(ctx, cycleID, generic.EmployeeID(employeeID))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		payslips = []payroll.Payslip{*p}
	} else {
		all, err := h.Services.Payroll.CalculateForAll(ctx, cycleID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		payslips = all
	}
	writeJSON(w, http.StatusOK, CalculateResponse{CycleID: cycleID, Count: len(payslips), Payslips: payslips})
}

func (h *Handler) ListPayslips(w http.ResponseWriter, r *http.Request) {
	payslips, err := h.Services.Payroll.Payslips(r.Context(), chi.URLParam(r, "cycleId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payslips)
}

func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	p, err := h.Services.Payroll.Payslip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetSummary aggregates an employee's attendance between ?start= and ?end=.
// GET /api/payroll/summary/{employeeId}
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	start, err := generic.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := generic.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.Services.Payroll.Summary(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeId")), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) AttendanceReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.Services.Attendance.MonthlyReport(r.Context(), q.Get("month"), q.Get("department"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) LeaveReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.Services.Leave.MonthlyReport(r.Context(), q.Get("month"), q.Get("department"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a service error to its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return defaultActor
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, generic.ErrInvalidInput)
	}
	return n, nil
}
