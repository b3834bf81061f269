/*
handlers_test.go - HTTP tests through the real router

Tests for:
- Middleware (heartbeat, validation, error mapping)
- Attendance import, listing and quick edit
- Leave submission, approval and quota
- Contracts, cycles and payroll calculation
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/store/memory"
)

// testContext mirrors testing.T.Context (Go 1.24): a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

type testAPI struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := factory.NewServices(memory.New(), factory.Options{}, logger)
	require.NoError(t, svcs.SeedDefaults(testContext(t)))
	h := NewHandler(svcs, logger)
	return &testAPI{t: t, handler: h, router: NewRouter(h, RouterOptions{})}
}

// do sends body as JSON (nil for none) and returns the recorder.
func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// object decodes a JSON object response.
func object(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func list(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createEmployee(code, name, department string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/employees", map[string]string{
		"code": code, "fullName": name, "department": department,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (a *testAPI) importCSV(month, filename, content string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attendance/import?month="+month, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(ActorHeader, "hr-ops")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// MIDDLEWARE AND ERRORS
// =============================================================================

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateEmployee_ValidationFailure(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/employees", map[string]string{"fullName": "No Code"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := object(t, rec)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Equal(t, map[string]any{"Code": "required"}, body["details"])
}

func TestCreateEmployee_DuplicateIsConflict(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")

	rec := api.do(http.MethodPost, "/api/employees", map[string]string{"code": "E001", "fullName": "Again"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetEmployee_NotFound(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/employees/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBody_IsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/holidays", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidays_CRUD(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/holidays", map[string]string{"date": "2025-09-02", "name": "National Day"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := object(t, rec)["id"].(string)

	rec = api.do(http.MethodPut, "/api/holidays/"+id, map[string]string{"date": "2025-09-01", "name": "National Day (observed)"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/holidays?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	holidays := list(t, rec)
	require.Len(t, holidays, 1)
	assert.Equal(t, "2025-09-01", holidays[0]["date"])

	rec = api.do(http.MethodDelete, "/api/holidays/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(http.MethodDelete, "/api/holidays/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestImport_PartialFailureAndDerivedMetrics(t *testing.T) {
	// GIVEN: one known employee
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")

	// WHEN: importing a file with a header, a good row and an unknown code
	rec := api.importCSV("2025-11", "november.csv",
		"employeeCode,fullName,date,checkIn,checkOut\n"+
			"E001,An Nguyen,2025-11-03,09:10,19:05\n"+
			"X999,Nobody,2025-11-03,09:00,18:00\n")

	// THEN: the batch reports one success and one row failure
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := object(t, rec)
	assert.EqualValues(t, 2, batch["totalRows"])
	assert.EqualValues(t, 1, batch["success"])
	assert.EqualValues(t, 1, batch["failed"])
	assert.Equal(t, "hr-ops", batch["importedBy"])
	errs := batch["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Row 3:")

	// AND: the stored record carries late 5 and OT 45
	rec = api.do(http.MethodGet, "/api/attendance/employees/E001?month=2025-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := list(t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "PRESENT", records[0]["status"])
	assert.EqualValues(t, 5, records[0]["lateMinutes"])
	assert.EqualValues(t, 0, records[0]["earlyMinutes"])
	assert.EqualValues(t, 45, records[0]["otMinutes"])

	// AND: the batch can be fetched again
	rec = api.do(http.MethodGet, "/api/attendance/batches/"+batch["id"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImport_RequiresMonth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.importCSV("", "x.csv", "E001,An,2025-11-03,09:00,18:00\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuickEdit(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")
	rec := api.importCSV("2025-11", "n.csv", "E001,An Nguyen,2025-11-04,09:00,18:00\n")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/attendance?month=2025-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := list(t, rec)
	require.Len(t, records, 1)
	id := records[0]["id"].(string)

	t.Run("unknown status is rejected", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/attendance/records/"+id, map[string]string{"status": "BOGUS"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("clearing check-out gives MISSING_PUNCH", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/attendance/records/"+id, map[string]string{"checkOut": ""})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := object(t, rec)
		assert.Equal(t, "MISSING_PUNCH", got["status"])
		assert.Nil(t, got["checkOut"])
		assert.EqualValues(t, 0, got["otMinutes"])
	})

	t.Run("WFH is kept with complete punches", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/attendance/records/"+id, map[string]string{"checkOut": "18:00", "status": "WFH"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "WFH", object(t, rec)["status"])
	})

	t.Run("unknown record", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/attendance/records/missing", map[string]string{"note": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSchedule_UpdateThenRecalculate(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")
	rec := api.importCSV("2025-11", "n.csv", "E001,An Nguyen,2025-11-04,09:20,18:00\n")
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: the grace period grows to 30 minutes and the month is recalculated
	rec = api.do(http.MethodPut, "/api/attendance/schedule", map[string]any{"graceLateMinutes": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = api.do(http.MethodPost, "/api/attendance/recalc?month=2025-11", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, object(t, rec)["updated"])

	// THEN: the 20 minute late arrival is within grace
	rec = api.do(http.MethodGet, "/api/attendance/employees/E001?month=2025-11", nil)
	records := list(t, rec)
	require.Len(t, records, 1)
	assert.EqualValues(t, 0, records[0]["lateMinutes"])
}

func TestSchedule_RejectsMalformedTime(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPut, "/api/attendance/schedule", map[string]any{"startTime": "9am"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeave_SubmitApproveAndQuota(t *testing.T) {
	// GIVEN: an employee with the default quota
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")

	// WHEN: requesting a half day on Monday and then through Wednesday
	rec := api.do(http.MethodPost, "/api/leave/requests", map[string]string{
		"employeeId":   "E001",
		"typeCode":     "AL",
		"startDate":    "2025-11-03",
		"endDate":      "2025-11-05",
		"startSession": "AM",
		"endSession":   "FULL",
	}, ActorHeader, "E001")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := object(t, rec)
	id := created["id"].(string)

	// THEN: 2.5 days are pending
	assert.Equal(t, "2.5", created["days"])
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, "E001", created["createdBy"])

	// WHEN: a manager approves
	rec = api.do(http.MethodPut, "/api/leave/requests/"+id+"/approve", nil, ActorHeader, "mgr-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := object(t, rec)
	assert.Equal(t, "APPROVED", approved["status"])
	assert.Equal(t, "mgr-1", approved["approverId"])

	// THEN: a second decision conflicts
	rec = api.do(http.MethodPut, "/api/leave/requests/"+id+"/reject?note=late", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: the quota is charged once
	rec = api.do(http.MethodGet, "/api/leave/quota/E001?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quota := object(t, rec)
	assert.Equal(t, "2.5", quota["taken"])
	assert.Equal(t, "9.5", quota["remaining"])

	rec = api.do(http.MethodGet, "/api/leave/quota/E001/history?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list(t, rec), 1)

	// AND: the leave days are marked on the attendance sheet
	rec = api.do(http.MethodGet, "/api/attendance/employees/E001?month=2025-11", nil)
	records := list(t, rec)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "LEAVE", r["status"])
	}
}

func TestLeave_SubmitValidation(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"bad session", map[string]string{"employeeId": "E001", "typeCode": "AL", "startDate": "2025-11-03", "endDate": "2025-11-03", "startSession": "NOON"}, http.StatusBadRequest},
		{"bad date", map[string]string{"employeeId": "E001", "typeCode": "AL", "startDate": "03/11/2025", "endDate": "2025-11-03"}, http.StatusBadRequest},
		{"unknown type", map[string]string{"employeeId": "E001", "typeCode": "ZZ", "startDate": "2025-11-03", "endDate": "2025-11-03"}, http.StatusBadRequest},
		{"end before start", map[string]string{"employeeId": "E001", "typeCode": "AL", "startDate": "2025-11-05", "endDate": "2025-11-03"}, http.StatusBadRequest},
		{"unknown employee", map[string]string{"employeeId": "E404", "typeCode": "AL", "startDate": "2025-11-03", "endDate": "2025-11-03"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/leave/requests", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestLeaveTypes_CodeConflict(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/leave/types", map[string]any{"code": "al", "name": "Another Annual"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/leave/types", map[string]any{"code": "WFH", "name": "Remote day", "paid": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/leave/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list(t, rec), 4)
}

// =============================================================================
// CONTRACTS AND PAYROLL
// =============================================================================

func TestPayroll_CycleLifecycle(t *testing.T) {
	// GIVEN: an employee on a 1,000,000 contract
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")
	rec := api.do(http.MethodPost, "/api/contracts/by-employee/E001", map[string]string{
		"startDate":  "2025-01-01",
		"baseSalary": "1000000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, object(t, rec)["version"])

	// AND: a November cycle
	rec = api.do(http.MethodPost, "/api/payroll/cycles", map[string]string{
		"startDate": "2025-11-01",
		"endDate":   "2025-11-30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cycle := object(t, rec)
	assert.Equal(t, "2025-11", cycle["id"])
	assert.Equal(t, "DRAFT", cycle["status"])

	// WHEN: calculating
	rec = api.do(http.MethodPost, "/api/payroll/cycles/2025-11/calculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	calc := object(t, rec)
	assert.EqualValues(t, 1, calc["count"])

	// THEN: the payslip is based on the full month
	rec = api.do(http.MethodGet, "/api/payroll/cycles/2025-11/payslips", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payslips := list(t, rec)
	require.Len(t, payslips, 1)
	summary := payslips[0]["summary"].(map[string]any)
	assert.EqualValues(t, 20, summary["workingDaysInCycle"])
	assert.EqualValues(t, 20, summary["workingDaysPaid"])

	rec = api.do(http.MethodGet, "/api/payroll/payslips/"+payslips[0]["id"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// WHEN: the cycle is locked
	rec = api.do(http.MethodPut, "/api/payroll/cycles/2025-11/status", map[string]string{"status": "LOCKED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: it can neither move back nor be recalculated
	rec = api.do(http.MethodPut, "/api/payroll/cycles/2025-11/status", map[string]string{"status": "DRAFT"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = api.do(http.MethodPost, "/api/payroll/cycles/2025-11/calculate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPayroll_CalculateWithoutContract(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")
	rec := api.do(http.MethodPost, "/api/payroll/cycles", map[string]string{"startDate": "2025-11-01", "endDate": "2025-11-30"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodPost, "/api/payroll/cycles/2025-11/calculate?employeeId=E001", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContracts_NewVersionExpiresPrevious(t *testing.T) {
	api := newTestAPI(t)
	api.createEmployee("E001", "An Nguyen", "ENG")

	rec := api.do(http.MethodPost, "/api/contracts/by-employee/E001", map[string]string{"startDate": "2025-01-01", "baseSalary": "1000000"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := object(t, rec)["id"].(string)
	rec = api.do(http.MethodPost, "/api/contracts/by-employee/E001", map[string]string{"startDate": "2025-07-01", "baseSalary": "1200000"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodGet, "/api/contracts/"+first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EXPIRED", object(t, rec)["status"])

	rec = api.do(http.MethodGet, "/api/contracts/by-employee/E001", nil)
	contracts := list(t, rec)
	require.Len(t, contracts, 2)
	assert.EqualValues(t, 2, contracts[0]["version"])
}

func TestSummary_RequiresValidRange(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/payroll/summary/E001?start=2025-11-30&end=2025-11-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
