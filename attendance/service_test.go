package attendance_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store *memory.Memory
	svc   *attendance.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, e := range []generic.Employee{
		{ID: "E001", Code: "E001", FullName: "An Nguyen", Department: "ENG"},
		{ID: "E002", Code: "E002", FullName: "Binh Tran", Department: "OPS"},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: mustDate("2025-11-20"), Name: "Company Day"}))

	svc := attendance.NewService(store, store, store, nil)
	svc.Now = func() time.Time { return time.Date(2025, time.November, 28, 9, 0, 0, 0, time.UTC) }
	return &fixture{store: store, svc: svc}
}

func mustDate(s string) generic.TimePoint {
	d, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustClock(s string) *generic.ClockTime {
	c, err := generic.ParseClockPtr(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (f *fixture) record(t *testing.T, employeeID, date string) *attendance.Record {
	t.Helper()
	rec, err := f.store.GetRecordByDay(context.Background(), generic.EmployeeID(employeeID), mustDate(date))
	require.NoError(t, err)
	require.NotNil(t, rec, "no record for %s on %s", employeeID, date)
	return rec
}

func november() generic.Period {
	p, _ := generic.MonthPeriod("2025-11")
	return p
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_CSV(t *testing.T) {
	// GIVEN: a file with a header, a valid row, a missing punch, an unknown
	// employee and a malformed time
	f := newFixture(t)
	file := strings.Join([]string{
		"EmployeeCode,FullName,Date,CheckIn,CheckOut",
		"E001,An Nguyen,2025-11-03,09:10,19:05",
		"E002,Binh Tran,2025-11-03,09:00,",
		"X999,Nobody,2025-11-03,09:00,18:00",
		"E001,An Nguyen,2025-11-04,9am,18:00",
	}, "\n")

	// WHEN: importing it
	batch, err := f.svc.Import(context.Background(), strings.NewReader(file), attendance.ImportMeta{
		Month: "2025-11", Filename: "punches.csv", ImportedBy: "hr",
	})

	// THEN: good rows land and bad rows are reported by line
	require.NoError(t, err)
	assert.Equal(t, 4, batch.TotalRows)
	assert.Equal(t, 2, batch.Success)
	assert.Equal(t, 2, batch.Failed)
	require.Len(t, batch.Errors, 2)
	assert.True(t, strings.HasPrefix(batch.Errors[0], "Row 4:"), batch.Errors[0])
	assert.True(t, strings.HasPrefix(batch.Errors[1], "Row 5:"), batch.Errors[1])

	rec := f.record(t, "E001", "2025-11-03")
	assert.Equal(t, attendance.StatusPresent, rec.Status)
	assert.Equal(t, 5, rec.LateMinutes)
	assert.Equal(t, 45, rec.OTMinutes)
	assert.Equal(t, attendance.SourceImportCSV, rec.Source)
	assert.Equal(t, batch.ID, rec.BatchID)

	assert.Equal(t, attendance.StatusMissingPunch, f.record(t, "E002", "2025-11-03").Status)

	// AND: the batch is persisted
	stored, err := f.svc.Batch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Errors, stored.Errors)
}

func TestImport_ReimportReplacesPunches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := attendance.ImportMeta{Month: "2025-11", Filename: "a.csv"}

	_, err := f.svc.Import(ctx, strings.NewReader("E001,An,2025-11-03,09:30,18:00\n"), meta)
	require.NoError(t, err)
	first := f.record(t, "E001", "2025-11-03")

	_, err = f.svc.Import(ctx, strings.NewReader("E001,An,2025-11-03,09:00,18:00\n"), meta)
	require.NoError(t, err)
	second := f.record(t, "E001", "2025-11-03")

	assert.Equal(t, first.ID, second.ID, "one record per employee-day")
	assert.Zero(t, second.LateMinutes)
}

func TestImport_HolidayRow(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Import(context.Background(), strings.NewReader("E001,An,2025-11-20,09:00,21:00\n"),
		attendance.ImportMeta{Month: "2025-11", Filename: "h.csv"})
	require.NoError(t, err)

	rec := f.record(t, "E001", "2025-11-20")
	assert.Equal(t, attendance.StatusHoliday, rec.Status)
	assert.Zero(t, rec.OTMinutes)
}

func TestImport_XLSX(t *testing.T) {
	// GIVEN: a workbook with a header and a serial-date row
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"EmployeeCode", "FullName", "Date", "CheckIn", "CheckOut"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"E001", "An Nguyen", "2025-11-05", "08:59", "17:50"}))
	// 45967 is 2025-11-06.
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"E002", "Binh Tran", "45967", "09:00", "18:00"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	// WHEN: importing it
	f := newFixture(t)
	batch, err := f.svc.Import(context.Background(), bytes.NewReader(buf.Bytes()), attendance.ImportMeta{
		Month: "2025-11", Filename: "Punches.XLSX",
	})

	// THEN: both rows are stored with the XLSX source
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Success, batch.Errors)
	rec := f.record(t, "E001", "2025-11-05")
	assert.Equal(t, 10, rec.EarlyMinutes)
	assert.Equal(t, attendance.SourceImportXLSX, rec.Source)
	assert.Equal(t, attendance.StatusPresent, f.record(t, "E002", "2025-11-06").Status)
}

func TestImport_UnreadableWorkbookIsFatal(t *testing.T) {
	f := newFixture(t)
	batch, err := f.svc.Import(context.Background(), strings.NewReader("not a zip"), attendance.ImportMeta{
		Month: "2025-11", Filename: "broken.xlsx",
	})

	require.NoError(t, err)
	assert.Zero(t, batch.TotalRows)
	require.Len(t, batch.Errors, 1)
	assert.True(t, strings.HasPrefix(batch.Errors[0], "FATAL: "), batch.Errors[0])
}

func TestImport_RejectsBadMonth(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Import(context.Background(), strings.NewReader(""), attendance.ImportMeta{Month: "11-2025"})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// QUICK EDIT AND RECALCULATION
// =============================================================================

func TestQuickEdit_RederivesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.svc.RecordPunch(ctx, attendance.Punch{EmployeeID: "E001", Date: mustDate("2025-11-03"), CheckIn: mustClock("09:00")})
	require.NoError(t, err)
	require.Equal(t, attendance.StatusMissingPunch, rec.Status)

	out := "19:05"
	note := "forgot to punch out"
	got, err := f.svc.QuickEdit(ctx, rec.ID, attendance.Patch{CheckOut: &out, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, got.Status)
	assert.Equal(t, 45, got.OTMinutes)
	assert.Equal(t, note, got.Note)

	bad := "25:99"
	_, err = f.svc.QuickEdit(ctx, rec.ID, attendance.Patch{CheckIn: &bad})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.svc.QuickEdit(ctx, "missing", attendance.Patch{Note: &note})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestRecalculate_AppliesNewSchedule(t *testing.T) {
	// GIVEN: two employees with late arrivals under the default schedule
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []generic.EmployeeID{"E001", "E002"} {
		_, err := f.svc.RecordPunch(ctx, attendance.Punch{EmployeeID: id, Date: mustDate("2025-11-04"), CheckIn: mustClock("09:20"), CheckOut: mustClock("18:00")})
		require.NoError(t, err)
	}
	require.Equal(t, 15, f.record(t, "E001", "2025-11-04").LateMinutes)

	// WHEN: grace is widened and only E001 is recalculated
	grace := 30
	_, err := f.svc.UpdateSchedule(ctx, attendance.ScheduleUpdate{GraceLateMinutes: &grace})
	require.NoError(t, err)
	n, err := f.svc.Recalculate(ctx, november(), "E001")

	// THEN: only E001 changes
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.record(t, "E001", "2025-11-04").LateMinutes)
	assert.Equal(t, 15, f.record(t, "E002", "2025-11-04").LateMinutes)

	// AND: a company-wide pass reaches everyone
	n, err = f.svc.Recalculate(ctx, november(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, f.record(t, "E002", "2025-11-04").LateMinutes)
}

func TestRecalculate_PicksUpNewHoliday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordPunch(ctx, attendance.Punch{EmployeeID: "E001", Date: mustDate("2025-11-21"), CheckIn: mustClock("09:00"), CheckOut: mustClock("20:00")})
	require.NoError(t, err)
	require.Positive(t, f.record(t, "E001", "2025-11-21").OTMinutes)

	require.NoError(t, f.store.SaveHoliday(ctx, generic.Holiday{ID: "h2", Date: mustDate("2025-11-21"), Name: "Bridge Day"}))
	_, err = f.svc.Recalculate(ctx, november(), "")
	require.NoError(t, err)

	rec := f.record(t, "E001", "2025-11-21")
	assert.Equal(t, attendance.StatusHoliday, rec.Status)
	assert.Zero(t, rec.OTMinutes)
	assert.NotNil(t, rec.CheckIn, "punches are kept")
}

func TestRecalculate_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Recalculate(context.Background(), generic.Period{Start: mustDate("2025-11-30"), End: mustDate("2025-11-01")}, "")
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// LEAVE MARKING
// =============================================================================

func TestMarkLeave_WorkingDaysOnly(t *testing.T) {
	// GIVEN: a punch on Wednesday the 19th
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordPunch(ctx, attendance.Punch{EmployeeID: "E001", Date: mustDate("2025-11-19"), CheckIn: mustClock("09:00"), CheckOut: mustClock("19:00")})
	require.NoError(t, err)

	// WHEN: leave covers Wednesday to Sunday, with the holiday on Thursday
	p := generic.Period{Start: mustDate("2025-11-19"), End: mustDate("2025-11-23")}
	n, err := f.svc.MarkLeave(ctx, "E001", p, "Leave AL")

	// THEN: Wednesday and Friday are marked
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	wed := f.record(t, "E001", "2025-11-19")
	assert.Equal(t, attendance.StatusLeave, wed.Status)
	assert.Nil(t, wed.CheckIn)
	assert.Zero(t, wed.OTMinutes)
	assert.Equal(t, attendance.SourceLeave, wed.Source)
	assert.Equal(t, attendance.StatusLeave, f.record(t, "E001", "2025-11-21").Status)

	records, err := f.svc.Records(ctx, "E001", november())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// =============================================================================
// REPORT
// =============================================================================

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Import(ctx, strings.NewReader(strings.Join([]string{
		"E001,An,2025-11-03,09:10,19:05",
		"E001,An,2025-11-04,,",
		"E002,Binh,2025-11-03,09:00,17:30",
	}, "\n")), attendance.ImportMeta{Month: "2025-11", Filename: "r.csv"})
	require.NoError(t, err)

	report, err := f.svc.MonthlyReport(ctx, "2025-11", "")
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "ENG", report.Rows[0].Department)
	assert.Equal(t, "OPS", report.Rows[2].Department)
	assert.Equal(t, 5, report.Summary.TotalLateMinutes)
	assert.Equal(t, 30, report.Summary.TotalEarlyMinutes)
	assert.Equal(t, 45, report.Summary.TotalOTMinutes)
	assert.Equal(t, 2, report.Summary.PresentDays)
	assert.Equal(t, 1, report.Summary.AbsentDays)

	ops, err := f.svc.MonthlyReport(ctx, "2025-11", "OPS")
	require.NoError(t, err)
	assert.Len(t, ops.Rows, 1)
}
