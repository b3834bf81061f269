package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/hr-engine/generic"
)

// ImportMeta describes an uploaded punch file.
type ImportMeta struct {
	Month      string
	Filename   string
	ImportedBy string
}

// Column order of an import row.
const (
	colEmployeeCode = iota
	colFullName
	colDate
	colCheckIn
	colCheckOut
	colSource
)

// importRow is one raw row with its 1-based position in the file.
type importRow struct {
	line int
	cols []string
}

// rowReader yields rows until io.EOF. A *generic.RowError marks a single
// unreadable row; any other error aborts the import.
type rowReader interface {
	next() (importRow, error)
}

func isXLSX(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// =============================================================================
// CSV
// =============================================================================

type csvRows struct {
	r *csv.Reader
}

func newCSVRows(src io.Reader) *csvRows {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return &csvRows{r: r}
}

func (c *csvRows) next() (importRow, error) {
	cols, err := c.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return importRow{}, &generic.RowError{Row: pe.StartLine, Err: pe.Err}
		}
		return importRow{}, err
	}
	line, _ := c.r.FieldPos(0)
	return importRow{line: line, cols: cols}, nil
}

// =============================================================================
// XLSX
// =============================================================================

type xlsxRows struct {
	rows [][]string
	pos  int
}

// newXLSXRows reads the first sheet of the workbook.
func newXLSXRows(src io.Reader) (*xlsxRows, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return &xlsxRows{rows: rows}, nil
}

func (x *xlsxRows) next() (importRow, error) {
	for x.pos < len(x.rows) {
		cols := x.rows[x.pos]
		x.pos++
		if len(strings.TrimSpace(strings.Join(cols, ""))) == 0 {
			continue
		}
		return importRow{line: x.pos, cols: cols}, nil
	}
	return importRow{}, io.EOF
}

// =============================================================================
// IMPORT
// =============================================================================

// Import reads punch rows from src and upserts one record per row. Row
// failures are collected in the returned batch; only an unreadable file
// is recorded as a FATAL entry. The batch is persisted before and after
// processing.
func (s *Service) Import(ctx context.Context, src io.Reader, meta ImportMeta) (*Batch, error) {
	if _, err := generic.MonthPeriod(meta.Month); err != nil {
		return nil, err
	}
	batch := Batch{
		ID:         generic.NewID(),
		Month:      meta.Month,
		Filename:   meta.Filename,
		ImportedBy: meta.ImportedBy,
		ImportedAt: s.now(),
		Errors:     []string{},
	}
	if err := s.Store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	sched, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	defaultSource := SourceImportCSV
	if isXLSX(meta.Filename) {
		defaultSource = SourceImportXLSX
	}

	var rows rowReader
	if isXLSX(meta.Filename) {
		rows, err = newXLSXRows(src)
	} else {
		rows = newCSVRows(src)
	}
	if err == nil {
		err = s.importRows(ctx, &batch, rows, sched, defaultSource)
	}
	if err != nil {
		batch.Errors = append(batch.Errors, "FATAL: "+err.Error())
		s.Logger.Error("attendance import aborted", "batch_id", batch.ID, "filename", meta.Filename, "error", err)
	}

	if err := s.Store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	s.Logger.Info("attendance import finished",
		"batch_id", batch.ID,
		"month", batch.Month,
		"total", batch.TotalRows,
		"success", batch.Success,
		"failed", batch.Failed)
	return &batch, nil
}

func (s *Service) importRows(ctx context.Context, batch *Batch, rows rowReader, sched WorkSchedule, defaultSource string) error {
	cals := s.newCalendars()
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rows.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var rowErr *generic.RowError
		if errors.As(err, &rowErr) {
			batch.TotalRows++
			batch.Failed++
			batch.Errors = append(batch.Errors, rowErr.Error())
			first = false
			continue
		}
		if err != nil {
			return err
		}

		if first {
			first = false
			if isHeader(row.cols) {
				continue
			}
		}

		batch.TotalRows++
		if err := s.importRow(ctx, row, batch.ID, sched, cals, defaultSource); err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, (&generic.RowError{Row: row.line, Err: err}).Error())
			continue
		}
		batch.Success++
	}
}

func isHeader(cols []string) bool {
	return strings.Contains(strings.ToLower(strings.Join(cols, ",")), "employeecode")
}

func (s *Service) importRow(ctx context.Context, row importRow, batchID string, sched WorkSchedule, cals *calendars, defaultSource string) error {
	cols := row.cols
	if len(cols) < 3 {
		return fmt.Errorf("expected at least 3 columns, got %d", len(cols))
	}
	code := strings.TrimSpace(cols[colEmployeeCode])
	emp, err := s.Employees.GetEmployeeByCode(ctx, code)
	if err != nil {
		return err
	}
	if emp == nil {
		return fmt.Errorf("%w: %s", generic.ErrUnknownEmployee, code)
	}

	day, err := parseCellDate(strings.TrimSpace(cols[colDate]))
	if err != nil {
		return err
	}
	in, err := parseCellClock(column(cols, colCheckIn))
	if err != nil {
		return err
	}
	out, err := parseCellClock(column(cols, colCheckOut))
	if err != nil {
		return err
	}
	source := column(cols, colSource)
	if source == "" {
		source = defaultSource
	}

	cal, err := cals.forDay(ctx, day)
	if err != nil {
		return err
	}
	_, err = s.recordPunch(ctx, Punch{
		EmployeeID: emp.ID,
		Date:       day,
		CheckIn:    in,
		CheckOut:   out,
		Source:     source,
		BatchID:    batchID,
	}, sched, cal)
	return err
}

func column(cols []string, i int) string {
	if i < len(cols) {
		return strings.TrimSpace(cols[i])
	}
	return ""
}

// parseCellDate accepts ISO dates and spreadsheet serial dates.
func parseCellDate(v string) (generic.TimePoint, error) {
	day, err := generic.ParseDate(v)
	if err == nil {
		return day, nil
	}
	if serial, ferr := strconv.ParseFloat(v, 64); ferr == nil && serial > 0 {
		t, terr := excelize.ExcelDateToTime(serial, false)
		if terr == nil {
			return generic.DateOf(t), nil
		}
	}
	return generic.TimePoint{}, err
}

// parseCellClock accepts HH:MM, HH:MM:SS and spreadsheet day fractions.
// A blank cell is a missing punch.
func parseCellClock(v string) (*generic.ClockTime, error) {
	if v == "" {
		return nil, nil
	}
	c, err := generic.ParseClockPtr(v)
	if err == nil {
		return c, nil
	}
	if frac, ferr := strconv.ParseFloat(v, 64); ferr == nil && frac >= 0 && frac < 1 {
		ct := generic.ClockTime(int(math.Round(frac * 86400)))
		return &ct, nil
	}
	return nil, err
}
