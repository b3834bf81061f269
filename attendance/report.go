package attendance

import (
	"context"
	"sort"

	"github.com/warp/hr-engine/generic"
)

// ReportRow is one record flattened for reporting.
type ReportRow struct {
	EmployeeID   generic.EmployeeID `json:"employeeId"`
	EmployeeName string             `json:"employeeName"`
	Department   string             `json:"department"`
	Date         string             `json:"date"`
	Status       Status             `json:"status"`
	CheckIn      string             `json:"checkIn"`
	CheckOut     string             `json:"checkOut"`
	LateMinutes  int                `json:"lateMinutes"`
	EarlyMinutes int                `json:"earlyMinutes"`
	OTMinutes    int                `json:"otMinutes"`
}

type MonthlySummary struct {
	TotalLateMinutes  int `json:"totalLateMinutes"`
	TotalEarlyMinutes int `json:"totalEarlyMinutes"`
	TotalOTMinutes    int `json:"totalOtMinutes"`
	PresentDays       int `json:"totalPresentDays"`
	LeaveDays         int `json:"totalLeaveDays"`
	WFHDays           int `json:"totalWfhDays"`
	HolidayDays       int `json:"totalHolidayDays"`
	AbsentDays        int `json:"totalAbsentDays"`
	MissingPunchDays  int `json:"totalMissingPunchDays"`
}

type MonthlyReport struct {
	Month      string         `json:"month"`
	Department string         `json:"department,omitempty"`
	Rows       []ReportRow    `json:"rows"`
	Summary    MonthlySummary `json:"summary"`
}

// MonthlyReport lists every record of month ("YYYY-MM"), optionally for one
// department, sorted by department, employee name and date.
func (s *Service) MonthlyReport(ctx context.Context, month, department string) (*MonthlyReport, error) {
	p, err := generic.MonthPeriod(month)
	if err != nil {
		return nil, err
	}
	records, err := s.CompanyRecords(ctx, p, department)
	if err != nil {
		return nil, err
	}
	employees, err := generic.DepartmentFilter(ctx, s.Employees, "")
	if err != nil {
		return nil, err
	}

	report := &MonthlyReport{Month: month, Department: department, Rows: make([]ReportRow, 0, len(records))}
	sum := &report.Summary
	for _, r := range records {
		row := ReportRow{
			EmployeeID:   r.EmployeeID,
			EmployeeName: string(r.EmployeeID),
			Date:         r.Date.String(),
			Status:       r.Status,
			LateMinutes:  r.LateMinutes,
			EarlyMinutes: r.EarlyMinutes,
			OTMinutes:    r.OTMinutes,
		}
		if emp, ok := employees[r.EmployeeID]; ok {
			if emp.FullName != "" {
				row.EmployeeName = emp.FullName
			}
			row.Department = emp.Department
		}
		if r.CheckIn != nil {
			row.CheckIn = r.CheckIn.String()
		}
		if r.CheckOut != nil {
			row.CheckOut = r.CheckOut.String()
		}
		report.Rows = append(report.Rows, row)

		sum.TotalLateMinutes += r.LateMinutes
		sum.TotalEarlyMinutes += r.EarlyMinutes
		sum.TotalOTMinutes += r.OTMinutes
		switch r.Status {
		case StatusLeave:
			sum.LeaveDays++
		case StatusWFH:
			sum.WFHDays++
		case StatusHoliday:
			sum.HolidayDays++
		case StatusAbsent:
			sum.AbsentDays++
		case StatusMissingPunch:
			sum.MissingPunchDays++
		default:
			sum.PresentDays++
		}
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.Department != b.Department {
			return a.Department < b.Department
		}
		if a.EmployeeName != b.EmployeeName {
			return a.EmployeeName < b.EmployeeName
		}
		return a.Date < b.Date
	})
	return report, nil
}
