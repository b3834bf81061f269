package leave

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

type ReportRow struct {
	RequestID    string             `json:"requestId"`
	EmployeeID   generic.EmployeeID `json:"employeeId"`
	EmployeeName string             `json:"employeeName"`
	Department   string             `json:"department"`
	Type         string             `json:"type"`
	FromDate     string             `json:"fromDate"`
	ToDate       string             `json:"toDate"`
	Days         decimal.Decimal    `json:"days"`
	Status       Status             `json:"status"`
}

type MonthlyReport struct {
	Month             string          `json:"month"`
	Department        string          `json:"department,omitempty"`
	Rows              []ReportRow     `json:"rows"`
	TotalDaysApproved decimal.Decimal `json:"totalDaysApproved"`
	TotalDaysPending  decimal.Decimal `json:"totalDaysPending"`
}

// MonthlyReport lists requests starting in month ("YYYY-MM").
func (s *Service) MonthlyReport(ctx context.Context, month, department string) (*MonthlyReport, error) {
	p, err := generic.MonthPeriod(month)
	if err != nil {
		return nil, err
	}
	reqs, err := s.Store.ListRequests(ctx, RequestFilter{StartWithin: &p})
	if err != nil {
		return nil, err
	}
	all, err := generic.DepartmentFilter(ctx, s.Employees, "")
	if err != nil {
		return nil, err
	}
	var members map[generic.EmployeeID]generic.Employee
	if department != "" {
		if members, err = generic.DepartmentFilter(ctx, s.Employees, department); err != nil {
			return nil, err
		}
	}

	report := &MonthlyReport{
		Month:             month,
		Department:        department,
		Rows:              []ReportRow{},
		TotalDaysApproved: decimal.Zero,
		TotalDaysPending:  decimal.Zero,
	}
	for _, r := range reqs {
		if members != nil {
			if _, ok := members[r.EmployeeID]; !ok {
				continue
			}
		}
		row := ReportRow{
			RequestID:    r.ID,
			EmployeeID:   r.EmployeeID,
			EmployeeName: string(r.EmployeeID),
			Type:         r.TypeCode,
			FromDate:     r.StartDate.String(),
			ToDate:       r.EndDate.String(),
			Days:         r.Days,
			Status:       r.Status,
		}
		if emp, ok := all[r.EmployeeID]; ok {
			if emp.FullName != "" {
				row.EmployeeName = emp.FullName
			}
			row.Department = emp.Department
		}
		report.Rows = append(report.Rows, row)

		switch r.Status {
		case StatusApproved:
			report.TotalDaysApproved = report.TotalDaysApproved.Add(r.Days)
		case StatusPending:
			report.TotalDaysPending = report.TotalDaysPending.Add(r.Days)
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
		return a.FromDate < b.FromDate
	})
	return report, nil
}
