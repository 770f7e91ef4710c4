/*
Package report builds the admin dashboard figures and the balances PDF.

PURPOSE:
  Read-only presentation helpers over directory records and ledger views.
  Nothing here mutates state.

SEE ALSO:
  - pdf.go: balances report
  - api/handlers.go: admin endpoints
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-dashboard/directory"
)

// Summary is the admin KPI block.
type Summary struct {
	AverageAttendance decimal.Decimal `json:"avg_attendance"`
	AverageRating     decimal.Decimal `json:"avg_rating"`
	PendingRequests   int             `json:"pending_requests"`
	Employees         int             `json:"employees"`
}

// AttendancePoint is one bar of the attendance chart.
type AttendancePoint struct {
	EmployeeID           string          `json:"employee_id"`
	Name                 string          `json:"name"`
	AttendancePercentage decimal.Decimal `json:"attendance_percentage"`
}

// BalanceRow is one line of the balances report.
type BalanceRow struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

// Summarize averages attendance and rating over every row, rounded to two
// places. Averages are zero for an empty table.
func Summarize(records []directory.Record, pending int) Summary {
	s := Summary{
		AverageAttendance: decimal.Zero,
		AverageRating:     decimal.Zero,
		PendingRequests:   pending,
	}

	seen := make(map[string]struct{})
	for _, r := range records {
		s.AverageAttendance = s.AverageAttendance.Add(r.AttendancePercentage)
		s.AverageRating = s.AverageRating.Add(r.AvgTaskRating)
		if r.EmployeeID != "" {
			seen[r.EmployeeID] = struct{}{}
		}
	}
	s.Employees = len(seen)

	if n := len(records); n > 0 {
		count := decimal.NewFromInt(int64(n))
		s.AverageAttendance = s.AverageAttendance.Div(count).Round(2)
		s.AverageRating = s.AverageRating.Div(count).Round(2)
	}
	return s
}

// AttendanceSeries returns one point per row that has an employee id, in
// table order.
func AttendanceSeries(records []directory.Record) []AttendancePoint {
	out := make([]AttendancePoint, 0, len(records))
	for _, r := range records {
		if r.EmployeeID == "" {
			continue
		}
		out = append(out, AttendancePoint{
			EmployeeID:           r.EmployeeID,
			Name:                 r.Name(),
			AttendancePercentage: r.AttendancePercentage,
		})
	}
	return out
}

// SortBalances orders rows by employee id.
func SortBalances(rows []BalanceRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].EmployeeID < rows[j].EmployeeID })
}
