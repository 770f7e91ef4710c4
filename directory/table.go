/*
Package directory loads the employee table and exposes it to the leave ledger.

PURPOSE:
  The directory is the session's read-mostly table of employees: ids,
  attendance and performance metrics, display fields, and the cumulative
  used-leave count. The only column ever written back is Used_Leaves.

KEY CONCEPTS IN THIS FILE (table.go):
  - Table:  raw columns and cells, as read from / written to a Backend
  - Record: one normalized employee row
  - normalize: header trimming, default columns, numeric coercion

NORMALIZATION RULES:
  1. Column names are trimmed
  2. employee_id is required; without it the table cannot be loaded
  3. Used_Leaves is added (all zero) when absent
  4. Attendance_Percentage and Avg_Task_Rating that do not parse become 0
  5. employee_id cells are trimmed
  6. Short rows are padded, long rows truncated to the header width

SEE ALSO:
  - directory.go: the Directory and its used-leave contract
  - csv.go: flat-file backend
*/
package directory

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Column names of the employee table.
const (
	ColumnEmployeeID  = "employee_id"
	ColumnUsedLeaves  = "Used_Leaves"
	ColumnAttendance  = "Attendance_Percentage"
	ColumnTaskRating  = "Avg_Task_Rating"
	ColumnName        = "Name"
	ColumnDaysPresent = "Days_Present"
	ColumnInsight     = "Insight"
)

var (
	// ErrMissingEmployeeID is returned when the table has no employee_id column.
	ErrMissingEmployeeID = errors.New("table must contain column: employee_id")

	// ErrEmpty is returned by a backend that holds no table yet.
	ErrEmpty = errors.New("no employee table")

	// ErrUnknownEmployee is returned when setting used leaves for an id that
	// is not in the table.
	ErrUnknownEmployee = errors.New("unknown employee")
)

// =============================================================================
// TABLE
// =============================================================================

// Table is the employee table in its stored form.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one normalized employee row.
type Record struct {
	EmployeeID           string
	AttendancePercentage decimal.Decimal
	AvgTaskRating        decimal.Decimal
	UsedLeaves           int

	fields map[string]string
}

// Field returns the raw cell for column name.
func (r Record) Field(name string) string {
	return r.fields[name]
}

// Fields returns a copy of every cell keyed by column name.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Name returns the Name (or name) column, falling back to the employee id.
func (r Record) Name() string {
	for _, col := range []string{ColumnName, "name"} {
		if v := strings.TrimSpace(r.fields[col]); v != "" {
			return v
		}
	}
	return r.EmployeeID
}

// DaysPresent returns the Days_Present column as an integer, 0 when absent.
func (r Record) DaysPresent() int {
	return int(parseDecimal(r.fields[ColumnDaysPresent]).IntPart())
}

// Insight returns the Insight column, "-" when absent.
func (r Record) Insight() string {
	if v := strings.TrimSpace(r.fields[ColumnInsight]); v != "" {
		return v
	}
	return "-"
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func normalize(raw *Table) (*Table, error) {
	t := &Table{Columns: make([]string, len(raw.Columns))}
	for i, c := range raw.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}

	idCol := t.ColumnIndex(ColumnEmployeeID)
	if idCol < 0 {
		return nil, ErrMissingEmployeeID
	}

	usedCol := t.ColumnIndex(ColumnUsedLeaves)
	addUsed := usedCol < 0
	if addUsed {
		t.Columns = append(t.Columns, ColumnUsedLeaves)
		usedCol = len(t.Columns) - 1
	}
	attCol := t.ColumnIndex(ColumnAttendance)
	ratingCol := t.ColumnIndex(ColumnTaskRating)

	width := len(t.Columns)
	t.Rows = make([][]string, len(raw.Rows))
	for i, src := range raw.Rows {
		row := make([]string, width)
		copy(row, src)
		if addUsed {
			row[usedCol] = "0"
		}

		row[idCol] = strings.TrimSpace(row[idCol])
		for _, col := range []int{attCol, ratingCol} {
			if col < 0 {
				continue
			}
			if _, err := decimal.NewFromString(strings.TrimSpace(row[col])); err != nil {
				row[col] = "0"
			}
		}
		t.Rows[i] = row
	}
	return t, nil
}

func toRecord(t *Table, row []string) Record {
	rec := Record{fields: make(map[string]string, len(t.Columns))}
	for i, c := range t.Columns {
		rec.fields[c] = row[i]
	}
	rec.EmployeeID = rec.fields[ColumnEmployeeID]
	rec.AttendancePercentage = parseDecimal(rec.fields[ColumnAttendance])
	rec.AvgTaskRating = parseDecimal(rec.fields[ColumnTaskRating])
	rec.UsedLeaves = parseCount(rec.fields[ColumnUsedLeaves])
	return rec
}

// parseDecimal coerces a cell to a number, 0 when it does not parse.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseCount coerces a cell to a non-negative whole count.
func parseCount(s string) int {
	n := parseDecimal(s).IntPart()
	if n < 0 {
		return 0
	}
	return int(n)
}
