/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger and directory types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-dashboard/directory"
	"github.com/warp/leave-dashboard/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LoginRequest is the login form.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
}

// EmployeeDTO is an employee's record plus leave usage.
type EmployeeDTO struct {
	EmployeeID           string            `json:"employee_id"`
	Name                 string            `json:"name"`
	DaysPresent          int               `json:"days_present"`
	AttendancePercentage decimal.Decimal   `json:"attendance_percentage"`
	AvgTaskRating        decimal.Decimal   `json:"avg_task_rating"`
	Insight              string            `json:"insight"`
	Used                 int               `json:"used"`
	Remaining            int               `json:"remaining"`
	Fields               map[string]string `json:"fields,omitempty"`
}

// ApplyLeaveRequest is the leave form.
type ApplyLeaveRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// ApplyLeaveResponse is returned after a submission.
type ApplyLeaveResponse struct {
	RequestID ledger.RequestID `json:"request_id"`
	Status    ledger.Status    `json:"status"`
}

// HistoryEntryDTO is one line of an employee's leave history.
type HistoryEntryDTO struct {
	RequestID ledger.RequestID `json:"request_id"`
	Date      time.Time        `json:"date"`
	Days      int              `json:"days"`
	Reason    string           `json:"reason"`
	Status    ledger.Status    `json:"status"`
}

// RequestDTO is a request in the admin queue.
type RequestDTO struct {
	ID           ledger.RequestID `json:"id"`
	EmployeeID   string           `json:"employee_id"`
	EmployeeName string           `json:"employee_name"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Days         int              `json:"days"`
	Reason       string           `json:"reason"`
	Status       ledger.Status    `json:"status"`
	DecidedAt    *time.Time       `json:"decided_at,omitempty"`
	DecidedBy    string           `json:"decided_by,omitempty"`
}

// DecisionResponse is returned after approve or reject. Warning is set when
// the decision stands but used leaves could not be saved.
type DecisionResponse struct {
	Request   RequestDTO `json:"request"`
	Remaining int        `json:"remaining"`
	Warning   string     `json:"warning,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(rec directory.Record, used, remaining int, withFields bool) EmployeeDTO {
	dto := EmployeeDTO{
		EmployeeID:           rec.EmployeeID,
		Name:                 rec.Name(),
		DaysPresent:          rec.DaysPresent(),
		AttendancePercentage: rec.AttendancePercentage,
		AvgTaskRating:        rec.AvgTaskRating,
		Insight:              rec.Insight(),
		Used:                 used,
		Remaining:            remaining,
	}
	if withFields {
		dto.Fields = rec.Fields()
	}
	return dto
}

func toHistoryDTOs(entries []ledger.HistoryEntry) []HistoryEntryDTO {
	out := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryDTO{
			RequestID: e.RequestID,
			Date:      e.Date,
			Days:      e.Days,
			Reason:    e.Reason,
			Status:    e.Status,
		}
	}
	return out
}

func toRequestDTO(r ledger.Request, name string) RequestDTO {
	return RequestDTO{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		EmployeeName: name,
		SubmittedAt:  r.SubmittedAt,
		Days:         r.Days,
		Reason:       r.Reason,
		Status:       r.Status,
		DecidedAt:    r.DecidedAt,
		DecidedBy:    r.DecidedBy,
	}
}
