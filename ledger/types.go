/*
Package ledger owns the leave workflow state for one running session.

PURPOSE:
  Tracks three derived views keyed by employee id / request id and keeps
  them consistent under employee and administrator actions:
  - Balances:  remaining leave days per employee
  - Requests:  the request queue, in submission order
  - Histories: one ordered trail per employee mirroring request status

KEY CONCEPTS IN THIS FILE (types.go):
  - RequestID: monotonically assigned integer, starting at 1
  - Status:    pending -> approved | rejected (terminal)
  - Request:   a leave request as seen by the administrator
  - HistoryEntry: the employee-facing mirror of a request
  - Actor:     the current user (employee id + role)

LIFECYCLE:
  ┌─────────┐  Approve  ┌──────────┐
  │ pending │──────────▶│ approved │  balance -= days, write-back
  └─────────┘           └──────────┘
       │       Reject   ┌──────────┐
       └───────────────▶│ rejected │  no balance change
                        └──────────┘

SEE ALSO:
  - ledger.go: state and transitions
  - errors.go: error kinds
*/
package ledger

import "time"

// DefaultMonthlyQuota is the number of leave days every employee starts a
// period with.
const DefaultMonthlyQuota = 5

// MaxReasonLength caps the free-text reason attached to a request.
const MaxReasonLength = 250

// =============================================================================
// REQUEST
// =============================================================================

type RequestID int

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is a leave request in the administrator's queue.
type Request struct {
	ID          RequestID
	EmployeeID  string
	SubmittedAt time.Time
	Days        int
	Reason      string
	Status      Status

	// Set once, when the request leaves pending.
	DecidedAt *time.Time
	DecidedBy string
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryEntry mirrors a Request in the submitting employee's trail.
// Date and Days are copied from the request; Status follows it.
type HistoryEntry struct {
	RequestID RequestID
	Date      time.Time
	Days      int
	Reason    string
	Status    Status
}

// HistoryMatching selects how a decision finds the history entry to update.
type HistoryMatching int

const (
	// MatchByRequestID updates the entry created for the decided request.
	MatchByRequestID HistoryMatching = iota

	// MatchByDaysLegacy updates the first pending entry with the same number
	// of days. With two pending requests of equal length this can flip the
	// entry of a different request than the one decided.
	MatchByDaysLegacy
)

// =============================================================================
// ACTOR
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Actor identifies who issues a command. It is produced by the session layer;
// the ledger only consults its capabilities.
type Actor struct {
	EmployeeID string
	Role       Role
}

// CanReview reports whether the actor may approve or reject requests.
func (a Actor) CanReview() bool {
	return a.Role == RoleAdmin
}
