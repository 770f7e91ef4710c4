/*
ledger.go - Leave balances, request queue and histories

PURPOSE:
  The Ledger is constructed once per session and handed to every command
  handler. It seeds balances from the employee directory, accepts leave
  applications, and lets an administrator approve or reject them.

INVARIANTS:
  1. 0 <= balance <= quota for every known employee, at all times
  2. Every request has exactly one history entry with the same days and
     date; their statuses are updated together
  3. Request ids are unique and strictly increasing, starting at 1
  4. A request leaves pending exactly once and never returns to it
  5. Failed commands leave state untouched (except a persistence warning,
     which reports a write-back failure after the approval is committed)

WRITE-BACK:
  After each approval the ledger rewrites the directory's used-leave
  column as quota - remaining for every known employee and flushes it.
  Rejections do not write back: they never change a balance.

CONCURRENCY:
  One mutex guards the whole ledger. Approve performs a check-then-act on
  the balance, so Apply/Approve/Reject/WriteBack are serialized. Views take
  the same lock and return copies.

EXAMPLE:
  l := ledger.New(dir, ledger.WithQuota(5))
  if err := l.Initialize(ctx); err != nil { ... }

  id, err := l.Apply(ctx, "E001", 3, "family event", time.Now())
  err = l.Approve(ctx, id, ledger.Actor{EmployeeID: "admin", Role: ledger.RoleAdmin})
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Directory is the ledger's view of the employee directory: the list of
// known employees and their persisted used-leave counts.
type Directory interface {
	EmployeeIDs() []string
	GetUsedLeaves(employeeID string) (int, bool)
	SetUsedLeaves(employeeID string, used int) error
	Flush(ctx context.Context) error
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	mu sync.Mutex

	dir      Directory
	quota    int
	matching HistoryMatching
	logger   *slog.Logger
	now      func() time.Time

	initialized bool
	balances    map[string]int
	requests    []*Request
	byID        map[RequestID]*Request
	histories   map[string][]*HistoryEntry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithQuota sets the per-period leave quota. Values below 1 are ignored.
func WithQuota(quota int) Option {
	return func(l *Ledger) {
		if quota > 0 {
			l.quota = quota
		}
	}
}

// WithLogger sets the logger used for transitions and write-back warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithHistoryMatching selects how decisions locate the history entry to update.
func WithHistoryMatching(m HistoryMatching) Option {
	return func(l *Ledger) { l.matching = m }
}

// WithClock sets the clock used to stamp decisions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty ledger over dir. Call Initialize before use.
func New(dir Directory, opts ...Option) *Ledger {
	l := &Ledger{
		dir:       dir,
		quota:     DefaultMonthlyQuota,
		matching:  MatchByRequestID,
		logger:    slog.Default(),
		now:       time.Now,
		balances:  make(map[string]int),
		byID:      make(map[RequestID]*Request),
		histories: make(map[string][]*HistoryEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Quota returns the configured per-period quota.
func (l *Ledger) Quota() int {
	return l.quota
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// Initialize seeds a balance and an empty history for every employee in the
// directory. It runs once; later calls do not reset state.
func (l *Ledger) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	ids := l.dir.EmployeeIDs()
	for _, id := range ids {
		used, _ := l.dir.GetUsedLeaves(id)
		l.balances[id] = l.clamp(l.quota - used)
		l.histories[id] = nil
	}
	l.initialized = true

	l.logger.InfoContext(ctx, "leave ledger initialized",
		slog.Int("employees", len(ids)),
		slog.Int("quota", l.quota),
	)
	return nil
}

func (l *Ledger) clamp(remaining int) int {
	if remaining < 0 {
		return 0
	}
	if remaining > l.quota {
		return l.quota
	}
	return remaining
}

// =============================================================================
// COMMANDS
// =============================================================================

// Apply files a pending request for employeeID. The balance is neither
// checked nor deducted; that happens on approval.
func (l *Ledger) Apply(ctx context.Context, employeeID string, days int, reason string, now time.Time) (RequestID, error) {
	if days < 1 || days > l.quota {
		return 0, fmt.Errorf("days must be between 1 and %d, got %d: %w", l.quota, days, ErrInvalidArgument)
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > MaxReasonLength {
		return 0, fmt.Errorf("reason longer than %d characters: %w", MaxReasonLength, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[employeeID]; !ok {
		return 0, fmt.Errorf("employee %q: %w", employeeID, ErrNotFound)
	}

	req := &Request{
		ID:          l.nextID(),
		EmployeeID:  employeeID,
		SubmittedAt: now,
		Days:        days,
		Reason:      reason,
		Status:      StatusPending,
	}
	l.requests = append(l.requests, req)
	l.byID[req.ID] = req
	l.histories[employeeID] = append(l.histories[employeeID], &HistoryEntry{
		RequestID: req.ID,
		Date:      now,
		Days:      days,
		Reason:    reason,
		Status:    StatusPending,
	})

	l.logger.InfoContext(ctx, "leave requested",
		slog.Int("request_id", int(req.ID)),
		slog.String("employee_id", employeeID),
		slog.Int("days", days),
	)
	return req.ID, nil
}

func (l *Ledger) nextID() RequestID {
	var last RequestID
	for _, r := range l.requests {
		if r.ID > last {
			last = r.ID
		}
	}
	return last + 1
}

// Approve deducts the request's days from the employee's balance, marks the
// request and its history entry approved, and writes used leaves back to the
// directory. A write-back failure is returned as *PersistenceWarning; the
// approval stands.
func (l *Ledger) Approve(ctx context.Context, id RequestID, actor Actor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, err := l.pendingLocked(id, actor)
	if err != nil {
		return err
	}

	balance := l.balances[req.EmployeeID]
	if balance < req.Days {
		return &InsufficientBalanceError{
			RequestID:  id,
			EmployeeID: req.EmployeeID,
			Available:  balance,
			Requested:  req.Days,
		}
	}

	l.balances[req.EmployeeID] = balance - req.Days
	l.decideLocked(req, StatusApproved, actor)

	l.logger.InfoContext(ctx, "leave approved",
		slog.Int("request_id", int(id)),
		slog.String("employee_id", req.EmployeeID),
		slog.Int("remaining", l.balances[req.EmployeeID]),
	)

	if err := l.writeBackLocked(ctx); err != nil {
		l.logger.WarnContext(ctx, "could not save used leaves",
			slog.Int("request_id", int(id)),
			slog.Any("error", err),
		)
		return &PersistenceWarning{RequestID: id, Err: err}
	}
	return nil
}

// Reject marks the request and its history entry rejected. Balances are not
// touched and nothing is written back.
func (l *Ledger) Reject(ctx context.Context, id RequestID, actor Actor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, err := l.pendingLocked(id, actor)
	if err != nil {
		return err
	}
	l.decideLocked(req, StatusRejected, actor)

	l.logger.InfoContext(ctx, "leave rejected",
		slog.Int("request_id", int(id)),
		slog.String("employee_id", req.EmployeeID),
	)
	return nil
}

// WriteBack rewrites used leaves (quota - remaining) for every known employee
// and flushes the directory. Approve calls it; callers may call it again to
// retry after a warning.
func (l *Ledger) WriteBack(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeBackLocked(ctx); err != nil {
		return &PersistenceWarning{Err: err}
	}
	return nil
}

func (l *Ledger) pendingLocked(id RequestID, actor Actor) (*Request, error) {
	if !actor.CanReview() {
		return nil, fmt.Errorf("%q with role %q cannot review requests: %w", actor.EmployeeID, actor.Role, ErrPermissionDenied)
	}
	req, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("request %d is %s: %w", id, req.Status, ErrInvalidState)
	}
	return req, nil
}

func (l *Ledger) decideLocked(req *Request, status Status, actor Actor) {
	at := l.now()
	req.Status = status
	req.DecidedAt = &at
	req.DecidedBy = actor.EmployeeID

	if entry := l.matchHistoryLocked(req); entry != nil {
		entry.Status = status
	}
}

func (l *Ledger) matchHistoryLocked(req *Request) *HistoryEntry {
	for _, entry := range l.histories[req.EmployeeID] {
		switch l.matching {
		case MatchByDaysLegacy:
			if entry.Days == req.Days && entry.Status == StatusPending {
				return entry
			}
		default:
			if entry.RequestID == req.ID {
				return entry
			}
		}
	}
	return nil
}

func (l *Ledger) writeBackLocked(ctx context.Context) error {
	for id, remaining := range l.balances {
		if err := l.dir.SetUsedLeaves(id, l.quota-remaining); err != nil {
			return fmt.Errorf("set used leaves for %s: %w", id, err)
		}
	}
	if err := l.dir.Flush(ctx); err != nil {
		return fmt.Errorf("flush directory: %w", err)
	}
	return nil
}

// =============================================================================
// VIEWS (read-only, copies)
// =============================================================================

// BalanceOf returns the remaining days for employeeID, or the full quota for
// an id the ledger has not seen.
func (l *Ledger) BalanceOf(employeeID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining, ok := l.balances[employeeID]; ok {
		return remaining
	}
	return l.quota
}

// UsedOf returns quota - BalanceOf(employeeID).
func (l *Ledger) UsedOf(employeeID string) int {
	return l.quota - l.BalanceOf(employeeID)
}

// Balances returns remaining days for every known employee.
func (l *Ledger) Balances() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]int, len(l.balances))
	for id, remaining := range l.balances {
		out[id] = remaining
	}
	return out
}

// PendingRequests returns pending requests in submission order.
func (l *Ledger) PendingRequests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Request
	for _, r := range l.requests {
		if r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	return out
}

// Requests returns every request in submission order.
func (l *Ledger) Requests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Request, len(l.requests))
	for i, r := range l.requests {
		out[i] = *r
	}
	return out
}

// Request returns the request with the given id.
func (l *Ledger) Request(id RequestID) (Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.byID[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}

// History returns employeeID's entries in insertion order.
func (l *Ledger) History(employeeID string) []HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.histories[employeeID]
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}
