/*
handlers.go - HTTP API handlers for the leave dashboard

PURPOSE:
  Exposes the leave ledger and the employee directory via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the ledger.

ENDPOINTS:
  Public:
    POST   /api/login                         Exchange credentials for a token
    GET    /healthz                           Liveness

  Employee (own data):
    GET    /api/me                            Record, used and remaining leave
    POST   /api/me/leave                      Submit a leave request
    GET    /api/me/history                    Leave history, newest first

  Admin:
    GET    /api/admin/summary                 KPI block
    GET    /api/admin/employees               Every record
    GET    /api/admin/attendance              Attendance chart series
    GET    /api/admin/requests/pending        Pending queue
    POST   /api/admin/requests/{id}/approve   Approve
    POST   /api/admin/requests/{id}/reject    Reject
    GET    /api/admin/balances                Balances sorted by employee id
    GET    /api/admin/reports/balances.pdf    Balances PDF

REQUEST FLOW:
  1. Resolve the actor from the verified token
  2. Parse HTTP request
  3. Call the ledger (which validates)
  4. Serialize response
  5. Map ledger errors to status codes

ERROR HANDLING:
  - 400: ErrInvalidArgument, malformed body
  - 401: bad credentials or token
  - 403: ErrPermissionDenied
  - 404: ErrNotFound
  - 409: ErrInvalidState, ErrInsufficientBalance
  - 200 + "warning": PersistenceWarning (decision stands)
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-dashboard/auth"
	"github.com/warp/leave-dashboard/directory"
	"github.com/warp/leave-dashboard/ledger"
	"github.com/warp/leave-dashboard/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger      *ledger.Ledger
	Directory   *directory.Directory
	Credentials *auth.Credentials
	Tokens      *auth.TokenService
	Logger      *slog.Logger

	now func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(l *ledger.Ledger, dir *directory.Directory, creds *auth.Credentials, tokens *auth.TokenService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Ledger:      l,
		Directory:   dir,
		Credentials: creds,
		Tokens:      tokens,
		Logger:      logger,
		now:         time.Now,
	}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login exchanges credentials for a session token.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, err := h.Credentials.Authenticate(req.UserID, req.Password)
	if err != nil {
		h.Logger.InfoContext(r.Context(), "login failed", slog.String("user_id", req.UserID))
		writeError(w, http.StatusUnauthorized, "Invalid user id or password", nil)
		return
	}

	session, err := h.Tokens.Issue(actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		UserID:    actor.EmployeeID,
		Role:      string(actor.Role),
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetMe returns the caller's record and leave usage.
// GET /api/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	rec, ok := h.Directory.Record(actor.EmployeeID)
	if !ok {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(rec,
		h.Ledger.UsedOf(actor.EmployeeID),
		h.Ledger.BalanceOf(actor.EmployeeID),
		false,
	))
}

// ApplyLeave submits a leave request for the caller.
// POST /api/me/leave
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req ApplyLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Ledger.Apply(r.Context(), actor.EmployeeID, req.Days, req.Reason, h.now())
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ApplyLeaveResponse{RequestID: id, Status: ledger.StatusPending})
}

// GetHistory returns the caller's leave history, newest first.
// GET /api/me/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	dtos := toHistoryDTOs(h.Ledger.History(actor.EmployeeID))
	sort.SliceStable(dtos, func(i, j int) bool {
		if !dtos[i].Date.Equal(dtos[j].Date) {
			return dtos[i].Date.After(dtos[j].Date)
		}
		return dtos[i].RequestID > dtos[j].RequestID
	})

	writeJSON(w, http.StatusOK, map[string]any{"history": dtos})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetSummary returns the admin KPI block.
// GET /api/admin/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, report.Summarize(h.Directory.Records(), len(h.Ledger.PendingRequests())))
}

// ListEmployees returns every record with its leave usage.
// GET /api/admin/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	records := h.Directory.Records()

	dtos := make([]EmployeeDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toEmployeeDTO(rec,
			h.Ledger.UsedOf(rec.EmployeeID),
			h.Ledger.BalanceOf(rec.EmployeeID),
			true,
		))
	}

	writeJSON(w, http.StatusOK, map[string]any{"employees": dtos})
}

// GetAttendance returns the attendance chart series.
// GET /api/admin/attendance
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"attendance": report.AttendanceSeries(h.Directory.Records())})
}

// ListPendingRequests returns the pending queue in submission order.
// GET /api/admin/requests/pending
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	pending := h.Ledger.PendingRequests()

	dtos := make([]RequestDTO, 0, len(pending))
	for _, req := range pending {
		dtos = append(dtos, toRequestDTO(req, h.employeeName(req.EmployeeID)))
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": dtos})
}

// ApproveRequest approves a pending request.
// POST /api/admin/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	h.writeDecision(w, r, id, h.Ledger.Approve(r.Context(), id, actorFrom(r)))
}

// RejectRequest rejects a pending request.
// POST /api/admin/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	h.writeDecision(w, r, id, h.Ledger.Reject(r.Context(), id, actorFrom(r)))
}

// ListBalances returns every known employee's balance sorted by id.
// GET /api/admin/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"quota":    h.Ledger.Quota(),
		"balances": h.balanceRows(),
	})
}

// BalancesReport renders the balances as a PDF.
// GET /api/admin/reports/balances.pdf
func (h *Handler) BalancesReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-balances.pdf"`)
	if err := report.BalancesPDF(w, h.balanceRows(), h.Ledger.Quota(), h.now()); err != nil {
		h.Logger.ErrorContext(r.Context(), "balances report failed", slog.Any("error", err))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeDecision(w http.ResponseWriter, r *http.Request, id ledger.RequestID, err error) {
	var warning string
	if err != nil {
		if !ledger.IsWarning(err) {
			h.writeLedgerError(w, r, err)
			return
		}
		warning = err.Error()
	}

	req, _ := h.Ledger.Request(id)
	writeJSON(w, http.StatusOK, DecisionResponse{
		Request:   toRequestDTO(req, h.employeeName(req.EmployeeID)),
		Remaining: h.Ledger.BalanceOf(req.EmployeeID),
		Warning:   warning,
	})
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Permission denied", err)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		var ib *ledger.InsufficientBalanceError
		if errors.As(err, &ib) {
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error:   "Insufficient balance",
				Code:    "insufficient_balance",
				Details: map[string]int{"available": ib.Available, "requested": ib.Requested},
			})
			return
		}
		writeError(w, http.StatusConflict, "Insufficient balance", err)
	case errors.Is(err, ledger.ErrInvalidState):
		writeError(w, http.StatusConflict, "Request is not pending", err)
	default:
		h.Logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func (h *Handler) balanceRows() []report.BalanceRow {
	balances := h.Ledger.Balances()
	rows := make([]report.BalanceRow, 0, len(balances))
	for id, remaining := range balances {
		rows = append(rows, report.BalanceRow{
			EmployeeID: id,
			Name:       h.employeeName(id),
			Used:       h.Ledger.Quota() - remaining,
			Remaining:  remaining,
		})
	}
	report.SortBalances(rows)
	return rows
}

func (h *Handler) employeeName(id string) string {
	if rec, ok := h.Directory.Record(id); ok {
		return rec.Name()
	}
	return id
}

func requestIDParam(w http.ResponseWriter, r *http.Request) (ledger.RequestID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "Invalid request id", fmt.Errorf("%q", raw))
		return 0, false
	}
	return ledger.RequestID(n), true
}

func actorFrom(r *http.Request) ledger.Actor {
	actor, _ := r.Context().Value(actorKey{}).(ledger.Actor)
	return actor
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
