package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-dashboard/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeDirectory struct {
	ids     []string
	used    map[string]int
	flushes int
	failSet bool
	failErr error
}

func newFakeDirectory(used map[string]int, ids ...string) *fakeDirectory {
	if used == nil {
		used = map[string]int{}
	}
	return &fakeDirectory{ids: ids, used: used}
}

func (d *fakeDirectory) EmployeeIDs() []string { return d.ids }

func (d *fakeDirectory) GetUsedLeaves(id string) (int, bool) {
	v, ok := d.used[id]
	return v, ok
}

func (d *fakeDirectory) SetUsedLeaves(id string, used int) error {
	if d.failSet {
		return d.failErr
	}
	d.used[id] = used
	return nil
}

func (d *fakeDirectory) Flush(context.Context) error {
	d.flushes++
	return d.failErr
}

var (
	admin    = ledger.Actor{EmployeeID: "admin", Role: ledger.RoleAdmin}
	employee = ledger.Actor{EmployeeID: "E001", Role: ledger.RoleEmployee}
	day      = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
)

func newTestLedger(t *testing.T, dir *fakeDirectory, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	l := ledger.New(dir, opts...)
	require.NoError(t, l.Initialize(context.Background()))
	return l
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func TestInitialize_SeedsBalancesFromUsedLeaves(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"E001": 0, "E002": 2, "E003": 9, "E004": -3}, "E001", "E002", "E003", "E004", "E005")
	l := newTestLedger(t, dir)

	assert.Equal(t, 5, l.BalanceOf("E001"))
	assert.Equal(t, 3, l.BalanceOf("E002"))
	assert.Equal(t, 0, l.BalanceOf("E003"), "overspent employees floor at zero")
	assert.Equal(t, 5, l.BalanceOf("E004"), "balance never exceeds the quota")
	assert.Equal(t, 5, l.BalanceOf("E005"), "missing used leaves count as zero")

	for id, remaining := range l.Balances() {
		assert.GreaterOrEqual(t, remaining, 0, id)
		assert.LessOrEqual(t, remaining, l.Quota(), id)
	}
	assert.Empty(t, l.PendingRequests())
	assert.Empty(t, l.History("E001"))
}

func TestInitialize_SecondCallDoesNotReset(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)

	id, err := l.Apply(ctx, "E001", 2, "", day)
	require.NoError(t, err)
	require.NoError(t, l.Approve(ctx, id, admin))

	require.NoError(t, l.Initialize(ctx))

	assert.Equal(t, 3, l.BalanceOf("E001"))
	assert.Len(t, l.Requests(), 1)
	assert.Len(t, l.History("E001"), 1)
}

func TestWithQuota_ChangesBoundsAndSeed(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"E001": 4}, "E001")
	l := newTestLedger(t, dir, ledger.WithQuota(10))

	assert.Equal(t, 10, l.Quota())
	assert.Equal(t, 6, l.BalanceOf("E001"))

	_, err := l.Apply(context.Background(), "E001", 10, "", day)
	assert.NoError(t, err)
}

func TestBalanceOf_UnknownEmployeeGetsFullQuota(t *testing.T) {
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))
	assert.Equal(t, ledger.DefaultMonthlyQuota, l.BalanceOf("nobody"))
	assert.Equal(t, 0, l.UsedOf("nobody"))
}

// =============================================================================
// APPLY
// =============================================================================

func TestApply_CreatesPendingRequestAndHistoryWithoutTouchingBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001", "E002"))
	before := l.Balances()

	id, err := l.Apply(ctx, "E001", 3, "  family event  ", day)
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestID(1), id)

	assert.Equal(t, before, l.Balances())

	pending := l.PendingRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.Request{
		ID:          1,
		EmployeeID:  "E001",
		SubmittedAt: day,
		Days:        3,
		Reason:      "family event",
		Status:      ledger.StatusPending,
	}, pending[0])

	history := l.History("E001")
	require.Len(t, history, 1)
	assert.Equal(t, ledger.HistoryEntry{
		RequestID: 1,
		Date:      day,
		Days:      3,
		Reason:    "family event",
		Status:    ledger.StatusPending,
	}, history[0])
	assert.Empty(t, l.History("E002"))
}

func TestApply_RequestIDsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001", "E002"))

	var ids []ledger.RequestID
	for i, emp := range []string{"E001", "E002", "E001", "E002"} {
		id, err := l.Apply(ctx, emp, 1+i%3, "", day.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, l.Reject(ctx, ids[0], admin))
	next, err := l.Apply(ctx, "E001", 1, "", day)
	require.NoError(t, err)
	ids = append(ids, next)

	assert.Equal(t, []ledger.RequestID{1, 2, 3, 4, 5}, ids)
}

func TestApply_Validation(t *testing.T) {
	tests := []struct {
		name     string
		employee string
		days     int
		reason   string
		want     error
	}{
		{"zero days", "E001", 0, "", ledger.ErrInvalidArgument},
		{"negative days", "E001", -2, "", ledger.ErrInvalidArgument},
		{"above quota", "E001", 6, "", ledger.ErrInvalidArgument},
		{"reason too long", "E001", 1, string(make([]rune, 251)), ledger.ErrInvalidArgument},
		{"unknown employee", "Z999", 1, "", ledger.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, newFakeDirectory(nil, "E001"))

			_, err := l.Apply(context.Background(), tt.employee, tt.days, tt.reason, day)

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, ledger.IsClientError(err))
			assert.Empty(t, l.Requests())
			assert.Empty(t, l.History("E001"))
		})
	}
}

func TestApply_BoundaryDaysAccepted(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))

	_, err := l.Apply(ctx, "E001", 1, "", day)
	assert.NoError(t, err)
	_, err = l.Apply(ctx, "E001", ledger.DefaultMonthlyQuota, "", day)
	assert.NoError(t, err)
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_DeductsBalanceAndWritesBack(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(map[string]int{"E001": 1, "E002": 0}, "E001", "E002")
	decidedAt := day.Add(2 * time.Hour)
	l := newTestLedger(t, dir, ledger.WithClock(func() time.Time { return decidedAt }))

	id, err := l.Apply(ctx, "E001", 3, "trip", day)
	require.NoError(t, err)

	require.NoError(t, l.Approve(ctx, id, admin))

	assert.Equal(t, 1, l.BalanceOf("E001"))
	req, ok := l.Request(id)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusApproved, req.Status)
	assert.Equal(t, "admin", req.DecidedBy)
	require.NotNil(t, req.DecidedAt)
	assert.Equal(t, decidedAt, *req.DecidedAt)
	assert.True(t, req.Status.IsTerminal())
	assert.Equal(t, ledger.StatusApproved, l.History("E001")[0].Status)
	assert.Empty(t, l.PendingRequests())

	assert.Equal(t, 1, dir.flushes)
	assert.Equal(t, map[string]int{"E001": 4, "E002": 0}, dir.used)
}

func TestApprove_ConcurrentApprovalsNeverOverdraw(t *testing.T) {
	// GIVEN: ten pending one-day requests against a five-day balance
	ctx := context.Background()
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)

	ids := make([]ledger.RequestID, 10)
	for i := range ids {
		id, err := l.Apply(ctx, "E001", 1, "", day)
		require.NoError(t, err)
		ids[i] = id
	}

	// WHEN: every request is approved from its own goroutine
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id ledger.RequestID) {
			defer wg.Done()
			errs[i] = l.Approve(ctx, id, admin)
		}(i, id)
	}
	wg.Wait()

	// THEN: exactly five succeed and the rest stay pending
	approved := 0
	for _, err := range errs {
		if err == nil {
			approved++
			continue
		}
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	}
	assert.Equal(t, 5, approved)
	assert.Equal(t, 0, l.BalanceOf("E001"))
	assert.Len(t, l.PendingRequests(), 5)
	assert.Equal(t, 5, dir.used["E001"])
	assert.Equal(t, 5, dir.flushes)
}

func TestApprove_InsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(map[string]int{"E001": 4}, "E001")
	l := newTestLedger(t, dir)

	id, err := l.Apply(ctx, "E001", 2, "", day)
	require.NoError(t, err)

	err = l.Approve(ctx, id, admin)

	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	var balErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, 1, balErr.Available)
	assert.Equal(t, 2, balErr.Requested)

	assert.Equal(t, 1, l.BalanceOf("E001"))
	req, _ := l.Request(id)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.Nil(t, req.DecidedAt)
	assert.Equal(t, ledger.StatusPending, l.History("E001")[0].Status)
	assert.Zero(t, dir.flushes)
}

func TestApprove_NonAdminDenied(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))
	id, err := l.Apply(ctx, "E001", 1, "", day)
	require.NoError(t, err)

	err = l.Approve(ctx, id, employee)
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)

	err = l.Reject(ctx, id, employee)
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)

	req, _ := l.Request(id)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.Equal(t, 5, l.BalanceOf("E001"))
}

func TestApprove_UnknownRequest(t *testing.T) {
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))

	assert.ErrorIs(t, l.Approve(context.Background(), 42, admin), ledger.ErrNotFound)
	assert.True(t, ledger.IsNotFound(l.Reject(context.Background(), 42, admin)))
}

func TestDecide_NonPendingIsInvalidState(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)

	approved, err := l.Apply(ctx, "E001", 1, "", day)
	require.NoError(t, err)
	rejected, err := l.Apply(ctx, "E001", 2, "", day)
	require.NoError(t, err)
	require.NoError(t, l.Approve(ctx, approved, admin))
	require.NoError(t, l.Reject(ctx, rejected, admin))

	balances := l.Balances()
	requests := l.Requests()
	history := l.History("E001")
	flushes := dir.flushes

	for _, id := range []ledger.RequestID{approved, rejected} {
		assert.ErrorIs(t, l.Approve(ctx, id, admin), ledger.ErrInvalidState)
		assert.ErrorIs(t, l.Reject(ctx, id, admin), ledger.ErrInvalidState)
	}

	assert.Equal(t, balances, l.Balances())
	assert.Equal(t, requests, l.Requests())
	assert.Equal(t, history, l.History("E001"))
	assert.Equal(t, flushes, dir.flushes)
}

func TestApprove_WriteBackFailureKeepsApproval(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)
	id, err := l.Apply(ctx, "E001", 2, "", day)
	require.NoError(t, err)

	dir.failErr = errors.New("disk full")
	err = l.Approve(ctx, id, admin)

	require.Error(t, err)
	assert.True(t, ledger.IsWarning(err))
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.False(t, ledger.IsClientError(err))
	var warn *ledger.PersistenceWarning
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, id, warn.RequestID)

	assert.Equal(t, 3, l.BalanceOf("E001"))
	req, _ := l.Request(id)
	assert.Equal(t, ledger.StatusApproved, req.Status)
	assert.Equal(t, ledger.StatusApproved, l.History("E001")[0].Status)

	// Retrying the write-back once storage recovers.
	dir.failErr = nil
	require.NoError(t, l.WriteBack(ctx))
	assert.Equal(t, 2, dir.used["E001"])
}

func TestWriteBack_SetFailureIsWarning(t *testing.T) {
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)

	dir.failSet = true
	dir.failErr = errors.New("read-only")
	err := l.WriteBack(context.Background())

	assert.True(t, ledger.IsWarning(err))
	assert.Zero(t, dir.flushes)
}

// =============================================================================
// REJECT
// =============================================================================

func TestReject_NoBalanceChangeNoWriteBack(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(nil, "E001")
	l := newTestLedger(t, dir)
	id, err := l.Apply(ctx, "E001", 4, "conference", day)
	require.NoError(t, err)

	require.NoError(t, l.Reject(ctx, id, admin))

	assert.Equal(t, 5, l.BalanceOf("E001"))
	req, _ := l.Request(id)
	assert.Equal(t, ledger.StatusRejected, req.Status)
	assert.Equal(t, ledger.StatusRejected, l.History("E001")[0].Status)
	assert.Zero(t, dir.flushes)
}

func TestReject_Twice(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))
	id, err := l.Apply(ctx, "E001", 1, "", day)
	require.NoError(t, err)

	require.NoError(t, l.Reject(ctx, id, admin))
	after := l.Requests()

	err = l.Reject(ctx, id, admin)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	assert.Equal(t, after, l.Requests())
}

// =============================================================================
// HISTORY MATCHING
// =============================================================================

func TestHistoryMatching_EqualDaysRequests(t *testing.T) {
	// GIVEN: Two pending 2-day requests from the same employee
	// WHEN: The second one is approved
	// THEN: By request id, the second entry flips.
	//       Legacy matching flips the first pending entry with equal days.

	tests := []struct {
		name     string
		matching ledger.HistoryMatching
		want     []ledger.Status
	}{
		{"by request id", ledger.MatchByRequestID, []ledger.Status{ledger.StatusPending, ledger.StatusApproved}},
		{"legacy days", ledger.MatchByDaysLegacy, []ledger.Status{ledger.StatusApproved, ledger.StatusPending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := newTestLedger(t, newFakeDirectory(nil, "E001"), ledger.WithHistoryMatching(tt.matching))

			_, err := l.Apply(ctx, "E001", 2, "first", day)
			require.NoError(t, err)
			second, err := l.Apply(ctx, "E001", 2, "second", day.Add(time.Hour))
			require.NoError(t, err)

			require.NoError(t, l.Approve(ctx, second, admin))

			history := l.History("E001")
			require.Len(t, history, 2)
			assert.Equal(t, tt.want, []ledger.Status{history[0].Status, history[1].Status})

			req, _ := l.Request(second)
			assert.Equal(t, ledger.StatusApproved, req.Status)
		})
	}
}

func TestHistoryMatching_LegacyDistinctDaysStillExact(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001"), ledger.WithHistoryMatching(ledger.MatchByDaysLegacy))

	_, err := l.Apply(ctx, "E001", 1, "", day)
	require.NoError(t, err)
	second, err := l.Apply(ctx, "E001", 3, "", day)
	require.NoError(t, err)

	require.NoError(t, l.Reject(ctx, second, admin))

	history := l.History("E001")
	assert.Equal(t, ledger.StatusPending, history[0].Status)
	assert.Equal(t, ledger.StatusRejected, history[1].Status)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestPendingRequests_StableOrderAndCopies(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newFakeDirectory(nil, "E001", "E002"))

	a, _ := l.Apply(ctx, "E002", 1, "", day)
	b, _ := l.Apply(ctx, "E001", 1, "", day)
	c, _ := l.Apply(ctx, "E002", 2, "", day)
	require.NoError(t, l.Reject(ctx, b, admin))

	pending := l.PendingRequests()
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, c, pending[1].ID)

	pending[0].Status = ledger.StatusApproved
	history := l.History("E002")
	history[0].Days = 99
	balances := l.Balances()
	balances["E001"] = 0

	req, _ := l.Request(a)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.Equal(t, 1, l.History("E002")[0].Days)
	assert.Equal(t, 5, l.BalanceOf("E001"))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_FamilyEventThenInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory(map[string]int{"E": 0}, "E")
	l := newTestLedger(t, dir, ledger.WithQuota(5))

	assert.Equal(t, 5, l.BalanceOf("E"))

	first, err := l.Apply(ctx, "E", 3, "family event", day)
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestID(1), first)
	assert.Equal(t, 5, l.BalanceOf("E"))

	require.NoError(t, l.Approve(ctx, first, admin))
	assert.Equal(t, 2, l.BalanceOf("E"))
	history := l.History("E")
	require.Len(t, history, 1)
	assert.Equal(t, ledger.StatusApproved, history[0].Status)

	second, err := l.Apply(ctx, "E", 3, "", day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestID(2), second)

	err = l.Approve(ctx, second, admin)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, 2, l.BalanceOf("E"))
	req, _ := l.Request(second)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.Equal(t, 3, dir.used["E"])
}

func TestScenario_UnknownEmployee(t *testing.T) {
	l := newTestLedger(t, newFakeDirectory(nil, "E001"))

	_, err := l.Apply(context.Background(), "Z999", 2, "", day)

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
