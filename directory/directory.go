package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Backend stores the employee table. WriteTable replaces the whole table and
// must be all-or-nothing.
type Backend interface {
	ReadTable(ctx context.Context) (*Table, error)
	WriteTable(ctx context.Context, t *Table) error
}

// Directory is the normalized employee table for the session.
//
// It satisfies the leave ledger's directory contract: EmployeeIDs,
// GetUsedLeaves, SetUsedLeaves and Flush. Everything except Used_Leaves is
// read-only.
type Directory struct {
	mu      sync.RWMutex
	backend Backend
	logger  *slog.Logger

	table   *Table
	ids     []string
	rowsFor map[string][]int
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	seed   Backend
	logger *slog.Logger
}

// WithSeed imports the table from seed when the backend holds none yet.
func WithSeed(seed Backend) Option {
	return func(o *openOptions) { o.seed = seed }
}

// WithLogger sets the directory's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// Open reads and normalizes the table held by backend.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Directory, error) {
	o := openOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := backend.ReadTable(ctx)
	if errors.Is(err, ErrEmpty) && o.seed != nil {
		raw, err = o.seed.ReadTable(ctx)
		if err != nil {
			return nil, fmt.Errorf("read seed table: %w", err)
		}
		if err := backend.WriteTable(ctx, raw); err != nil {
			return nil, fmt.Errorf("import seed table: %w", err)
		}
		o.logger.InfoContext(ctx, "employee table imported from seed", slog.Int("rows", len(raw.Rows)))
	} else if err != nil {
		return nil, fmt.Errorf("read employee table: %w", err)
	}

	table, err := normalize(raw)
	if err != nil {
		return nil, err
	}

	d := &Directory{
		backend: backend,
		logger:  o.logger,
		table:   table,
		rowsFor: make(map[string][]int),
	}
	idCol := table.ColumnIndex(ColumnEmployeeID)
	for i, row := range table.Rows {
		id := row[idCol]
		if id == "" {
			continue
		}
		if _, seen := d.rowsFor[id]; !seen {
			d.ids = append(d.ids, id)
		}
		d.rowsFor[id] = append(d.rowsFor[id], i)
	}

	o.logger.InfoContext(ctx, "employee directory loaded",
		slog.Int("rows", len(table.Rows)),
		slog.Int("employees", len(d.ids)),
	)
	return d, nil
}

// =============================================================================
// READS
// =============================================================================

// EmployeeIDs returns every distinct, non-blank employee id in table order.
func (d *Directory) EmployeeIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.ids...)
}

// Record returns the first row for employeeID.
func (d *Directory) Record(employeeID string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, ok := d.rowsFor[employeeID]
	if !ok {
		return Record{}, false
	}
	return toRecord(d.table, d.table.Rows[rows[0]]), true
}

// Records returns every row, including rows with a blank id.
func (d *Directory) Records() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Record, len(d.table.Rows))
	for i, row := range d.table.Rows {
		out[i] = toRecord(d.table, row)
	}
	return out
}

// Columns returns the normalized column names.
func (d *Directory) Columns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.table.Columns...)
}

// GetUsedLeaves returns the used-leave count for employeeID, summed over
// duplicate rows.
func (d *Directory) GetUsedLeaves(employeeID string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, ok := d.rowsFor[employeeID]
	if !ok {
		return 0, false
	}
	col := d.table.ColumnIndex(ColumnUsedLeaves)
	total := 0
	for _, i := range rows {
		total += parseCount(d.table.Rows[i][col])
	}
	return total, true
}

// =============================================================================
// WRITE-BACK
// =============================================================================

// SetUsedLeaves overwrites the Used_Leaves cell of every row for employeeID.
// The change reaches the backend on the next Flush.
//
// With duplicate employee_id rows the same total is stamped on each row, and
// GetUsedLeaves sums rows on the next load, so the count does not round-trip.
func (d *Directory) SetUsedLeaves(employeeID string, used int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, ok := d.rowsFor[employeeID]
	if !ok {
		return fmt.Errorf("%s: %w", employeeID, ErrUnknownEmployee)
	}
	col := d.table.ColumnIndex(ColumnUsedLeaves)
	for _, i := range rows {
		d.table.Rows[i][col] = fmt.Sprint(used)
	}
	return nil
}

// Flush rewrites the whole table through the backend.
func (d *Directory) Flush(ctx context.Context) error {
	d.mu.RLock()
	snapshot := d.table.Clone()
	d.mu.RUnlock()

	if err := d.backend.WriteTable(ctx, snapshot); err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "employee table flushed", slog.Int("rows", len(snapshot.Rows)))
	return nil
}
