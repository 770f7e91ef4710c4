/*
Package sqlite provides a SQLite-backed employee table.

PURPOSE:
  Implements directory.Backend using SQLite, as an alternative to the flat
  CSV file. The table keeps its column order and every cell, so a round
  trip through SQLite is lossless.

KEY TABLES:
  directory_columns: column position -> name
  directory_rows:    one row per employee row, cells as a JSON array.
                     employee_id and used_leaves are duplicated into
                     their own columns for ad-hoc queries.

WRITE SEMANTICS:
  WriteTable replaces both tables inside one transaction. A failed write
  leaves the previous table in place.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/directory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  dir, err := directory.Open(ctx, store, directory.WithSeed(directory.NewCSVFile("employee_data.csv")))

SEE ALSO:
  - directory/directory.go: Backend interface
  - store/postgres: same schema on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-dashboard/directory"
)

// Store implements directory.Backend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ directory.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: every ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS directory_columns (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS directory_rows (
		position INTEGER PRIMARY KEY,
		employee_id TEXT NOT NULL,
		used_leaves INTEGER NOT NULL DEFAULT 0,
		cells_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_directory_rows_employee
		ON directory_rows(employee_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY BACKEND
// =============================================================================

// ReadTable returns the stored table, or directory.ErrEmpty when no table
// has been written yet.
func (s *Store) ReadTable(ctx context.Context) (*directory.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM directory_columns ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &directory.Table{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, directory.ErrEmpty
	}

	cellRows, err := s.db.QueryContext(ctx, "SELECT cells_json FROM directory_rows ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var cellsJSON string
		if err := cellRows.Scan(&cellsJSON); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, fmt.Errorf("decode row cells: %w", err)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, cellRows.Err()
}

// WriteTable replaces the stored table in one transaction.
func (s *Store) WriteTable(ctx context.Context, t *directory.Table) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM directory_columns"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM directory_rows"); err != nil {
			return err
		}

		for i, name := range t.Columns {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO directory_columns (position, name) VALUES (?, ?)", i, name,
			); err != nil {
				return fmt.Errorf("insert column %q: %w", name, err)
			}
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO directory_rows (position, employee_id, used_leaves, cells_json) VALUES (?, ?, ?, ?)",
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		idCol, usedCol := indexOf(t.Columns, directory.ColumnEmployeeID), indexOf(t.Columns, directory.ColumnUsedLeaves)
		for i, row := range t.Rows {
			cells, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, i, cell(row, idCol), usedLeaves(cell(row, usedCol)), string(cells)); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		return nil
	})
}

// UsedLeaves returns the stored used-leave count per employee id, summed over
// duplicate rows.
func (s *Store) UsedLeaves(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT employee_id, SUM(used_leaves) FROM directory_rows WHERE employee_id <> '' GROUP BY employee_id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var used int
		if err := rows.Scan(&id, &used); err != nil {
			return nil, err
		}
		out[id] = used
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an error
// the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func usedLeaves(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
