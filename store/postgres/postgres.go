/*
Package postgres provides a PostgreSQL-backed employee table.

PURPOSE:
  Implements directory.Backend on PostgreSQL for deployments that share
  the employee table between hosts. Same layout as store/sqlite, with the
  row cells held in a text[] column.

WRITE SEMANTICS:
  WriteTable truncates and reloads both tables in one transaction, using
  COPY for the rows.

USAGE:
  store, err := postgres.Connect(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/leave-dashboard/directory"
)

// Store implements directory.Backend using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ directory.Backend = (*Store)(nil)

// Connect opens a pool for databaseURL and creates the schema.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS directory_columns (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS directory_rows (
		position INTEGER PRIMARY KEY,
		employee_id TEXT NOT NULL,
		used_leaves INTEGER NOT NULL DEFAULT 0,
		cells TEXT[] NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_directory_rows_employee
		ON directory_rows(employee_id);
	`)
	return err
}

// ReadTable returns the stored table, or directory.ErrEmpty when no table
// has been written yet.
func (s *Store) ReadTable(ctx context.Context) (*directory.Table, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM directory_columns ORDER BY position")
	if err != nil {
		return nil, err
	}
	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, directory.ErrEmpty
	}

	rows, err = s.pool.Query(ctx, "SELECT cells FROM directory_rows ORDER BY position")
	if err != nil {
		return nil, err
	}
	cells, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, err
	}
	return &directory.Table{Columns: columns, Rows: cells}, nil
}

// WriteTable replaces the stored table in one transaction.
func (s *Store) WriteTable(ctx context.Context, t *directory.Table) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback(ctx))
		}
	}()

	if _, err = tx.Exec(ctx, "TRUNCATE directory_columns, directory_rows"); err != nil {
		return err
	}

	columnRows := make([][]any, len(t.Columns))
	for i, name := range t.Columns {
		columnRows[i] = []any{i, name}
	}
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"directory_columns"},
		[]string{"position", "name"},
		pgx.CopyFromRows(columnRows),
	); err != nil {
		return fmt.Errorf("copy columns: %w", err)
	}

	idCol, usedCol := indexOf(t.Columns, directory.ColumnEmployeeID), indexOf(t.Columns, directory.ColumnUsedLeaves)
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"directory_rows"},
		[]string{"position", "employee_id", "used_leaves", "cells"},
		pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
			row := t.Rows[i]
			return []any{i, cell(row, idCol), usedLeaves(cell(row, usedCol)), row}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}

	return tx.Commit(ctx)
}

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
