/*
Package sqlite provides a SQLite-backed generic.TableStore.

PURPOSE:
  Persists table snapshots (customers, transactions, promotions) as
  versioned rows. Every SaveTable is an INSERT; nothing is updated in
  place, so the full save history with its commit messages stays
  queryable.

KEY TABLES:
  table_snapshots: one row per save
    table_name    which ledger table
    message       "sale 120.00 for Ana"
    columns_json  ["id","name",...]
    rows_json     [["...","..."],...]
    row_count     for cheap history listings
    created_at    RFC3339 UTC

MIGRATIONS:
  Versioned SQL files under migrations/, embedded and applied with goose
  on New().

CONCURRENCY:
  The engine serializes writes behind its own lock. The pool is capped at
  one connection so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/cashback.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := cashback.NewEngine(program, cashback.Options{Store: store})

SEE ALSO:
  - generic/store.go: TableStore interface
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/warp/cashback-engine/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements generic.TableStore using SQLite.
type Store struct {
	db *sql.DB
}

// Snapshot is one saved version of a table.
type Snapshot struct {
	ID        int64
	Table     string
	Message   string
	RowCount  int
	CreatedAt time.Time
	Data      generic.Table
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// TABLE STORE (generic.TableStore interface)
// =============================================================================

// LoadTable returns the latest snapshot of name, or an empty table.
func (s *Store) LoadTable(ctx context.Context, name string) (generic.Table, error) {
	var columnsJSON, rowsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT columns_json, rows_json FROM table_snapshots
		 WHERE table_name = ? ORDER BY id DESC LIMIT 1`, name,
	).Scan(&columnsJSON, &rowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Table{}, nil
	}
	if err != nil {
		return generic.Table{}, fmt.Errorf("load table %s: %w", name, err)
	}
	return decodeTable(columnsJSON, rowsJSON)
}

// SaveTable stores a new version of name.
func (s *Store) SaveTable(ctx context.Context, name string, table generic.Table, message string) error {
	columnsJSON, err := json.Marshal(nonNil(table.Columns))
	if err != nil {
		return fmt.Errorf("encode columns of %s: %w", name, err)
	}
	rows := table.Rows
	if rows == nil {
		rows = [][]string{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows of %s: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO table_snapshots (table_name, message, columns_json, rows_json, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, message, string(columnsJSON), string(rowsJSON), len(table.Rows),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save table %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns up to limit snapshots of name, newest first. A limit
// of zero or less returns every snapshot.
func (s *Store) History(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_name, message, columns_json, rows_json, row_count, created_at
		 FROM table_snapshots WHERE table_name = ? ORDER BY id DESC LIMIT ?`, name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", name, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap                  Snapshot
			columnsJSON, rowsJSON string
			createdAt             string
		)
		if err := rows.Scan(&snap.ID, &snap.Table, &snap.Message, &columnsJSON, &rowsJSON, &snap.RowCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.Data, err = decodeTable(columnsJSON, rowsJSON); err != nil {
			return nil, err
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots of name and reports
// how many rows were removed.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM table_snapshots
		 WHERE table_name = ? AND id NOT IN (
		     SELECT id FROM table_snapshots WHERE table_name = ? ORDER BY id DESC LIMIT ?
		 )`, name, name, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", name, err)
	}
	return res.RowsAffected()
}

// Helper functions

func decodeTable(columnsJSON, rowsJSON string) (generic.Table, error) {
	var t generic.Table
	if err := json.Unmarshal([]byte(columnsJSON), &t.Columns); err != nil {
		return generic.Table{}, fmt.Errorf("decode columns: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &t.Rows); err != nil {
		return generic.Table{}, fmt.Errorf("decode rows: %w", err)
	}
	if len(t.Rows) == 0 {
		t.Rows = nil
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ generic.TableStore = (*Store)(nil)
