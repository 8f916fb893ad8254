/*
store.go - Collaborator interfaces for persistence and notification

PURPOSE:
  The ledger core does not know where tables live or how messages travel.
  It talks to two collaborators:

  TableStore: load/save a whole table snapshot (columns + string rows)
  Notifier:   send a formatted text message

TABLE SNAPSHOTS:
  A Table is deliberately untyped: ordered column names plus rows of
  strings, the lowest common denominator of CSV files, spreadsheets and
  SQL blobs. Typed records are produced by the cashback codec
  (cashback/tables.go), which is the single place where missing cells are
  defaulted.

SAVE MESSAGES:
  Every SaveTable call carries a human-readable message ("sale 120.00 for
  Ana"), stored next to the snapshot like a commit message.

IMPLEMENTATIONS:
  - store/sqlite: versioned snapshots in SQLite (production)
  - generic/store: in-memory (tests, dev)
  - notify: Telegram Bot API and log-only notifiers

SEE ALSO:
  - cashback/engine.go: calls both collaborators after each mutation
*/
package generic

import "context"

// =============================================================================
// TABLE SNAPSHOT
// =============================================================================

// Table is an ordered set of columns and string rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// IsEmpty reports whether the table holds no rows.
func (t Table) IsEmpty() bool {
	return len(t.Rows) == 0
}

// Index returns the position of each column name.
func (t Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[c] = i
	}
	return idx
}

// Clone returns a deep copy so stores never share backing arrays with callers.
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	if t.Rows != nil {
		out.Rows = make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// TableStore persists table snapshots.
type TableStore interface {
	// LoadTable returns the latest snapshot, or an empty Table when nothing
	// has been saved under that name.
	LoadTable(ctx context.Context, name string) (Table, error)

	// SaveTable replaces the snapshot for name.
	SaveTable(ctx context.Context, name string, table Table, message string) error
}

// Notifier delivers a text message. Delivery is best-effort; the ledger
// logs failures and moves on.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }
