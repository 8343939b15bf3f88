package engine

import (
	"context"
	"database/sql"

	"github.com/little-pan/sqlite-server/srverr"
)

// Row is one streamed result row, column-aligned with Columns.
type Row struct {
	Values []any
}

// Result is the outcome of one statement: the column names for a query,
// or the rows-affected and last-insert-id counts for a non-query. Rows
// are not held here; Execute streams them through its onRow callback,
// and an error is returned alongside the Result rather than inside it.
type Result struct {
	Columns      []string
	RowsAffected int64
	LastInsertID int64
	IsQuery      bool
}

// Execute runs a single SQL statement against db and, for queries,
// invokes onRow for every result row as it is scanned, so the caller
// (the processor) can pipe rows to the wire without buffering an
// entire result set in memory. Canceling ctx interrupts the in-progress
// statement via go-sqlite3's context-aware driver hooks (spec §1's
// "interrupt an in-progress statement" capability).
func Execute(ctx context.Context, db *sql.DB, sqlText string, isQuery bool, onRow func(Row) error) (*Result, error) {
	if isQuery {
		return executeQuery(ctx, db, sqlText, onRow)
	}
	return executeStatement(ctx, db, sqlText)
}

func executeQuery(ctx context.Context, db *sql.DB, sqlText string, onRow func(Row) error) (*Result, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, srverr.FromSQLite(err, sqlText)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, srverr.FromSQLite(err, sqlText)
	}

	res := &Result{Columns: cols, IsQuery: true}
	scanDest := make([]any, len(cols))
	scanBuf := make([]any, len(cols))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, srverr.NewTimeout("statement canceled: %v", err)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, srverr.FromSQLite(err, sqlText)
		}
		values := make([]any, len(cols))
		copy(values, scanBuf)
		if err := onRow(Row{Values: values}); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, srverr.FromSQLite(err, sqlText)
	}
	return res, nil
}

func executeStatement(ctx context.Context, db *sql.DB, sqlText string) (*Result, error) {
	r, err := db.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, srverr.FromSQLite(err, sqlText)
	}
	affected, _ := r.RowsAffected()
	lastID, _ := r.LastInsertId()
	return &Result{RowsAffected: affected, LastInsertID: lastID}, nil
}
