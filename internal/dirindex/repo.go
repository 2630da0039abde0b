package dirindex

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/arkvault/internal/resource"
)

// ReplaceEntries rewrites the stored snapshot within a single transaction,
// so a reader sees either the previous snapshot or the new one.
func (db *DB) ReplaceEntries(ctx context.Context, entries map[string]Entry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dirindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("dirindex: clear entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (path, id, size, mod_time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("dirindex: prepare insert: %w", err)
	}
	defer stmt.Close()

	for p, e := range entries {
		if _, err := stmt.ExecContext(ctx, p, e.ID.String(), e.Size, e.ModTime.UnixNano()); err != nil {
			return fmt.Errorf("dirindex: insert %s: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dirindex: commit: %w", err)
	}
	return nil
}

// AllEntries returns the stored snapshot keyed by path. Rows whose
// identifier no longer parses are skipped; they will be recomputed.
func (db *DB) AllEntries(ctx context.Context) (map[string]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, id, size, mod_time FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("dirindex: all entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Entry)
	for rows.Next() {
		var (
			p, idText string
			size      int64
			nanos     int64
		)
		if err := rows.Scan(&p, &idText, &size, &nanos); err != nil {
			return nil, err
		}
		id, err := resource.Parse(idText)
		if err != nil {
			continue
		}
		out[p] = Entry{Path: p, ID: id, Size: size, ModTime: time.Unix(0, nanos)}
	}
	return out, rows.Err()
}
