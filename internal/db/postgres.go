// Package db — табличное хранилище в PostgreSQL: строки таблиц лежат в JSONB.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lib/pq"

	"github.com/Spok95/okr-tracker/internal/table"
)

// PostgresBackend — table.Backend поверх sheet_rows/sheet_columns/sheet_versions.
//
// Каждая запись — одна транзакция, которая первым делом увеличивает версию таблицы.
// Строка версии блокируется до конца транзакции, поэтому записи в одну таблицу
// выстраиваются в очередь, а Replace сверяет версию атомарно.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Fetch(ctx context.Context, name string) (table.Snapshot, error) {
	var snap table.Snapshot
	err := b.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM sheet_versions WHERE table_name = $1`, name).Scan(&snap.Version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read version: %w", err)
		}

		cols, err := tx.QueryContext(ctx,
			`SELECT name FROM sheet_columns WHERE table_name = $1 ORDER BY position, name`, name)
		if err != nil {
			return fmt.Errorf("read columns: %w", err)
		}
		defer cols.Close()
		for cols.Next() {
			var c string
			if err := cols.Scan(&c); err != nil {
				return fmt.Errorf("scan column: %w", err)
			}
			snap.Columns = append(snap.Columns, c)
		}
		if err := cols.Err(); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY id`, name)
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("scan row: %w", err)
			}
			r, err := decodeCells(raw)
			if err != nil {
				return err
			}
			snap.Rows = append(snap.Rows, r)
		}
		return rows.Err()
	})
	return snap, err
}

func (b *PostgresBackend) Append(ctx context.Context, name string, rows []table.Row) error {
	if len(rows) == 0 {
		return nil
	}
	cells := make([]string, 0, len(rows))
	var keys []string
	seen := map[string]bool{}
	for _, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		cells = append(cells, string(raw))
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	return b.inTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := bumpVersion(ctx, tx, name); err != nil {
			return err
		}
		if err := ensureColumns(ctx, tx, name, keys); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO sheet_rows (table_name, cells)
SELECT $1, c.cells
FROM unnest($2::jsonb[]) WITH ORDINALITY AS c(cells, ord)
ORDER BY c.ord`, name, pq.Array(cells))
		if err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
}

// matchCells — все условия $2 выполнены с точностью до пробелов по краям; отсутствующая ячейка равна "".
const matchCells = `NOT EXISTS (
        SELECT 1 FROM jsonb_each_text($2::jsonb) AS m(col, val)
        WHERE btrim(coalesce(cells->>m.col, ''), E' \t\r\n') <> btrim(m.val, E' \t\r\n')
    )`

func (b *PostgresBackend) Update(ctx context.Context, name string, m table.Match, fields table.Row) error {
	if len(m) == 0 {
		return table.ErrRowNotFound
	}
	match, err := json.Marshal(m.Fields())
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return b.inTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := bumpVersion(ctx, tx, name); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE sheet_rows SET cells = cells || $3::jsonb
WHERE id = (
    SELECT id FROM sheet_rows
    WHERE table_name = $1 AND `+matchCells+`
    ORDER BY id LIMIT 1
)`, name, string(match), string(patch))
		if err != nil {
			return fmt.Errorf("update row: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return table.ErrRowNotFound
		}
		return ensureColumns(ctx, tx, name, keys)
	})
}

func (b *PostgresBackend) Delete(ctx context.Context, name string, m table.Match) error {
	if len(m) == 0 {
		return table.ErrRowNotFound
	}
	match, err := json.Marshal(m.Fields())
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	return b.inTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := bumpVersion(ctx, tx, name); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
DELETE FROM sheet_rows
WHERE id = (
    SELECT id FROM sheet_rows
    WHERE table_name = $1 AND `+matchCells+`
    ORDER BY id LIMIT 1
)`, name, string(match))
		if err != nil {
			return fmt.Errorf("delete row: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return table.ErrRowNotFound
		}
		return nil
	})
}

func (b *PostgresBackend) Replace(ctx context.Context, name string, snap table.Snapshot, expectedVersion int64) error {
	cells := make([]string, 0, len(snap.Rows))
	columns := append([]string(nil), snap.Columns...)
	for _, r := range snap.Rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		cells = append(cells, string(raw))
		columns = append(columns, table.MissingColumns(columns, r)...)
	}

	return b.inTx(ctx, nil, func(tx *sql.Tx) error {
		v, err := bumpVersion(ctx, tx, name)
		if err != nil {
			return err
		}
		if expectedVersion != table.AnyVersion && v-1 != expectedVersion {
			return table.ErrConcurrentOverwriteRisk
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE table_name = $1`, name); err != nil {
			return fmt.Errorf("clear rows: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_columns WHERE table_name = $1`, name); err != nil {
			return fmt.Errorf("clear columns: %w", err)
		}
		if err := ensureColumns(ctx, tx, name, columns); err != nil {
			return err
		}
		if len(cells) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO sheet_rows (table_name, cells)
SELECT $1, c.cells
FROM unnest($2::jsonb[]) WITH ORDINALITY AS c(cells, ord)
ORDER BY c.ord`, name, pq.Array(cells))
		if err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *PostgresBackend) inTx(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// bumpVersion увеличивает версию таблицы и возвращает новую.
func bumpVersion(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var v int64
	err := tx.QueryRowContext(ctx, `
INSERT INTO sheet_versions (table_name, version) VALUES ($1, 1)
ON CONFLICT (table_name) DO UPDATE SET version = sheet_versions.version + 1
RETURNING version`, name).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("bump version: %w", err)
	}
	return v, nil
}

// ensureColumns дописывает новые колонки в конец заголовка, известные не трогает.
func ensureColumns(ctx context.Context, tx *sql.Tx, name string, cols []string) error {
	if len(cols) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO sheet_columns (table_name, position, name)
SELECT $1,
       COALESCE((SELECT MAX(position) FROM sheet_columns WHERE table_name = $1), 0) + c.ord,
       c.name
FROM unnest($2::text[]) WITH ORDINALITY AS c(name, ord)
ON CONFLICT (table_name, name) DO NOTHING`, name, pq.Array(cols))
	if err != nil {
		return fmt.Errorf("ensure columns: %w", err)
	}
	return nil
}

// decodeCells приводит значения JSONB к строкам: ячейки, правленые руками,
// могут оказаться числами или булевыми.
func decodeCells(raw []byte) (table.Row, error) {
	var cells map[string]any
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	r := make(table.Row, len(cells))
	for k, v := range cells {
		switch x := v.(type) {
		case nil:
			r[k] = ""
		case string:
			r[k] = x
		case float64:
			r[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			if x {
				r[k] = "TRUE"
			} else {
				r[k] = "FALSE"
			}
		default:
			b, _ := json.Marshal(x)
			r[k] = string(b)
		}
	}
	return r, nil
}
