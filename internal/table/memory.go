package table

import (
	"context"
	"slices"
	"sort"
	"sync"
)

type memTable struct {
	columns []string
	rows    []Row
	version int64
}

// MemoryBackend — таблицы в памяти процесса. Для разработки и тестов.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]*memTable)}
}

// Seed кладёт таблицу как есть, без миграции (удобно для проверки дрейфа схемы).
func (b *MemoryBackend) Seed(name string, columns []string, rows ...Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &memTable{columns: append([]string(nil), columns...)}
	for _, r := range rows {
		t.rows = append(t.rows, r.Clone())
	}
	b.tables[name] = t
}

func (b *MemoryBackend) table(name string) *memTable {
	t, ok := b.tables[name]
	if !ok {
		t = &memTable{}
		b.tables[name] = t
	}
	return t
}

func (t *memTable) ensureColumns(r Row) {
	t.columns = append(t.columns, MissingColumns(t.columns, r)...)
}

// MissingColumns — ключи строки, которых нет среди колонок, в стабильном порядке.
func MissingColumns(columns []string, r Row) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var out []string
	for col := range r {
		if !have[col] {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

func (b *MemoryBackend) Fetch(ctx context.Context, name string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tables[name]
	if !ok {
		return Snapshot{}, nil
	}
	snap := Snapshot{
		Columns: append([]string(nil), t.columns...),
		Rows:    make([]Row, len(t.rows)),
		Version: t.version,
	}
	for i, r := range t.rows {
		snap.Rows[i] = r.Clone()
	}
	return snap, nil
}

func (b *MemoryBackend) Append(ctx context.Context, name string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(name)
	for _, r := range rows {
		t.ensureColumns(r)
		t.rows = append(t.rows, r.Clone())
	}
	t.version++
	return nil
}

func (b *MemoryBackend) Update(ctx context.Context, name string, m Match, fields Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(name)
	for _, r := range t.rows {
		if !m.Matches(r) {
			continue
		}
		t.ensureColumns(fields)
		for k, v := range fields {
			r[k] = v
		}
		t.version++
		return nil
	}
	return ErrRowNotFound
}

func (b *MemoryBackend) Delete(ctx context.Context, name string, m Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(name)
	for i, r := range t.rows {
		if m.Matches(r) {
			t.rows = slices.Delete(t.rows, i, i+1)
			t.version++
			return nil
		}
	}
	return ErrRowNotFound
}

func (b *MemoryBackend) Replace(ctx context.Context, name string, snap Snapshot, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(name)
	if expectedVersion != AnyVersion && expectedVersion != t.version {
		return ErrConcurrentOverwriteRisk
	}
	t.columns = append([]string(nil), snap.Columns...)
	t.rows = make([]Row, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		t.ensureColumns(r)
		t.rows = append(t.rows, r.Clone())
	}
	t.version++
	return nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }
