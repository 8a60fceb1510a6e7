// Package sheet — табличное хранилище в книге Excel: лист на таблицу, первая строка — заголовок.
package sheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/okr-tracker/internal/table"
)

const defaultSheet = "Sheet1"

// WorkbookBackend — table.Backend поверх .xlsx файла.
// Книга держится в памяти и сохраняется целиком после каждой записи.
// Версии таблиц живут только в памяти процесса и начинаются с нуля при открытии.
type WorkbookBackend struct {
	mu       sync.Mutex
	path     string
	f        *excelize.File
	versions map[string]int64
}

// OpenWorkbook открывает книгу или создаёт новую, если файла нет.
func OpenWorkbook(path string) (*WorkbookBackend, error) {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return nil, fmt.Errorf("stat workbook %s: %w", path, err)
	}
	return &WorkbookBackend{path: path, f: f, versions: make(map[string]int64)}, nil
}

func (b *WorkbookBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}

func (b *WorkbookBackend) Fetch(ctx context.Context, name string) (table.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return table.Snapshot{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := table.Snapshot{Version: b.versions[name]}
	if !b.hasSheet(name) {
		return snap, nil
	}
	header, rows, err := b.read(name)
	if err != nil {
		return table.Snapshot{}, err
	}
	snap.Columns = header
	snap.Rows = rows
	return snap, nil
}

func (b *WorkbookBackend) Append(ctx context.Context, name string, rows []table.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.mutate(name, func() error {
		if err := b.ensureSheet(name); err != nil {
			return err
		}
		header, existing, err := b.read(name)
		if err != nil {
			return err
		}
		next := len(existing) + 2
		for _, r := range rows {
			if header, err = b.ensureHeader(name, header, r); err != nil {
				return err
			}
			if err := b.writeRow(name, header, next, r); err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

func (b *WorkbookBackend) Update(ctx context.Context, name string, m table.Match, fields table.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasSheet(name) {
		return table.ErrRowNotFound
	}
	header, rows, err := b.read(name)
	if err != nil {
		return err
	}
	i := firstMatch(rows, m)
	if i < 0 {
		return table.ErrRowNotFound
	}
	return b.mutate(name, func() error {
		header, err := b.ensureHeader(name, header, fields)
		if err != nil {
			return err
		}
		return b.writeRow(name, header, i+2, fields)
	})
}

func (b *WorkbookBackend) Delete(ctx context.Context, name string, m table.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasSheet(name) {
		return table.ErrRowNotFound
	}
	_, rows, err := b.read(name)
	if err != nil {
		return err
	}
	i := firstMatch(rows, m)
	if i < 0 {
		return table.ErrRowNotFound
	}
	return b.mutate(name, func() error {
		if err := b.f.RemoveRow(name, i+2); err != nil {
			return fmt.Errorf("remove row %d: %w", i+2, err)
		}
		return nil
	})
}

func (b *WorkbookBackend) Replace(ctx context.Context, name string, snap table.Snapshot, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if expectedVersion != table.AnyVersion && expectedVersion != b.versions[name] {
		return table.ErrConcurrentOverwriteRisk
	}

	return b.mutate(name, func() error { return b.swapSheet(name, snap) })
}

// swapSheet собирает таблицу на новом листе и подменяет им старый: последний лист книги удалить нельзя.
func (b *WorkbookBackend) swapSheet(name string, snap table.Snapshot) error {
	tmp := name + "~"
	if _, err := b.f.NewSheet(tmp); err != nil {
		return fmt.Errorf("new sheet %s: %w", tmp, err)
	}
	header := append([]string(nil), snap.Columns...)
	for _, r := range snap.Rows {
		header = append(header, table.MissingColumns(header, r)...)
	}
	if err := b.writeHeader(tmp, header, 0); err != nil {
		return err
	}
	for i, r := range snap.Rows {
		if err := b.writeRow(tmp, header, i+2, r); err != nil {
			return err
		}
	}
	if b.hasSheet(name) {
		if err := b.f.DeleteSheet(name); err != nil {
			return fmt.Errorf("delete sheet %s: %w", name, err)
		}
	}
	if err := b.f.SetSheetName(tmp, name); err != nil {
		return fmt.Errorf("rename sheet %s: %w", tmp, err)
	}
	b.dropDefaultSheet(name)
	return nil
}

func (b *WorkbookBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(b.path))
	return err
}

func (b *WorkbookBackend) hasSheet(name string) bool {
	idx, err := b.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (b *WorkbookBackend) ensureSheet(name string) error {
	if b.hasSheet(name) {
		return nil
	}
	if _, err := b.f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	b.dropDefaultSheet(name)
	return nil
}

// dropDefaultSheet убирает пустой Sheet1 новой книги, как только появился лист таблицы.
func (b *WorkbookBackend) dropDefaultSheet(created string) {
	if created == defaultSheet || !b.hasSheet(defaultSheet) {
		return
	}
	rows, err := b.f.GetRows(defaultSheet)
	if err != nil || len(rows) > 0 {
		return
	}
	_ = b.f.DeleteSheet(defaultSheet)
}

// read возвращает заголовок и строки данных; индекс строки i соответствует строке листа i+2.
func (b *WorkbookBackend) read(name string) ([]string, []table.Row, error) {
	raw, err := b.f.GetRows(name)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}
	header := append([]string(nil), raw[0]...)
	rows := make([]table.Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		r := make(table.Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(cells) {
				r[col] = cells[i]
			} else {
				r[col] = ""
			}
		}
		rows = append(rows, r)
	}
	return header, rows, nil
}

func (b *WorkbookBackend) ensureHeader(name string, header []string, r table.Row) ([]string, error) {
	missing := table.MissingColumns(header, r)
	if len(missing) == 0 {
		return header, nil
	}
	from := len(header)
	header = append(header, missing...)
	return header, b.writeHeader(name, header, from)
}

func (b *WorkbookBackend) writeHeader(name string, header []string, from int) error {
	for i := from; i < len(header); i++ {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := b.f.SetCellStr(name, cell, header[i]); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}
	return nil
}

// writeRow пишет только ячейки из r, остальные в строке не трогает.
func (b *WorkbookBackend) writeRow(name string, header []string, rowNum int, r table.Row) error {
	for i, col := range header {
		v, ok := r[col]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := b.f.SetCellStr(name, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

// mutate применяет fn к книге и сохраняет её на диск. Если fn или сохранение
// не удались, книга в памяти возвращается к состоянию до fn, версия не растёт.
func (b *WorkbookBackend) mutate(name string, fn func() error) error {
	before, err := b.f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("snapshot workbook: %w", err)
	}
	err = fn()
	if err == nil {
		if err = b.f.SaveAs(b.path); err == nil {
			b.versions[name]++
			return nil
		}
		err = fmt.Errorf("save workbook %s: %w", b.path, err)
	}
	if rerr := b.restore(before.Bytes()); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func (b *WorkbookBackend) restore(data []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("restore workbook: %w", err)
	}
	old := b.f
	b.f = f
	_ = old.Close()
	return nil
}

func firstMatch(rows []table.Row, m table.Match) int {
	for i, r := range rows {
		if m.Matches(r) {
			return i
		}
	}
	return -1
}
