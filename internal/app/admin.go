package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/table"
)

// Admin — административные операции над таблицами целиком.
// Единственное место, где используется ReplaceAll.
type Admin struct {
	store *table.Store
	log   *zap.Logger
}

func NewAdmin(s *table.Store, log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	return &Admin{store: s, log: log}
}

type NormalizeResult struct {
	Table   string   `json:"table"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// NormalizeTable переписывает таблицу в порядке колонок схемы с заполненными значениями
// по умолчанию. Снимок сверяется по версии: если таблицу успели изменить, ErrStaleRecord.
func (a *Admin) NormalizeTable(ctx context.Context, actor Identity, name string) (NormalizeResult, error) {
	if !actor.Is(models.Admin) {
		return NormalizeResult{}, ErrForbidden
	}
	if _, ok := a.store.Registry().ColumnsOf(name); !ok {
		return NormalizeResult{}, fmt.Errorf("%w: table %q", ErrNotFound, name)
	}
	snap, err := a.store.ReadFresh(ctx, name)
	if err != nil {
		return NormalizeResult{}, storeErr(err)
	}
	if err := a.store.ReplaceAll(ctx, name, snap, table.ReplaceOptions{}); err != nil {
		return NormalizeResult{}, storeErr(err)
	}
	a.log.Info("table normalized",
		zap.String("table", name),
		zap.Int("rows", snap.Len()),
		zap.String("by", string(actor.Email)),
	)
	return NormalizeResult{Table: name, Rows: snap.Len(), Columns: snap.Columns}, nil
}

// ClearCache — ручной сброс кэша всех таблиц.
func (a *Admin) ClearCache(ctx context.Context, actor Identity) error {
	if !actor.Is(models.Admin) {
		return ErrForbidden
	}
	a.store.Invalidate(ctx, table.AllTables)
	a.log.Info("cache cleared", zap.String("by", string(actor.Email)))
	return nil
}

// Snapshot — таблица целиком для выгрузки.
func (a *Admin) Snapshot(ctx context.Context, actor Identity, name string) (*table.Table, error) {
	if !actor.Is(models.Admin) {
		return nil, ErrForbidden
	}
	t, err := a.store.ReadAll(ctx, name)
	if err != nil {
		return nil, storeErr(err)
	}
	return t, nil
}
