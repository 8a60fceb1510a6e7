package table

import "context"

// AllTables — ключ инвалидации всего кэша.
const AllTables = "*"

// Cache — кэш мигрированных таблиц по имени. Реализации: internal/cache.
// Store кладёт в кэш собственную копию и отдаёт наружу копии, так что реализации
// могут хранить указатель как есть.
type Cache interface {
	Get(ctx context.Context, name string) (*Table, bool)
	Put(ctx context.Context, name string, t *Table)
	// Invalidate удаляет одну таблицу или все (AllTables).
	Invalidate(ctx context.Context, name string)
}

// NopCache — без кэширования.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Table, bool) { return nil, false }
func (NopCache) Put(context.Context, string, *Table)        {}
func (NopCache) Invalidate(context.Context, string)         {}
