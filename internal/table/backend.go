package table

import "context"

// Snapshot — таблица в том виде, в каком её хранит носитель (до миграции).
type Snapshot struct {
	Columns []string
	Rows    []Row
	Version int64
}

// AnyVersion — Replace без проверки версии.
const AnyVersion int64 = -1

// Backend — табличный носитель: БД, книга Excel, память.
//
// Все записи точечные: Update и Delete трогают только первую строку, подходящую под Match,
// и возвращают ErrRowNotFound, если такой нет. Каждая успешная запись увеличивает версию
// таблицы. Несуществующая таблица читается как пустая.
type Backend interface {
	Fetch(ctx context.Context, name string) (Snapshot, error)
	Append(ctx context.Context, name string, rows []Row) error
	Update(ctx context.Context, name string, m Match, fields Row) error
	Delete(ctx context.Context, name string, m Match) error
	// Replace заменяет таблицу целиком. expectedVersion != AnyVersion включает
	// оптимистическую проверку: при несовпадении — ErrConcurrentOverwriteRisk.
	Replace(ctx context.Context, name string, snap Snapshot, expectedVersion int64) error
	Ping(ctx context.Context) error
}
