package table

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/ctxutil"
	"github.com/Spok95/okr-tracker/internal/metrics"
	"github.com/Spok95/okr-tracker/internal/observability"
	"github.com/Spok95/okr-tracker/internal/schema"
)

// Store — шлюз к носителю. Чтение: кэш -> носитель -> миграция схемы -> кэш.
// Любая запись синхронно сбрасывает весь кэш: таблицы показываются вместе
// (OKR рядом с Users), и частичный сброс дал бы несогласованные представления.
type Store struct {
	backend  Backend
	registry *schema.Registry
	cache    Cache
	log      *zap.Logger
	timeout  time.Duration

	// gen растёт при каждой инвалидации; чтение, обогнанное записью, в кэш не кладётся
	gen atomic.Uint64
}

type Option func(*Store)

func WithCache(c Cache) Option {
	return func(s *Store) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTimeout — таймаут одного обращения к носителю.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func NewStore(b Backend, reg *schema.Registry, opts ...Option) *Store {
	s := &Store{
		backend:  b,
		registry: reg,
		cache:    NopCache{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Registry() *schema.Registry { return s.registry }

// ReadAll — вся таблица после миграции. Пустая таблица — это (*Table без строк, nil);
// недоступность носителя — это ошибка ErrStoreUnavailable, никогда не пустой результат.
func (s *Store) ReadAll(ctx context.Context, name string) (*Table, error) {
	if t, ok := s.cache.Get(ctx, name); ok && t != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return t.Clone(), nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return s.ReadFresh(ctx, name)
}

// ReadFresh — чтение мимо кэша (кэш при этом обновляется). Для проверок перед записью.
func (s *Store) ReadFresh(ctx context.Context, name string) (*Table, error) {
	gen := s.gen.Load()
	t, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.gen.Load() == gen {
		s.cache.Put(ctx, name, t.Clone())
	}
	return t, nil
}

func (s *Store) load(ctx context.Context, name string) (*Table, error) {
	start := time.Now()
	cctx, cancel := s.withTimeout(ctx)
	snap, err := s.backend.Fetch(cctx, name)
	cancel()
	err = classify("read", name, err)
	s.observe(ctx, "read", name, err, start)
	if err != nil {
		return nil, err
	}

	cols, rep := schema.Migrate(s.registry, name, snap.Columns, snap.Rows)
	if rep.Repaired() {
		metrics.SchemaRepairs.WithLabelValues(name).Inc()
		s.log.Info("schema drift repaired",
			zap.String("table", name),
			zap.Strings("backfilled", rep.Backfilled),
			zap.Int("coerced", rep.Coerced),
		)
	}
	rows := snap.Rows
	if rows == nil {
		rows = []Row{}
	}
	return &Table{Name: name, Columns: cols, Rows: rows, Version: snap.Version}, nil
}

// Append добавляет одну строку в конец. Без чтения таблицы, гонок с чужими append нет.
func (s *Store) Append(ctx context.Context, name string, row Row) error {
	return s.AppendMany(ctx, name, []Row{row})
}

// AppendMany — пакетное добавление (массовый импорт).
func (s *Store) AppendMany(ctx context.Context, name string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	prepared := make([]Row, 0, len(rows))
	for _, r := range rows {
		prepared = append(prepared, s.complete(name, r))
	}
	return s.write(ctx, "append", name, func(c context.Context) error {
		return s.backend.Append(c, name, prepared)
	})
}

// UpdateCell меняет ровно одну ячейку первой строки, где matchColumn == matchValue.
func (s *Store) UpdateCell(ctx context.Context, name, matchColumn, matchValue, column, value string) error {
	return s.UpdateRow(ctx, name, Where(matchColumn, matchValue), Row{column: value})
}

// UpdateRow меняет несколько полей одной найденной строки одной точечной записью.
// Остальные поля и строки не затрагиваются.
func (s *Store) UpdateRow(ctx context.Context, name string, m Match, fields Row) error {
	if len(m) == 0 || len(fields) == 0 {
		return &OpError{Op: "update", Table: name, Err: fmt.Errorf("%w: empty match or fields", ErrInvalidArgument)}
	}
	fields = s.normalize(name, fields)
	return s.write(ctx, "update", name, func(c context.Context) error {
		return s.backend.Update(c, name, m, fields)
	})
}

// DeleteRow удаляет первую подходящую строку.
func (s *Store) DeleteRow(ctx context.Context, name string, m Match) error {
	if len(m) == 0 {
		return &OpError{Op: "delete", Table: name, Err: fmt.Errorf("%w: empty match", ErrInvalidArgument)}
	}
	return s.write(ctx, "delete", name, func(c context.Context) error {
		return s.backend.Delete(c, name, m)
	})
}

type ReplaceOptions struct {
	// AcceptLostUpdates отключает проверку версии: всё, что записали другие
	// после чтения снимка, будет потеряно.
	AcceptLostUpdates bool
}

// ReplaceAll перезаписывает таблицу снимком целиком. Только для административных операций.
// По умолчанию снимок должен быть актуален (Version совпадает с носителем),
// иначе ErrConcurrentOverwriteRisk.
func (s *Store) ReplaceAll(ctx context.Context, name string, snap *Table, opts ReplaceOptions) error {
	if snap == nil {
		return &OpError{Op: "replace", Table: name, Err: fmt.Errorf("%w: nil snapshot", ErrInvalidArgument)}
	}
	expected := snap.Version
	if opts.AcceptLostUpdates {
		expected = AnyVersion
	}
	s.log.Warn("replace all: whole-table overwrite",
		zap.String("table", name),
		zap.Int("rows", len(snap.Rows)),
		zap.Int64("snapshot_version", snap.Version),
		zap.Bool("accept_lost_updates", opts.AcceptLostUpdates),
	)
	rows := make([]Row, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		rows = append(rows, s.complete(name, r))
	}
	err := s.write(ctx, "replace", name, func(c context.Context) error {
		return s.backend.Replace(c, name, Snapshot{Columns: snap.Columns, Rows: rows}, expected)
	})
	metrics.OverwriteRisk.WithLabelValues(name, outcome(err)).Inc()
	return err
}

// Invalidate — ручной сброс кэша (одна таблица или AllTables).
func (s *Store) Invalidate(ctx context.Context, name string) {
	s.gen.Add(1)
	s.cache.Invalidate(ctx, name)
	metrics.CacheInvalidations.Inc()
}

func (s *Store) Ping(ctx context.Context) error {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	t0 := time.Now()
	err := s.backend.Ping(cctx)
	metrics.ObserveStorePing(time.Since(t0))
	return classify("ping", "*", err)
}

// write выполняет одну запись и сбрасывает кэш в любом исходе:
// упавшая по таймауту запись могла всё-таки примениться.
func (s *Store) write(ctx context.Context, op, name string, fn func(context.Context) error) error {
	start := time.Now()
	cctx, cancel := s.withTimeout(ctx)
	err := fn(cctx)
	cancel()
	s.Invalidate(ctx, AllTables)
	err = classify(op, name, err)
	s.observe(ctx, op, name, err, start)
	return err
}

func (s *Store) observe(ctx context.Context, op, name string, err error, start time.Time) {
	d := time.Since(start)
	metrics.ObserveStoreOp(op, name, outcome(err), d)
	switch {
	case err == nil:
		s.log.Debug("store op", zap.String("op", op), zap.String("table", name), zap.Duration("took", d))
	case errors.Is(err, ErrStoreUnavailable):
		s.log.Error("store unavailable", zap.String("op", op), zap.String("table", name), zap.Error(err))
		observability.CaptureCtxErr(ctx, err)
	default:
		s.log.Warn("store op failed", zap.String("op", op), zap.String("table", name), zap.Error(err))
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctxutil.WithStoreTimeout(ctx, s.timeout)
}

// complete — копия строки с объявленными колонками по умолчанию и нормализованными числами.
func (s *Store) complete(name string, r Row) Row {
	out := r.Clone()
	if cols, ok := s.registry.ColumnsOf(name); ok {
		for _, c := range cols {
			if _, ok := out[c.Name]; !ok {
				out[c.Name] = c.Kind.Default()
			}
		}
	}
	return s.normalize(name, out)
}

func (s *Store) normalize(name string, fields Row) Row {
	out := make(Row, len(fields))
	for k, v := range fields {
		if s.registry.KindOf(name, k) == schema.Numeric {
			v = schema.NormalizeNumber(v)
		}
		out[k] = v
	}
	return out
}
