package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
)

// Periods — ведение таблицы Periods. Менять может только администратор.
type Periods struct {
	store Store
	log   *zap.Logger
}

func NewPeriods(s Store, log *zap.Logger) *Periods {
	if log == nil {
		log = zap.NewNop()
	}
	return &Periods{store: s, log: log}
}

func (p *Periods) List(ctx context.Context) ([]models.Period, error) {
	return reader(p.store.ReadAll).periods(ctx)
}

// Current — период по умолчанию: первый открытый, иначе первый. ok=false, если периодов нет.
func (p *Periods) Current(ctx context.Context) (models.Period, bool, error) {
	ps, err := p.List(ctx)
	if err != nil {
		return models.Period{}, false, err
	}
	cur, ok := models.CurrentPeriod(ps)
	return cur, ok, nil
}

// Create добавляет открытый период с уникальным именем.
func (p *Periods) Create(ctx context.Context, actor Identity, name string) (models.Period, error) {
	if !actor.Is(models.Admin) {
		return models.Period{}, ErrForbidden
	}
	pn := models.PeriodName(strings.TrimSpace(name))
	if pn == "" {
		return models.Period{}, invalid("period name is required")
	}
	ps, err := reader(p.store.ReadFresh).periods(ctx)
	if err != nil {
		return models.Period{}, err
	}
	if _, exists := models.FindPeriod(ps, pn); exists {
		return models.Period{}, fmt.Errorf("%w: period %s", ErrAlreadyExists, pn)
	}
	period := models.Period{Name: pn, Status: models.PeriodOpen}
	if err := p.store.Append(ctx, schema.Periods, period.Row()); err != nil {
		return models.Period{}, storeErr(err)
	}
	p.log.Info("period created", zap.String("period", string(pn)))
	return period, nil
}

func (p *Periods) SetStatus(ctx context.Context, actor Identity, name models.PeriodName, status models.PeriodStatus) error {
	if !actor.Is(models.Admin) {
		return ErrForbidden
	}
	if status != models.PeriodOpen && status != models.PeriodLocked {
		return invalid("unknown period status %q", status)
	}
	ps, err := reader(p.store.ReadFresh).periods(ctx)
	if err != nil {
		return err
	}
	if _, ok := models.FindPeriod(ps, name); !ok {
		return fmt.Errorf("%w: period %s", ErrNotFound, name)
	}
	if err := p.store.UpdateCell(ctx, schema.Periods, schema.ColTenDot, string(name), schema.ColTrangThai, string(status)); err != nil {
		return storeErr(err)
	}
	p.log.Info("period status changed", zap.String("period", string(name)), zap.String("status", string(status)))
	return nil
}

// Toggle — Mở <-> Khóa. Возвращает период с новым статусом.
func (p *Periods) Toggle(ctx context.Context, actor Identity, name models.PeriodName) (models.Period, error) {
	if !actor.Is(models.Admin) {
		return models.Period{}, ErrForbidden
	}
	ps, err := reader(p.store.ReadFresh).periods(ctx)
	if err != nil {
		return models.Period{}, err
	}
	cur, ok := models.FindPeriod(ps, name)
	if !ok {
		return models.Period{}, fmt.Errorf("%w: period %s", ErrNotFound, name)
	}
	next := models.PeriodLocked
	if !cur.IsOpen() {
		next = models.PeriodOpen
	}
	if err := p.SetStatus(ctx, actor, name, next); err != nil {
		return models.Period{}, err
	}
	cur.Status = next
	return cur, nil
}
