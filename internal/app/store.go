package app

import (
	"context"
	"fmt"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// Store — то, что сервисам разрешено делать с таблицами: чтение и точечные записи.
// Полной перезаписи здесь нет намеренно; её использует только Admin.
type Store interface {
	ReadAll(ctx context.Context, name string) (*table.Table, error)
	ReadFresh(ctx context.Context, name string) (*table.Table, error)
	Append(ctx context.Context, name string, row table.Row) error
	AppendMany(ctx context.Context, name string, rows []table.Row) error
	UpdateCell(ctx context.Context, name, matchColumn, matchValue, column, value string) error
	UpdateRow(ctx context.Context, name string, m table.Match, fields table.Row) error
	DeleteRow(ctx context.Context, name string, m table.Match) error
}

type reader func(ctx context.Context, name string) (*table.Table, error)

func (r reader) users(ctx context.Context) (*models.UserIndex, error) {
	t, err := r(ctx, schema.Users)
	if err != nil {
		return nil, storeErr(err)
	}
	return models.NewUserIndex(models.UsersFrom(t)), nil
}

func (r reader) periods(ctx context.Context) ([]models.Period, error) {
	t, err := r(ctx, schema.Periods)
	if err != nil {
		return nil, storeErr(err)
	}
	return models.PeriodsFrom(t), nil
}

func (r reader) keyResults(ctx context.Context) (*models.KeyResultIndex, error) {
	t, err := r(ctx, schema.OKRs)
	if err != nil {
		return nil, storeErr(err)
	}
	return models.NewKeyResultIndex(models.KeyResultsFrom(t)), nil
}

func (r reader) reviews(ctx context.Context) (*models.ReviewIndex, error) {
	t, err := r(ctx, schema.FinalReviews)
	if err != nil {
		return nil, storeErr(err)
	}
	return models.NewReviewIndex(t), nil
}

// requireOpen — период существует и открыт.
func (r reader) requireOpen(ctx context.Context, name models.PeriodName) error {
	ps, err := r.periods(ctx)
	if err != nil {
		return err
	}
	p, ok := models.FindPeriod(ps, name)
	if !ok {
		return fmt.Errorf("%w: period %q", ErrNotFound, name)
	}
	if !p.IsOpen() {
		return fmt.Errorf("%w: %s", ErrPeriodLocked, name)
	}
	return nil
}
