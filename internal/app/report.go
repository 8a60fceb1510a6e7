package app

import (
	"context"

	"github.com/Spok95/okr-tracker/internal/export"
	"github.com/Spok95/okr-tracker/internal/models"
)

// Reports собирает данные для выгрузок из ReadAll.
type Reports struct {
	store Store
}

func NewReports(s Store) *Reports { return &Reports{store: s} }

// ClassWorkbook — отчёт по классу за период (учитель класса или администратор).
func (r *Reports) ClassWorkbook(ctx context.Context, viewer Identity, class string, period models.PeriodName) (*export.Workbook, error) {
	if !viewer.Is(models.Admin) && !viewer.TeachesClass(class) {
		return nil, ErrForbidden
	}
	read := reader(r.store.ReadAll)
	users, err := read.users(ctx)
	if err != nil {
		return nil, err
	}
	krs, err := read.keyResults(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := read.reviews(ctx)
	if err != nil {
		return nil, err
	}
	var inClass []models.KeyResult
	for _, k := range krs.InPeriod(period) {
		if k.Class == class {
			inClass = append(inClass, k)
		}
	}
	return export.ClassWorkbook(export.ClassData{
		Class:      class,
		Period:     period,
		Students:   users.Students(class),
		KeyResults: inClass,
		Reviews:    reviews,
	})
}
