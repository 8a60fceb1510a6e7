package models

import (
	"strings"

	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// PeriodName — TenDot, ключ периода. В OKRs и FinalReviews хранится в колонке Dot.
type PeriodName string

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "Mở"
	PeriodLocked PeriodStatus = "Khóa"
)

type Period struct {
	Name   PeriodName   `json:"name"`
	Status PeriodStatus `json:"status"`
}

func (p Period) IsOpen() bool { return p.Status == PeriodOpen }

func PeriodFromRow(r table.Row) Period {
	return Period{
		Name:   PeriodName(strings.TrimSpace(r[schema.ColTenDot])),
		Status: PeriodStatus(strings.TrimSpace(r[schema.ColTrangThai])),
	}
}

func (p Period) Row() table.Row {
	return table.Row{
		schema.ColTenDot:    string(p.Name),
		schema.ColTrangThai: string(p.Status),
	}
}

func PeriodsFrom(t *table.Table) []Period {
	out := make([]Period, 0, t.Len())
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		p := PeriodFromRow(r)
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func FindPeriod(periods []Period, name PeriodName) (Period, bool) {
	for _, p := range periods {
		if p.Name == name {
			return p, true
		}
	}
	return Period{}, false
}

// CurrentPeriod — первый открытый период, иначе первый по порядку.
func CurrentPeriod(periods []Period) (Period, bool) {
	for _, p := range periods {
		if p.IsOpen() {
			return p, true
		}
	}
	if len(periods) == 0 {
		return Period{}, false
	}
	return periods[0], true
}
