package models

import (
	"strings"

	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

type ReviewStatus string

const (
	ReviewDraft     ReviewStatus = "Chưa chốt"
	ReviewFinalized ReviewStatus = "Đã chốt"
)

// ReviewKey — естественный ключ итогового отзыва: не больше одной логической строки
// на ученика и период.
type ReviewKey struct {
	Student Email
	Period  PeriodName
}

// Match — адрес строки отзыва для точечной записи.
func (k ReviewKey) Match() table.Match {
	return table.Where(schema.ColEmail, string(k.Student)).And(schema.ColDot, string(k.Period))
}

type FinalReview struct {
	Student        Email        `json:"email"`
	Period         PeriodName   `json:"period"`
	TeacherComment string       `json:"teacher_comment"`
	ParentFeedback string       `json:"parent_feedback"`
	Status         ReviewStatus `json:"status"`
}

func (r FinalReview) Key() ReviewKey { return ReviewKey{Student: r.Student, Period: r.Period} }

func (r FinalReview) Finalized() bool { return r.Status == ReviewFinalized }

func ReviewFromRow(r table.Row) FinalReview {
	st := ReviewStatus(strings.TrimSpace(r[schema.ColTrangThaiCuoiKy]))
	if st == "" {
		st = ReviewDraft
	}
	return FinalReview{
		Student:        NormalizeEmail(r[schema.ColEmail]),
		Period:         PeriodName(strings.TrimSpace(r[schema.ColDot])),
		TeacherComment: r[schema.ColNhanXetCuoiKy],
		ParentFeedback: r[schema.ColPhanHoiPH],
		Status:         st,
	}
}

func (r FinalReview) Row() table.Row {
	return table.Row{
		schema.ColEmail:           string(r.Student),
		schema.ColDot:             string(r.Period),
		schema.ColNhanXetCuoiKy:   r.TeacherComment,
		schema.ColPhanHoiPH:       r.ParentFeedback,
		schema.ColTrangThaiCuoiKy: string(r.Status),
	}
}

// ReviewIndex — отзывы по естественному ключу.
//
// Две одновременные первые записи могут создать две строки с одним ключом.
// Такие строки сливаются: по каждому полю побеждает первая строка,
// пустые поля берутся из следующих.
type ReviewIndex struct {
	byKey map[ReviewKey]FinalReview
	order []ReviewKey
	dups  int
}

func NewReviewIndex(t *table.Table) *ReviewIndex {
	idx := &ReviewIndex{byKey: make(map[ReviewKey]FinalReview)}
	if t == nil {
		return idx
	}
	merged := make(map[ReviewKey]table.Row)
	for _, row := range t.Rows {
		k := ReviewFromRow(row).Key()
		prev, ok := merged[k]
		if !ok {
			merged[k] = row.Clone()
			idx.order = append(idx.order, k)
			continue
		}
		idx.dups++
		for col, v := range row {
			if strings.TrimSpace(prev[col]) == "" {
				prev[col] = v
			}
		}
	}
	for k, row := range merged {
		idx.byKey[k] = ReviewFromRow(row)
	}
	return idx
}

func (x *ReviewIndex) Get(k ReviewKey) (FinalReview, bool) {
	r, ok := x.byKey[k]
	return r, ok
}

// Duplicates — сколько лишних строк было слито.
func (x *ReviewIndex) Duplicates() int { return x.dups }

// InPeriod — отзывы периода в порядке первого появления.
func (x *ReviewIndex) InPeriod(period PeriodName) []FinalReview {
	var out []FinalReview
	for _, k := range x.order {
		if k.Period == period {
			out = append(out, x.byKey[k])
		}
	}
	return out
}
