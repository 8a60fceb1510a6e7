package models

import (
	"strings"

	"github.com/Spok95/okr-tracker/internal/progress"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// KeyResultID — неизменяемый ID строки OKR, генерируется при создании.
type KeyResultID string

type KeyResultStatus string

const (
	StatusPending       KeyResultStatus = "Chờ duyệt"
	StatusApproved      KeyResultStatus = "Đã duyệt"
	StatusNeedsRevision KeyResultStatus = "Cần sửa"
)

func (s KeyResultStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusNeedsRevision:
		return true
	}
	return false
}

// Значения флага YeuCauXoa.
const (
	FlagTrue  = "TRUE"
	FlagFalse = "FALSE"
)

// ParseFlag понимает TRUE/true/1; всё остальное — false.
func ParseFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case FlagTrue, "1":
		return true
	}
	return false
}

func FormatFlag(b bool) string {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// MaxRating — максимальная оценка родителя. 0 означает "не оценено".
const MaxRating = 5

type KeyResult struct {
	ID                KeyResultID     `json:"id"`
	Student           Email           `json:"email"`
	Class             string          `json:"class"`
	Period            PeriodName      `json:"period"`
	Objective         string          `json:"objective"`
	Description       string          `json:"key_result"`
	Target            float64         `json:"target"`
	Actual            float64         `json:"actual"`
	Unit              string          `json:"unit"`
	Progress          float64         `json:"progress"`
	Status            KeyResultStatus `json:"status"`
	DeletionRequested bool            `json:"deletion_requested"`
	TeacherComment    string          `json:"teacher_comment,omitempty"`
	ParentRating      int             `json:"parent_rating"`
	ParentComment     string          `json:"parent_comment,omitempty"`
}

func (k KeyResult) Approved() bool { return k.Status == StatusApproved }

func KeyResultFromRow(r table.Row) KeyResult {
	return KeyResult{
		ID:                KeyResultID(strings.TrimSpace(r[schema.ColID])),
		Student:           NormalizeEmail(r[schema.ColEmail]),
		Class:             strings.TrimSpace(r[schema.ColLop]),
		Period:            PeriodName(strings.TrimSpace(r[schema.ColDot])),
		Objective:         r[schema.ColMucTieu],
		Description:       r[schema.ColKetQuaThenChot],
		Target:            schema.Number(r[schema.ColMucTieuSo]),
		Actual:            schema.Number(r[schema.ColThucDat]),
		Unit:              r[schema.ColDonVi],
		Progress:          schema.Number(r[schema.ColTienDo]),
		Status:            KeyResultStatus(strings.TrimSpace(r[schema.ColTrangThai])),
		DeletionRequested: ParseFlag(r[schema.ColYeuCauXoa]),
		TeacherComment:    r[schema.ColNhanXetGV],
		ParentRating:      int(schema.Number(r[schema.ColDiemHaiLongPH])),
		ParentComment:     r[schema.ColNhanXetPH],
	}
}

func (k KeyResult) Row() table.Row {
	return table.Row{
		schema.ColID:             string(k.ID),
		schema.ColEmail:          string(k.Student),
		schema.ColLop:            k.Class,
		schema.ColDot:            string(k.Period),
		schema.ColMucTieu:        k.Objective,
		schema.ColKetQuaThenChot: k.Description,
		schema.ColMucTieuSo:      schema.FormatNumber(k.Target),
		schema.ColThucDat:        schema.FormatNumber(k.Actual),
		schema.ColDonVi:          k.Unit,
		schema.ColTienDo:         schema.FormatNumber(k.Progress),
		schema.ColTrangThai:      string(k.Status),
		schema.ColYeuCauXoa:      FormatFlag(k.DeletionRequested),
		schema.ColNhanXetGV:      k.TeacherComment,
		schema.ColDiemHaiLongPH:  schema.FormatNumber(float64(k.ParentRating)),
		schema.ColNhanXetPH:      k.ParentComment,
	}
}

// ProgressFields — ThucDat и пересчитанный TienDo: пишутся всегда вместе.
func ProgressFields(actual, target float64) table.Row {
	return table.Row{
		schema.ColThucDat: schema.FormatNumber(actual),
		schema.ColTienDo:  schema.FormatNumber(progress.Of(actual, target)),
	}
}

func KeyResultsFrom(t *table.Table) []KeyResult {
	out := make([]KeyResult, 0, t.Len())
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		out = append(out, KeyResultFromRow(r))
	}
	return out
}

// KeyResultIndex — строки OKR по ID и по ученику.
type KeyResultIndex struct {
	items     []KeyResult
	byID      map[KeyResultID]int
	byStudent map[Email][]int
}

func NewKeyResultIndex(items []KeyResult) *KeyResultIndex {
	idx := &KeyResultIndex{
		items:     items,
		byID:      make(map[KeyResultID]int, len(items)),
		byStudent: make(map[Email][]int),
	}
	for i, k := range items {
		if _, dup := idx.byID[k.ID]; !dup && k.ID != "" {
			idx.byID[k.ID] = i
		}
		idx.byStudent[k.Student] = append(idx.byStudent[k.Student], i)
	}
	return idx
}

func (x *KeyResultIndex) All() []KeyResult { return x.items }

func (x *KeyResultIndex) Get(id KeyResultID) (KeyResult, bool) {
	i, ok := x.byID[id]
	if !ok {
		return KeyResult{}, false
	}
	return x.items[i], true
}

// ForStudent — строки ученика за период; пустой period — за все периоды.
func (x *KeyResultIndex) ForStudent(e Email, period PeriodName) []KeyResult {
	var out []KeyResult
	for _, i := range x.byStudent[e] {
		if period == "" || x.items[i].Period == period {
			out = append(out, x.items[i])
		}
	}
	return out
}

// InPeriod — все строки периода в порядке таблицы.
func (x *KeyResultIndex) InPeriod(period PeriodName) []KeyResult {
	var out []KeyResult
	for _, k := range x.items {
		if k.Period == period {
			out = append(out, k)
		}
	}
	return out
}

// HasDuplicate — есть ли у ученика в периоде такая же пара цель/ключевой результат.
func (x *KeyResultIndex) HasDuplicate(e Email, period PeriodName, objective, description string) bool {
	for _, k := range x.ForStudent(e, period) {
		if k.Objective == objective && k.Description == description {
			return true
		}
	}
	return false
}

type ObjectiveGroup struct {
	Objective  string      `json:"objective"`
	KeyResults []KeyResult `json:"key_results"`
}

// GroupByObjective группирует по точному совпадению MucTieu.
// Группы идут в порядке первого появления, строки внутри — в исходном порядке.
func GroupByObjective(items []KeyResult) []ObjectiveGroup {
	pos := make(map[string]int)
	var out []ObjectiveGroup
	for _, k := range items {
		i, ok := pos[k.Objective]
		if !ok {
			i = len(out)
			pos[k.Objective] = i
			out = append(out, ObjectiveGroup{Objective: k.Objective})
		}
		out[i].KeyResults = append(out[i].KeyResults, k)
	}
	return out
}
